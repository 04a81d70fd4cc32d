// Package api exposes the admission HTTP front-end: it validates lead
// drafts and hands well-formed ones to the scheduler.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/mail"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/ignite/hyperdrip/internal/domain"
	"github.com/ignite/hyperdrip/internal/pkg/logger"
	"github.com/ignite/hyperdrip/internal/scheduler"
	"github.com/ignite/hyperdrip/internal/store"
)

// LeadService wires the admission endpoints to the scheduler and store.
type LeadService struct {
	scheduler          *scheduler.Scheduler
	store              store.LeadStore
	defaultMaxMessages int
}

// NewLeadService creates the admission service. defaultMaxMessages is
// used when a request omits the message count.
func NewLeadService(sc *scheduler.Scheduler, st store.LeadStore, defaultMaxMessages int) *LeadService {
	if defaultMaxMessages <= 0 {
		defaultMaxMessages = 5
	}
	return &LeadService{scheduler: sc, store: st, defaultMaxMessages: defaultMaxMessages}
}

// Router builds the chi router with the standard middleware stack.
func (s *LeadService) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.HandleHealth)
	r.Route("/api/leads", func(r chi.Router) {
		r.Post("/", s.HandleCreateLead)
		r.Get("/{leadID}", s.HandleGetLead)
	})
	return r
}

// HandleHealth reports liveness.
func (s *LeadService) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// leadRequest is the admission input contract.
type leadRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Notes       string `json:"notes"`
	MaxMessages int    `json:"maxMessages"`
}

// validate enforces the front-end contract: non-empty name, well-formed
// email, phone of at least 10 characters.
func (req *leadRequest) validate() map[string]string {
	problems := make(map[string]string)

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)

	if req.Name == "" {
		problems["name"] = "name is required"
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		problems["email"] = "a valid email address is required"
	}
	if len(req.Phone) < 10 {
		problems["phone"] = "phone must be at least 10 characters"
	}
	if req.MaxMessages < 0 {
		problems["maxMessages"] = "maxMessages must be positive"
	}
	return problems
}

// HandleCreateLead admits a lead and schedules its drip sequence.
func (s *LeadService) HandleCreateLead(w http.ResponseWriter, r *http.Request) {
	var req leadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if problems := req.validate(); len(problems) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":  "validation failed",
			"fields": problems,
		})
		return
	}

	maxMessages := req.MaxMessages
	if maxMessages == 0 {
		maxMessages = s.defaultMaxMessages
	}

	lead, err := s.scheduler.Admit(r.Context(), store.NewLead{
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		Notes:       req.Notes,
		MaxMessages: maxMessages,
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateLead) {
			writeError(w, http.StatusConflict, "a lead with this email or phone already exists")
			return
		}
		log.Printf("[API] Lead admission failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to admit lead")
		return
	}

	logger.Info("lead admitted",
		"lead_id", lead.ID,
		"email", logger.RedactEmail(lead.Email))
	writeJSON(w, http.StatusCreated, lead)
}

// HandleGetLead returns a lead's current drip state.
func (s *LeadService) HandleGetLead(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "leadID")

	lead, err := s.store.Get(r.Context(), leadID)
	if err != nil {
		if errors.Is(err, domain.ErrLeadNotFound) {
			writeError(w, http.StatusNotFound, "lead not found")
			return
		}
		log.Printf("[API] Lead lookup failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load lead")
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
