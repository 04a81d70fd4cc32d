package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/hyperdrip/internal/domain"
)

// MemoryStore is an in-process LeadStore with the same serialization
// guarantee as the Postgres row lock: a per-store mutex covers every
// UpdateInTx, so concurrent advances for one lead observe each other's
// committed counters.
type MemoryStore struct {
	mu    sync.Mutex
	leads map[string]*domain.Lead
}

// NewMemoryStore creates an empty in-memory lead store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{leads: make(map[string]*domain.Lead)}
}

// Create persists a new active lead, enforcing the email and phone
// natural keys the way the unique indexes do.
func (s *MemoryStore) Create(ctx context.Context, in NewLead) (*domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range s.leads {
		if strings.EqualFold(l.Email, in.Email) || l.Phone == in.Phone {
			return nil, domain.ErrDuplicateLead
		}
	}

	lead := &domain.Lead{
		ID:          uuid.New().String(),
		Name:        in.Name,
		Email:       in.Email,
		Phone:       in.Phone,
		Notes:       in.Notes,
		MaxMessages: in.MaxMessages,
		Status:      domain.LeadActive,
		CreatedAt:   time.Now().UTC(),
	}
	s.leads[lead.ID] = lead

	cp := *lead
	return &cp, nil
}

// Get loads a lead by id.
func (s *MemoryStore) Get(ctx context.Context, id string) (*domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[id]
	if !ok {
		return nil, domain.ErrLeadNotFound
	}
	cp := *lead
	return &cp, nil
}

// MarkScheduled stamps the lead's next expected advance date.
func (s *MemoryStore) MarkScheduled(ctx context.Context, id string, next time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[id]
	if !ok {
		return domain.ErrLeadNotFound
	}
	n := next
	lead.NextScheduledFor = &n
	lead.Status = domain.LeadActive
	return nil
}

// UpdateInTx hands fn a copy of the lead and applies the returned advance
// under the store lock, mirroring the Postgres transaction semantics.
func (s *MemoryStore) UpdateInTx(ctx context.Context, id string, fn AdvanceFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lead, ok := s.leads[id]
	if !ok {
		return domain.ErrLeadNotFound
	}

	cp := *lead
	adv, err := fn(&cp)
	if err != nil {
		return err
	}
	if adv != nil {
		lead.MessageCount = adv.MessageCount
		t := adv.LastSentAt
		lead.LastSentAt = &t
		lead.NextScheduledFor = adv.NextScheduledFor
		lead.Status = adv.Status
	}
	return nil
}

// CountSentOn counts leads whose last advance fell within the UTC civil
// day containing the given time.
func (s *MemoryStore) CountSentOn(ctx context.Context, day time.Time) (int, error) {
	d := day.UTC()
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, l := range s.leads {
		if l.LastSentAt != nil && !l.LastSentAt.Before(start) && l.LastSentAt.Before(end) {
			count++
		}
	}
	return count, nil
}

// Delete removes a lead outright. Test helper for the orphaned-entry
// scenario; operators do this directly in SQL.
func (s *MemoryStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.leads, id)
}

// SeedSentOn marks n synthetic completed leads as having sent on the
// given day. Test helper for capacity scenarios.
func (s *MemoryStore) SeedSentOn(day time.Time, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < n; i++ {
		id := uuid.New().String()
		t := day.UTC()
		s.leads[id] = &domain.Lead{
			ID:           id,
			Email:        id + "@seed.invalid",
			Phone:        id,
			MaxMessages:  1,
			MessageCount: 1,
			LastSentAt:   &t,
			Status:       domain.LeadCompleted,
			CreatedAt:    t,
		}
	}
}
