package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/hyperdrip/internal/domain"
	"github.com/lib/pq"
)

// PostgresStore implements LeadStore against the leads table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a store backed by the given database.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const leadColumns = `id, name, email, phone, notes, max_messages, message_count,
	last_sent_at, next_scheduled_for, status, created_at`

// Create inserts the lead with a fresh id. Unique-violation on the email
// or phone index surfaces as domain.ErrDuplicateLead.
func (s *PostgresStore) Create(ctx context.Context, in NewLead) (*domain.Lead, error) {
	lead := &domain.Lead{
		ID:          uuid.New().String(),
		Name:        in.Name,
		Email:       in.Email,
		Phone:       in.Phone,
		Notes:       in.Notes,
		MaxMessages: in.MaxMessages,
		Status:      domain.LeadActive,
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO leads (id, name, email, phone, notes, max_messages, message_count, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, NOW())
		RETURNING created_at
	`, lead.ID, lead.Name, lead.Email, lead.Phone, lead.Notes, lead.MaxMessages, lead.Status).Scan(&lead.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, domain.ErrDuplicateLead
		}
		return nil, fmt.Errorf("create lead: %w", err)
	}
	return lead, nil
}

// Get loads a lead by id.
func (s *PostgresStore) Get(ctx context.Context, id string) (*domain.Lead, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	return scanLead(row)
}

// MarkScheduled records the date of the lead's next expected advance.
func (s *PostgresStore) MarkScheduled(ctx context.Context, id string, next time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE leads SET next_scheduled_for = $2, status = $3 WHERE id = $1
	`, id, next, domain.LeadActive)
	if err != nil {
		return fmt.Errorf("mark scheduled: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrLeadNotFound
	}
	return nil
}

// UpdateInTx runs fn against the row-locked lead. The SELECT ... FOR
// UPDATE holds the row until commit, so a concurrent advance for the same
// lead blocks here and then sees the updated counter.
func (s *PostgresStore) UpdateInTx(ctx context.Context, id string, fn AdvanceFunc) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin advance tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1 FOR UPDATE`, id)
	lead, err := scanLead(row)
	if err != nil {
		return err
	}

	adv, err := fn(lead)
	if err != nil {
		return err
	}

	if adv != nil {
		_, err = tx.ExecContext(ctx, `
			UPDATE leads
			SET message_count = $2, last_sent_at = $3, next_scheduled_for = $4, status = $5
			WHERE id = $1
		`, lead.ID, adv.MessageCount, adv.LastSentAt, adv.NextScheduledFor, adv.Status)
		if err != nil {
			return fmt.Errorf("advance lead %s: %w", lead.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit advance tx: %w", err)
	}
	return nil
}

// CountSentOn counts leads whose last successful advance fell within the
// UTC civil day containing the given time.
func (s *PostgresStore) CountSentOn(ctx context.Context, day time.Time) (int, error) {
	d := day.UTC()
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM leads WHERE last_sent_at >= $1 AND last_sent_at < $2
	`, start, end).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count sent on %s: %w", start.Format("2006-01-02"), err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLead(row rowScanner) (*domain.Lead, error) {
	var lead domain.Lead
	var lastSent, nextFor sql.NullTime
	err := row.Scan(
		&lead.ID, &lead.Name, &lead.Email, &lead.Phone, &lead.Notes,
		&lead.MaxMessages, &lead.MessageCount,
		&lastSent, &nextFor, &lead.Status, &lead.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrLeadNotFound
		}
		return nil, fmt.Errorf("scan lead: %w", err)
	}
	if lastSent.Valid {
		t := lastSent.Time
		lead.LastSentAt = &t
	}
	if nextFor.Valid {
		t := nextFor.Time
		lead.NextScheduledFor = &t
	}
	return &lead, nil
}
