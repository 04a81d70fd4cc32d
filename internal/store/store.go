// Package store persists leads and their drip-campaign counters.
package store

import (
	"context"
	"time"

	"github.com/ignite/hyperdrip/internal/domain"
)

// NewLead carries the validated fields of an admission request.
type NewLead struct {
	Name        string
	Email       string
	Phone       string
	Notes       string
	MaxMessages int
}

// AdvanceFunc inspects a freshly loaded, row-locked lead and decides what
// to do with it. Returning a nil advance commits the transaction without
// modifying the lead (the "empty transaction" the worker uses for
// duplicate and out-of-order entries). Returning an error aborts the
// transaction. Side effects performed inside the func happen before the
// counter advance commits.
type AdvanceFunc func(lead *domain.Lead) (*domain.LeadAdvance, error)

// LeadStore is the capability set the scheduler and worker need from the
// durable lead storage. The Postgres implementation is authoritative; the
// memory implementation backs tests.
type LeadStore interface {
	// Create persists a new lead with status ACTIVE and a zero message
	// count, returning the stored lead with its assigned id. Conflicts
	// on the email or phone natural keys return domain.ErrDuplicateLead.
	Create(ctx context.Context, in NewLead) (*domain.Lead, error)

	// Get loads a lead by id, or domain.ErrLeadNotFound.
	Get(ctx context.Context, id string) (*domain.Lead, error)

	// MarkScheduled stamps the lead's next expected advance date after
	// admission scheduling.
	MarkScheduled(ctx context.Context, id string, next time.Time) error

	// UpdateInTx loads the lead under a row lock, runs fn, and applies
	// the returned advance before committing. Two concurrent calls for
	// the same lead serialize: the second observes the first's counter.
	// A missing lead returns domain.ErrLeadNotFound without running fn.
	UpdateInTx(ctx context.Context, id string, fn AdvanceFunc) error

	// CountSentOn returns how many leads have last_sent_at within the
	// UTC civil day containing the given time.
	CountSentOn(ctx context.Context, day time.Time) (int, error)
}
