// Package scheduler implements the admission path: fanning a freshly
// captured lead out into date-assigned queue entries under the global
// daily send cap.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/ignite/hyperdrip/internal/capacity"
	"github.com/ignite/hyperdrip/internal/domain"
	"github.com/ignite/hyperdrip/internal/pkg/logger"
	"github.com/ignite/hyperdrip/internal/queue"
	"github.com/ignite/hyperdrip/internal/store"
)

// Scheduler admits leads and materializes their message sequence as
// durable entries in date-partitioned queues.
//
// The lead write and the enqueues are deliberately not one transaction.
// A crash mid-fanout leaves a lead with fewer queue entries than
// max_messages; the lead row is still durable and the admission caller
// still gets it back. Queue failures during fanout are logged and the
// remaining messages proceed.
type Scheduler struct {
	store  store.LeadStore
	queue  queue.Queue
	oracle *capacity.Oracle

	dailyMax int
	horizon  int
	testMode bool

	// now is swappable for tests; scheduling is day-granular so only
	// the civil date matters.
	now func() time.Time
}

// New creates a scheduler. dailyMax is the global cap on completed sends
// per civil day; horizon is how many days forward the day scan may go.
func New(s store.LeadStore, q queue.Queue, o *capacity.Oracle, dailyMax, horizon int, testMode bool) *Scheduler {
	if horizon <= 0 {
		horizon = 30
	}
	return &Scheduler{
		store:    s,
		queue:    q,
		oracle:   o,
		dailyMax: dailyMax,
		horizon:  horizon,
		testMode: testMode,
		now:      time.Now,
	}
}

// SetNowFunc overrides the scheduler's clock. Tests only.
func (sc *Scheduler) SetNowFunc(now func() time.Time) {
	sc.now = now
}

// Admit persists the lead and schedules its full message sequence.
// Duplicate natural keys surface as domain.ErrDuplicateLead with nothing
// scheduled. Store errors during the capacity scan propagate; queue
// errors do not.
func (sc *Scheduler) Admit(ctx context.Context, in store.NewLead) (*domain.Lead, error) {
	lead, err := sc.store.Create(ctx, in)
	if err != nil {
		return nil, err
	}

	if err := sc.Schedule(ctx, lead); err != nil {
		return nil, err
	}
	return lead, nil
}

// Schedule fans an admitted lead (message_count 0) out into one queue
// entry per message and stamps the lead's next expected advance date.
func (sc *Scheduler) Schedule(ctx context.Context, lead *domain.Lead) error {
	today := queue.Midnight(sc.now())

	for m := 1; m <= lead.MaxMessages; m++ {
		preferred := today.AddDate(0, 0, m-1)
		day, err := sc.pickDay(ctx, preferred)
		if err != nil {
			return fmt.Errorf("pick day for message %d: %w", m, err)
		}

		name := queue.NameForDate(day, sc.testMode)
		if err := sc.queue.Create(ctx, name); err != nil {
			log.Printf("[Scheduler] Lead %s message %d: create queue %s failed: %v", lead.ID, m, name, err)
			continue
		}

		payload, err := json.Marshal(domain.QueueEntry{
			LeadID:        lead.ID,
			Email:         lead.Email,
			MessageNumber: m,
			ScheduledDate: queue.FormatDate(day),
		})
		if err != nil {
			log.Printf("[Scheduler] Lead %s message %d: marshal payload failed: %v", lead.ID, m, err)
			continue
		}

		if _, err := sc.queue.Send(ctx, name, payload); err != nil {
			log.Printf("[Scheduler] Lead %s message %d: enqueue to %s failed: %v", lead.ID, m, name, err)
			continue
		}
	}

	if err := sc.store.MarkScheduled(ctx, lead.ID, today); err != nil {
		return fmt.Errorf("mark lead %s scheduled: %w", lead.ID, err)
	}
	t := today
	lead.NextScheduledFor = &t
	lead.Status = domain.LeadActive

	logger.Info("lead scheduled",
		"lead_id", lead.ID,
		"email", logger.RedactEmail(lead.Email),
		"messages", lead.MaxMessages)
	return nil
}

// pickDay scans forward from the preferred day for the first day with
// remaining capacity. When the horizon is exhausted the last scanned day
// is assigned anyway: the lead still gets scheduled, at degraded
// fidelity, rather than being rejected.
func (sc *Scheduler) pickDay(ctx context.Context, preferred time.Time) (time.Time, error) {
	for i := 0; i < sc.horizon; i++ {
		day := preferred.AddDate(0, 0, i)
		used, err := sc.oracle.Used(ctx, day)
		if err != nil {
			return time.Time{}, err
		}
		if used < sc.dailyMax {
			return day, nil
		}
	}

	clamped := preferred.AddDate(0, 0, sc.horizon-1)
	log.Printf("[Scheduler] Capacity horizon exhausted scanning from %s; clamping to %s",
		queue.FormatDate(preferred), queue.FormatDate(clamped))
	return clamped, nil
}
