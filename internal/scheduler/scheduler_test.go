package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ignite/hyperdrip/internal/capacity"
	"github.com/ignite/hyperdrip/internal/domain"
	"github.com/ignite/hyperdrip/internal/queue"
	"github.com/ignite/hyperdrip/internal/store"
)

func newTestScheduler(t *testing.T, dailyMax int) (*Scheduler, *store.MemoryStore, *queue.MemoryQueue) {
	t.Helper()
	s := store.NewMemoryStore()
	q := queue.NewMemoryQueue()
	sc := New(s, q, capacity.New(s), dailyMax, 30, false)
	sc.SetNowFunc(func() time.Time {
		return time.Date(2025, time.January, 15, 10, 30, 0, 0, time.UTC)
	})
	return sc, s, q
}

func entriesIn(t *testing.T, q *queue.MemoryQueue, name string) []domain.QueueEntry {
	t.Helper()
	msgs, err := q.Read(context.Background(), name, time.Minute, 100)
	if err != nil {
		t.Fatalf("Read(%s) error: %v", name, err)
	}
	out := make([]domain.QueueEntry, 0, len(msgs))
	for _, m := range msgs {
		var e domain.QueueEntry
		if err := json.Unmarshal(m.Payload, &e); err != nil {
			t.Fatalf("unmarshal entry in %s: %v", name, err)
		}
		out = append(out, e)
	}
	return out
}

func TestAdmitFansOutConsecutiveDays(t *testing.T) {
	sc, _, q := newTestScheduler(t, 100)
	ctx := context.Background()

	lead, err := sc.Admit(ctx, store.NewLead{
		Name: "Ada", Email: "ada@example.com", Phone: "+15550100", MaxMessages: 5,
	})
	if err != nil {
		t.Fatalf("Admit() error: %v", err)
	}

	// Message m lands on today+(m-1).
	for m := 1; m <= 5; m++ {
		day := time.Date(2025, time.January, 14+m, 0, 0, 0, 0, time.UTC)
		name := queue.NameForDate(day, false)
		entries := entriesIn(t, q, name)
		if len(entries) != 1 {
			t.Fatalf("queue %s has %d entries, want 1", name, len(entries))
		}
		e := entries[0]
		if e.LeadID != lead.ID || e.MessageNumber != m {
			t.Errorf("queue %s entry = %+v, want message %d for lead %s", name, e, m, lead.ID)
		}
		if e.ScheduledDate != queue.FormatDate(day) {
			t.Errorf("queue %s scheduledDate = %q, want %q", name, e.ScheduledDate, queue.FormatDate(day))
		}
	}

	if lead.NextScheduledFor == nil || !lead.NextScheduledFor.Equal(time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("NextScheduledFor = %v, want 2025-01-15 midnight", lead.NextScheduledFor)
	}
}

func TestScheduleOverflowsFullDays(t *testing.T) {
	sc, s, q := newTestScheduler(t, 2)
	ctx := context.Background()

	// Today's budget is spent; message 1 spills to tomorrow.
	s.SeedSentOn(time.Date(2025, time.January, 15, 8, 0, 0, 0, time.UTC), 2)

	lead, err := sc.Admit(ctx, store.NewLead{
		Name: "Ada", Email: "ada@example.com", Phone: "+15550100", MaxMessages: 2,
	})
	if err != nil {
		t.Fatalf("Admit() error: %v", err)
	}

	today := queue.NameForDate(time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC), false)
	if q.Len(today) != 0 {
		t.Errorf("full day %s should receive nothing, has %d entries", today, q.Len(today))
	}

	tomorrow := queue.NameForDate(time.Date(2025, time.January, 16, 0, 0, 0, 0, time.UTC), false)
	entries := entriesIn(t, q, tomorrow)
	if len(entries) != 2 {
		t.Fatalf("queue %s has %d entries, want 2", tomorrow, len(entries))
	}
	for i, e := range entries {
		if e.MessageNumber != i+1 || e.LeadID != lead.ID {
			t.Errorf("entry %d = %+v", i, e)
		}
	}
}

func TestScheduleDailyMaxZeroClampsToHorizon(t *testing.T) {
	sc, _, q := newTestScheduler(t, 0)
	ctx := context.Background()

	_, err := sc.Admit(ctx, store.NewLead{
		Name: "Ada", Email: "ada@example.com", Phone: "+15550100", MaxMessages: 1,
	})
	if err != nil {
		t.Fatalf("Admit() error: %v", err)
	}

	// No day ever has capacity, so message 1 clamps to today+horizon-1.
	clamped := queue.NameForDate(time.Date(2025, time.February, 13, 0, 0, 0, 0, time.UTC), false)
	if q.Len(clamped) != 1 {
		t.Errorf("queue %s has %d entries, want 1", clamped, q.Len(clamped))
	}
}

func TestAdmitDuplicateSchedulesNothing(t *testing.T) {
	sc, _, q := newTestScheduler(t, 100)
	ctx := context.Background()

	in := store.NewLead{Name: "Ada", Email: "ada@example.com", Phone: "+15550100", MaxMessages: 3}
	if _, err := sc.Admit(ctx, in); err != nil {
		t.Fatalf("first Admit() error: %v", err)
	}

	today := queue.NameForDate(time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC), false)
	before := q.Len(today)

	_, err := sc.Admit(ctx, in)
	if !errors.Is(err, domain.ErrDuplicateLead) {
		t.Fatalf("second Admit() error = %v, want ErrDuplicateLead", err)
	}
	if q.Len(today) != before {
		t.Errorf("duplicate admission enqueued entries: %d -> %d", before, q.Len(today))
	}
}

func TestScheduleTestModePrefix(t *testing.T) {
	s := store.NewMemoryStore()
	q := queue.NewMemoryQueue()
	sc := New(s, q, capacity.New(s), 100, 30, true)
	sc.SetNowFunc(func() time.Time {
		return time.Date(2025, time.January, 15, 10, 0, 0, 0, time.UTC)
	})

	_, err := sc.Admit(context.Background(), store.NewLead{
		Name: "Ada", Email: "ada@example.com", Phone: "+15550100", MaxMessages: 1,
	})
	if err != nil {
		t.Fatalf("Admit() error: %v", err)
	}

	if !q.Exists("test-drip-messages-2025-01-15") {
		t.Error("test mode should enqueue into the test-prefixed queue")
	}
	if q.Exists("drip-messages-2025-01-15") {
		t.Error("test mode should not touch the production queue")
	}
}
