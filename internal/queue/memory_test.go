package queue

import (
	"context"
	"testing"
	"time"
)

func TestMemoryQueueCreateDropIdempotent(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := q.Create(ctx, "drip-messages-2025-01-15"); err != nil {
			t.Fatalf("Create() error: %v", err)
		}
	}
	if !q.Exists("drip-messages-2025-01-15") {
		t.Fatal("queue should exist after Create")
	}

	for i := 0; i < 2; i++ {
		if err := q.Drop(ctx, "drip-messages-2025-01-15"); err != nil {
			t.Fatalf("Drop() error: %v", err)
		}
	}
	if q.Exists("drip-messages-2025-01-15") {
		t.Fatal("queue should not exist after Drop")
	}
}

func TestMemoryQueueLease(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()
	now := time.Date(2025, time.January, 15, 9, 0, 0, 0, time.UTC)
	q.SetNowFunc(func() time.Time { return now })

	const name = "drip-messages-2025-01-15"
	id, err := q.Send(ctx, name, []byte(`{"n":1}`))
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}

	msgs, err := q.Read(ctx, name, 30*time.Second, 1)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != id {
		t.Fatalf("Read() = %v, want one message with id %d", msgs, id)
	}
	if msgs[0].ReadCount != 1 {
		t.Errorf("ReadCount = %d, want 1", msgs[0].ReadCount)
	}

	// Leased: invisible to a second reader.
	msgs, _ = q.Read(ctx, name, 30*time.Second, 1)
	if len(msgs) != 0 {
		t.Fatalf("leased message should be invisible, got %v", msgs)
	}

	// Lease expires: visible again with a bumped read count.
	now = now.Add(31 * time.Second)
	msgs, _ = q.Read(ctx, name, 30*time.Second, 1)
	if len(msgs) != 1 {
		t.Fatal("message should reappear after the visibility timeout")
	}
	if msgs[0].ReadCount != 2 {
		t.Errorf("ReadCount after redelivery = %d, want 2", msgs[0].ReadCount)
	}
}

func TestMemoryQueueArchiveIdempotent(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()
	const name = "drip-messages-2025-01-15"

	id, _ := q.Send(ctx, name, []byte(`{}`))
	for i := 0; i < 2; i++ {
		if err := q.Archive(ctx, name, id); err != nil {
			t.Fatalf("Archive() attempt %d error: %v", i+1, err)
		}
	}
	if got := q.Len(name); got != 0 {
		t.Errorf("Len() = %d, want 0", got)
	}

	// Archiving in an unknown queue is also a no-op.
	if err := q.Archive(ctx, "drip-messages-1999-01-01", 42); err != nil {
		t.Errorf("Archive() on missing queue error: %v", err)
	}
}

func TestMemoryQueueReadOrderAndQty(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()
	const name = "drip-messages-2025-01-15"

	var ids []int64
	for i := 0; i < 3; i++ {
		id, _ := q.Send(ctx, name, []byte{byte('a' + i)})
		ids = append(ids, id)
	}

	msgs, _ := q.Read(ctx, name, time.Minute, 2)
	if len(msgs) != 2 {
		t.Fatalf("Read(qty=2) returned %d messages", len(msgs))
	}
	if msgs[0].ID != ids[0] || msgs[1].ID != ids[1] {
		t.Errorf("Read() should lease oldest first, got ids %d, %d", msgs[0].ID, msgs[1].ID)
	}
}

func TestMemoryQueueReadMissingQueue(t *testing.T) {
	q := NewMemoryQueue()
	msgs, err := q.Read(context.Background(), "drip-messages-2025-01-15", time.Minute, 1)
	if err != nil {
		t.Fatalf("Read() on missing queue error: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("Read() on missing queue = %v, want empty", msgs)
	}
}
