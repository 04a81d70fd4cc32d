// Package queue provides the date-partitioned message queues that carry
// scheduled drip messages from admission to the worker.
//
// A queue is identified by name only. All operations are safe to call
// concurrently from any number of workers; create and drop are idempotent,
// and read leases messages with a visibility timeout so an entry that is
// read but never archived returns to visibility on its own.
package queue

import (
	"context"
	"time"
)

// Message is one leased queue entry as returned by Read.
type Message struct {
	ID         int64
	ReadCount  int
	EnqueuedAt time.Time
	VisibleAt  time.Time
	Payload    []byte
}

// Queue is the capability set every queue backend must satisfy. The
// worker and scheduler depend only on this contract, so an in-memory
// backend is substitutable for the Postgres one in tests.
type Queue interface {
	// Create makes the named queue exist. Creating an existing queue
	// is a no-op success.
	Create(ctx context.Context, name string) error

	// Drop destroys the named queue and every message in it. Dropping
	// a non-existent queue is a no-op success.
	Drop(ctx context.Context, name string) error

	// Send appends one entry and returns its stable id for Archive.
	Send(ctx context.Context, name string, payload []byte) (int64, error)

	// Read leases up to qty messages for vt. It may block briefly
	// waiting for messages and returns an empty slice if none arrive.
	Read(ctx context.Context, name string, vt time.Duration, qty int) ([]Message, error)

	// Archive permanently removes the entry. Archiving an id that was
	// already archived is a no-op success.
	Archive(ctx context.Context, name string, msgID int64) error
}
