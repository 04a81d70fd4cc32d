package queue

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryQueue is an in-process Queue with the same lease semantics as the
// Postgres backend. It backs tests and local runs without a database.
type MemoryQueue struct {
	mu     sync.Mutex
	queues map[string]*memQueue

	// now is swappable so lease expiry can be tested without sleeping.
	now func() time.Time
}

type memQueue struct {
	nextID int64
	msgs   map[int64]*memMessage
}

type memMessage struct {
	id         int64
	readCount  int
	enqueuedAt time.Time
	visibleAt  time.Time
	payload    []byte
}

// NewMemoryQueue creates an empty in-memory queue set.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		queues: make(map[string]*memQueue),
		now:    time.Now,
	}
}

// SetNowFunc overrides the clock used for lease bookkeeping. Tests only.
func (q *MemoryQueue) SetNowFunc(now func() time.Time) {
	q.mu.Lock()
	q.now = now
	q.mu.Unlock()
}

// Create makes the named queue exist; creating twice is a no-op.
func (q *MemoryQueue) Create(ctx context.Context, name string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.queues[name]; !ok {
		q.queues[name] = &memQueue{msgs: make(map[int64]*memMessage)}
	}
	return nil
}

// Drop removes the named queue and its messages; dropping a queue that
// does not exist is a no-op.
func (q *MemoryQueue) Drop(ctx context.Context, name string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.queues, name)
	return nil
}

// Exists reports whether the named queue has been created. Test helper;
// the Queue contract does not require it.
func (q *MemoryQueue) Exists(name string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.queues[name]
	return ok
}

// Len returns the number of messages (leased or visible) in the queue.
func (q *MemoryQueue) Len(name string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	mq, ok := q.queues[name]
	if !ok {
		return 0
	}
	return len(mq.msgs)
}

// Send appends one entry and returns its id. Sending to a queue that was
// never created creates it, matching the forgiving Postgres behavior a
// scheduler relies on after Create.
func (q *MemoryQueue) Send(ctx context.Context, name string, payload []byte) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	mq, ok := q.queues[name]
	if !ok {
		mq = &memQueue{msgs: make(map[int64]*memMessage)}
		q.queues[name] = mq
	}
	mq.nextID++
	cp := make([]byte, len(payload))
	copy(cp, payload)
	mq.msgs[mq.nextID] = &memMessage{
		id:         mq.nextID,
		enqueuedAt: q.now(),
		visibleAt:  q.now(),
		payload:    cp,
	}
	return mq.nextID, nil
}

// Read leases up to qty visible messages for vt. It does not long-poll;
// tests drive the loop themselves.
func (q *MemoryQueue) Read(ctx context.Context, name string, vt time.Duration, qty int) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	mq, ok := q.queues[name]
	if !ok {
		return nil, nil
	}

	now := q.now()
	var ready []*memMessage
	for _, m := range mq.msgs {
		if !m.visibleAt.After(now) {
			ready = append(ready, m)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i].id < ready[j].id })
	if len(ready) > qty {
		ready = ready[:qty]
	}

	out := make([]Message, 0, len(ready))
	for _, m := range ready {
		m.readCount++
		m.visibleAt = now.Add(vt)
		out = append(out, Message{
			ID:         m.id,
			ReadCount:  m.readCount,
			EnqueuedAt: m.enqueuedAt,
			VisibleAt:  m.visibleAt,
			Payload:    m.payload,
		})
	}
	return out, nil
}

// Archive removes the entry; archiving an unknown id is a no-op.
func (q *MemoryQueue) Archive(ctx context.Context, name string, msgID int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if mq, ok := q.queues[name]; ok {
		delete(mq.msgs, msgID)
	}
	return nil
}
