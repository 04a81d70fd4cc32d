// Package worker drains the day-queues: it leases scheduled messages,
// advances lead counters under row-locked transactions, and archives
// entries only after the advance has committed.
package worker

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/hyperdrip/internal/domain"
	"github.com/ignite/hyperdrip/internal/mailing"
	"github.com/ignite/hyperdrip/internal/pkg/logger"
	"github.com/ignite/hyperdrip/internal/queue"
	"github.com/ignite/hyperdrip/internal/store"
	"github.com/redis/go-redis/v9"
)

// Options carries the worker's pacing and queue parameters.
type Options struct {
	PollInterval      time.Duration // sleep between empty polls
	MessageDelay      time.Duration // pace between successful sends
	VisibilityTimeout time.Duration // per-read lease
	Retention         int           // days of past queues kept alive
	JanitorTimeout    time.Duration // budget for startup cleanup
	TestMode          bool          // "test-" queue name prefix
}

func (o *Options) applyDefaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = 5 * time.Second
	}
	if o.MessageDelay <= 0 {
		o.MessageDelay = 2 * time.Second
	}
	if o.VisibilityTimeout <= 0 {
		o.VisibilityTimeout = 30 * time.Second
	}
	if o.Retention <= 0 {
		o.Retention = 7
	}
	if o.JanitorTimeout <= 0 {
		o.JanitorTimeout = 10 * time.Second
	}
}

// DripWorker is a long-running process that drains today's day-queue.
//
// The critical ordering lives in processEntry: the lead's counter
// advances and commits before the queue entry is archived. A crash in
// the gap redelivers the entry; the counter comparison then archives it
// without re-sending. Multiple workers can run against the same queue
// and store; the row lock plus the monotonic counter serialize them.
type DripWorker struct {
	store     store.LeadStore
	queue     queue.Queue
	sender    mailing.Sender
	templates *mailing.TemplateService
	opts      Options

	workerID string
	now      func() time.Time

	// Optional: worker registry + heartbeat rows, janitor lock backend.
	registryDB  *sql.DB
	redisClient *redis.Client

	// Stats
	totalProcessed  int64
	totalAdvanced   int64
	totalDuplicates int64
	totalOrphaned   int64
	totalOutOfOrder int64
	totalErrors     int64

	// Control
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// New creates a drip worker over the given store, queue, and transport.
func New(s store.LeadStore, q queue.Queue, sender mailing.Sender, opts Options) *DripWorker {
	opts.applyDefaults()
	return &DripWorker{
		store:     s,
		queue:     q,
		sender:    sender,
		templates: mailing.NewTemplateService(),
		opts:      opts,
		workerID:  fmt.Sprintf("drip-%s", uuid.New().String()[:8]),
		now:       time.Now,
	}
}

// SetRegistryDB enables worker registration and heartbeats in the
// drip_workers table, and Postgres advisory locking for the janitor.
func (w *DripWorker) SetRegistryDB(db *sql.DB) {
	w.registryDB = db
}

// SetRedisClient enables Redis-based locking for the startup janitor.
func (w *DripWorker) SetRedisClient(client *redis.Client) {
	w.redisClient = client
}

// SetTemplates replaces the drip message templates.
func (w *DripWorker) SetTemplates(ts *mailing.TemplateService) {
	w.templates = ts
}

// SetNowFunc overrides the worker's clock. Tests only.
func (w *DripWorker) SetNowFunc(now func() time.Time) {
	w.now = now
}

// Start runs the startup janitor, ensures today's queue exists, and
// begins the poll loop. Calling Start on a running worker is a no-op.
func (w *DripWorker) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.mu.Unlock()

	log.Printf("[DripWorker] %s starting (poll: %v, delay: %v, vt: %v)",
		w.workerID, w.opts.PollInterval, w.opts.MessageDelay, w.opts.VisibilityTimeout)

	janitor := NewJanitor(w.queue, w.opts.Retention, w.opts.JanitorTimeout)
	janitor.SetLockBackend(w.redisClient, w.registryDB)
	janitor.Run(w.now())

	today := queue.NameForDate(w.now(), w.opts.TestMode)
	if err := w.queue.Create(w.ctx, today); err != nil {
		log.Printf("[DripWorker] Failed to ensure today's queue %s: %v", today, err)
	}

	w.registerWorker()

	w.wg.Add(1)
	go w.pollLoop()

	w.wg.Add(1)
	go w.heartbeatLoop()

	return nil
}

// Stop signals the poll loop and waits for in-flight processing to
// finish. Stopping a worker that is not running is a no-op.
func (w *DripWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.cancel()
	w.mu.Unlock()

	log.Printf("[DripWorker] %s stopping...", w.workerID)
	w.wg.Wait()
	w.deregisterWorker()
	log.Printf("[DripWorker] %s stopped. Processed: %d, advanced: %d, duplicates: %d, errors: %d",
		w.workerID,
		atomic.LoadInt64(&w.totalProcessed),
		atomic.LoadInt64(&w.totalAdvanced),
		atomic.LoadInt64(&w.totalDuplicates),
		atomic.LoadInt64(&w.totalErrors))
}

// Stats returns the worker's counters.
func (w *DripWorker) Stats() map[string]int64 {
	return map[string]int64{
		"processed":    atomic.LoadInt64(&w.totalProcessed),
		"advanced":     atomic.LoadInt64(&w.totalAdvanced),
		"duplicates":   atomic.LoadInt64(&w.totalDuplicates),
		"orphaned":     atomic.LoadInt64(&w.totalOrphaned),
		"out_of_order": atomic.LoadInt64(&w.totalOutOfOrder),
		"errors":       atomic.LoadInt64(&w.totalErrors),
	}
}

// pollLoop reads today's queue one entry at a time until stopped. The
// queue name is recomputed every iteration so a worker that survives
// midnight moves to the new day's queue on its own.
func (w *DripWorker) pollLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
		}

		queueName := queue.NameForDate(w.now(), w.opts.TestMode)
		msgs, err := w.queue.Read(w.ctx, queueName, w.opts.VisibilityTimeout, 1)
		if err != nil {
			if w.ctx.Err() != nil {
				return
			}
			log.Printf("[DripWorker] Read from %s failed: %v", queueName, err)
			atomic.AddInt64(&w.totalErrors, 1)
			w.sleep(w.opts.PollInterval)
			continue
		}

		if len(msgs) == 0 {
			w.sleep(w.opts.PollInterval)
			continue
		}

		for _, msg := range msgs {
			w.ProcessEntry(w.ctx, queueName, msg)
			if !w.sleep(w.opts.MessageDelay) {
				return
			}
		}
	}
}

// sleep waits for d or until the worker is stopped. Returns false when
// stopped.
func (w *DripWorker) sleep(d time.Duration) bool {
	select {
	case <-w.ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// ProcessEntry handles one leased queue entry. The decision matrix on
// the lead's counter c versus the entry's message number m:
//
//	c == m-1  expected: send, advance, commit, then archive
//	c >= m    redundant redelivery: archive without side effect
//	c <  m-1  out of order: archive; the missing message has its own entry
//
// A send or commit failure leaves the entry unarchived; the visibility
// lease expires and a worker retries it.
func (w *DripWorker) ProcessEntry(ctx context.Context, queueName string, msg queue.Message) {
	atomic.AddInt64(&w.totalProcessed, 1)

	var entry domain.QueueEntry
	if err := json.Unmarshal(msg.Payload, &entry); err != nil {
		// Undecodable entries can never be processed; treat as orphans.
		log.Printf("[DripWorker] Dropping malformed entry %d in %s: %v", msg.ID, queueName, err)
		w.archive(ctx, queueName, msg.ID)
		return
	}

	advanced := false
	duplicate := false
	outOfOrder := false

	err := w.store.UpdateInTx(ctx, entry.LeadID, func(lead *domain.Lead) (*domain.LeadAdvance, error) {
		c, m := lead.MessageCount, entry.MessageNumber
		switch {
		case c >= m:
			duplicate = true
			return nil, nil
		case c < m-1:
			outOfOrder = true
			return nil, nil
		}

		// Expected message: the send happens before the counter advance
		// commits, so a crash after sending redelivers the entry and the
		// c >= m branch suppresses the duplicate.
		dm := &mailing.DripMessage{
			LeadID:        lead.ID,
			Email:         lead.Email,
			Name:          lead.Name,
			MessageNumber: m,
			MaxMessages:   lead.MaxMessages,
		}
		if err := w.templates.Render(dm); err != nil {
			return nil, err
		}
		result, err := w.sender.Send(ctx, dm)
		if err != nil {
			return nil, err
		}
		if !result.Success {
			return nil, fmt.Errorf("send of message %d to lead %s reported failure", m, lead.ID)
		}

		now := w.now().UTC()
		adv := &domain.LeadAdvance{
			MessageCount: c + 1,
			LastSentAt:   now,
			Status:       domain.LeadActive,
		}
		if c+1 == lead.MaxMessages {
			adv.Status = domain.LeadCompleted
			adv.NextScheduledFor = nil
		} else {
			tomorrow := queue.Midnight(now).AddDate(0, 0, 1)
			adv.NextScheduledFor = &tomorrow
		}
		advanced = true
		return adv, nil
	})

	switch {
	case err == nil:
		// Archive strictly after the commit. If we crash before this
		// line the entry redelivers and is archived as a duplicate.
		w.archive(ctx, queueName, msg.ID)
		switch {
		case advanced:
			atomic.AddInt64(&w.totalAdvanced, 1)
			logger.Info("message advanced",
				"lead_id", entry.LeadID,
				"email", logger.RedactEmail(entry.Email),
				"message_number", entry.MessageNumber)
		case duplicate:
			atomic.AddInt64(&w.totalDuplicates, 1)
		case outOfOrder:
			atomic.AddInt64(&w.totalOutOfOrder, 1)
			log.Printf("[DripWorker] Out-of-order entry for lead %s: message %d before its predecessor",
				entry.LeadID, entry.MessageNumber)
		}
	case errors.Is(err, domain.ErrLeadNotFound):
		// Operator deleted the lead; its entries are noise.
		atomic.AddInt64(&w.totalOrphaned, 1)
		w.archive(ctx, queueName, msg.ID)
	default:
		// Send or store failure: leave the entry leased. It returns to
		// visibility after vt and is retried.
		atomic.AddInt64(&w.totalErrors, 1)
		log.Printf("[DripWorker] Processing entry %d for lead %s failed: %v", msg.ID, entry.LeadID, err)
	}
}

func (w *DripWorker) archive(ctx context.Context, queueName string, msgID int64) {
	if err := w.queue.Archive(ctx, queueName, msgID); err != nil {
		// The entry will redeliver after its lease and archive then.
		log.Printf("[DripWorker] Archive of %d in %s failed: %v", msgID, queueName, err)
	}
}
