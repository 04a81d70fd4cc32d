package worker

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/ignite/hyperdrip/internal/pkg/distlock"
	"github.com/ignite/hyperdrip/internal/queue"
	"github.com/redis/go-redis/v9"
)

// janitorScanDays is how far past the retention boundary the janitor
// looks for stale queues. Queues older than this were dropped by an
// earlier run.
const janitorScanDays = 30

// Janitor drops day-queues that have aged out of the retention window.
// It runs once at worker startup, under a best-effort distributed lock
// so a fleet of workers doesn't all issue the same drops, and abandons
// whatever remains when its time budget runs out.
type Janitor struct {
	queue     queue.Queue
	retention int
	timeout   time.Duration

	redisClient *redis.Client
	db          *sql.DB
}

// NewJanitor creates a janitor that keeps the most recent retention-1
// days of queues alive.
func NewJanitor(q queue.Queue, retention int, timeout time.Duration) *Janitor {
	if retention <= 0 {
		retention = 7
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Janitor{queue: q, retention: retention, timeout: timeout}
}

// SetLockBackend provides the backends for the janitor's distributed
// lock. Either may be nil; with both nil the janitor runs unlocked.
func (j *Janitor) SetLockBackend(redisClient *redis.Client, db *sql.DB) {
	j.redisClient = redisClient
	j.db = db
}

// Run drops every expired day-queue, plain and test-prefixed. Drop
// failures are logged and ignored: a stale queue survives until the
// next worker start.
func (j *Janitor) Run(today time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	lock := distlock.NewLock(j.redisClient, j.db, "drip:janitor", j.timeout)
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		log.Printf("[Janitor] Lock acquire failed, proceeding unlocked: %v", err)
	} else if !acquired {
		log.Printf("[Janitor] Another worker is cleaning up; skipping")
		return
	} else {
		defer lock.Release(ctx)
	}

	dropped := 0
	for _, name := range queue.ExpiredNames(today, j.retention, janitorScanDays) {
		if ctx.Err() != nil {
			log.Printf("[Janitor] Timeout after dropping %d queues; abandoning the rest", dropped)
			return
		}
		if err := j.queue.Drop(ctx, name); err != nil {
			log.Printf("[Janitor] Drop %s failed: %v", name, err)
			continue
		}
		dropped++
	}
	log.Printf("[Janitor] Dropped %d expired day-queues (retention: %d days)", dropped, j.retention)
}
