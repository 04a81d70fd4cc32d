// Package distlock provides a best-effort distributed lock used to keep
// concurrent workers from running the startup queue janitor at once.
// Redis is preferred when available; PostgreSQL advisory locks are the
// fallback so a single-store deployment still gets mutual exclusion.
package distlock

import (
	"context"
	"database/sql"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DistLock is the locking contract. A lock instance belongs to one
// goroutine; concurrent lockers use separate instances.
type DistLock interface {
	// Acquire tries to take the lock without blocking. Returns true on
	// success.
	Acquire(ctx context.Context) (bool, error)
	// Release gives the lock back if this instance still owns it.
	Release(ctx context.Context) error
}

// NewLock creates a distributed lock using the best available backend.
// If redisClient is non-nil, uses Redis (preferred for cross-host
// locking); otherwise falls back to PostgreSQL advisory locks. With
// neither available, the returned lock always acquires: a single-process
// deployment has nothing to exclude.
func NewLock(redisClient *redis.Client, db *sql.DB, key string, ttl time.Duration) DistLock {
	if redisClient != nil {
		return NewRedisLock(redisClient, key, ttl)
	}
	if db != nil {
		return NewPGAdvisoryLock(db, key)
	}
	return noopLock{}
}

type noopLock struct{}

func (noopLock) Acquire(ctx context.Context) (bool, error) { return true, nil }
func (noopLock) Release(ctx context.Context) error         { return nil }

// PGAdvisoryLock implements DistLock with pg_try_advisory_lock. The lock
// is session-scoped: if the connection drops, Postgres releases it,
// which gives crash-safety similar to a Redis TTL.
type PGAdvisoryLock struct {
	db     *sql.DB
	lockID int64
}

// NewPGAdvisoryLock creates an advisory lock whose id is derived
// deterministically from the key string.
func NewPGAdvisoryLock(db *sql.DB, key string) *PGAdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &PGAdvisoryLock{db: db, lockID: int64(h.Sum64())}
}

// Acquire tries to take the advisory lock without blocking.
func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	var acquired bool
	err := l.db.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired)
	return acquired, err
}

// Release releases the advisory lock.
func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	return err
}
