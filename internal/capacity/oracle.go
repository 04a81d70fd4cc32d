// Package capacity answers how much of the global daily send budget a
// calendar day has already consumed.
package capacity

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ignite/hyperdrip/internal/store"
	"github.com/redis/go-redis/v9"
)

// DefaultCacheTTL bounds how stale a cached day count may be. The count
// only grows as workers complete sends, and the cap is soft by design, so
// a few seconds of staleness is acceptable.
const DefaultCacheTTL = 15 * time.Second

// Oracle reports completed sends per UTC civil day. Sends that are queued
// but not yet advanced are invisible to it; the cap is enforced against
// sends that actually happened.
type Oracle struct {
	store       store.LeadStore
	redisClient *redis.Client // optional; nil disables caching
	cacheTTL    time.Duration
}

// New creates an oracle over the given lead store.
func New(s store.LeadStore) *Oracle {
	return &Oracle{store: s, cacheTTL: DefaultCacheTTL}
}

// SetRedisClient enables short-TTL caching of day counts. Useful when
// many admissions scan the same horizon concurrently.
func (o *Oracle) SetRedisClient(client *redis.Client) {
	o.redisClient = client
}

// Used returns the number of completed sends attributed to the UTC civil
// day containing d.
func (o *Oracle) Used(ctx context.Context, d time.Time) (int, error) {
	key := fmt.Sprintf("capacity:used:%s", d.UTC().Format("2006-01-02"))

	if o.redisClient != nil {
		if cached, err := o.redisClient.Get(ctx, key).Result(); err == nil {
			if n, err := strconv.Atoi(cached); err == nil {
				return n, nil
			}
		}
	}

	n, err := o.store.CountSentOn(ctx, d)
	if err != nil {
		return 0, err
	}

	if o.redisClient != nil {
		// Cache failures are not worth failing admission over.
		_ = o.redisClient.Set(ctx, key, strconv.Itoa(n), o.cacheTTL).Err()
	}
	return n, nil
}
