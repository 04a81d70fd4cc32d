package capacity

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/hyperdrip/internal/store"
)

func TestUsedCountsCivilDay(t *testing.T) {
	s := store.NewMemoryStore()
	day := time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)
	s.SeedSentOn(day.Add(3*time.Hour), 4)
	s.SeedSentOn(day.Add(-time.Hour), 2) // previous day

	o := New(s)
	got, err := o.Used(context.Background(), day.Add(18*time.Hour))
	if err != nil {
		t.Fatalf("Used() error: %v", err)
	}
	if got != 4 {
		t.Errorf("Used() = %d, want 4", got)
	}
}

func TestUsedCachesInRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	s := store.NewMemoryStore()
	day := time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)
	s.SeedSentOn(day, 3)

	o := New(s)
	o.SetRedisClient(client)
	ctx := context.Background()

	got, err := o.Used(ctx, day)
	if err != nil {
		t.Fatalf("Used() error: %v", err)
	}
	if got != 3 {
		t.Fatalf("Used() = %d, want 3", got)
	}

	// Within the TTL the cached count wins even after more sends land.
	s.SeedSentOn(day, 2)
	got, err = o.Used(ctx, day)
	if err != nil {
		t.Fatalf("Used() error: %v", err)
	}
	if got != 3 {
		t.Errorf("cached Used() = %d, want 3", got)
	}

	// After expiry the oracle goes back to the store.
	mr.FastForward(DefaultCacheTTL + time.Second)
	got, err = o.Used(ctx, day)
	if err != nil {
		t.Fatalf("Used() error: %v", err)
	}
	if got != 5 {
		t.Errorf("Used() after cache expiry = %d, want 5", got)
	}
}

func TestUsedSurvivesRedisOutage(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	mr.Close()

	s := store.NewMemoryStore()
	day := time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)
	s.SeedSentOn(day, 7)

	o := New(s)
	o.SetRedisClient(client)

	got, err := o.Used(context.Background(), day)
	if err != nil {
		t.Fatalf("Used() error with redis down: %v", err)
	}
	if got != 7 {
		t.Errorf("Used() = %d, want 7", got)
	}
}
