package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter := New(rdb, cfg)

	return limiter, mr, func() {
		_ = rdb.Close()
		mr.Close()
	}
}

func TestAllowWithinCeiling(t *testing.T) {
	limiter, _, done := newTestLimiter(t, Config{Ceiling: 3, Window: time.Minute})
	defer done()

	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := limiter.Allow(ctx, "10.0.0.1"); err != nil {
			t.Fatalf("request %d: expected allow, got %v", i+1, err)
		}
	}

	if err := limiter.Allow(ctx, "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("request 4: expected ErrRateLimited, got %v", err)
	}
}

func TestAllowResetsAfterWindow(t *testing.T) {
	limiter, mr, done := newTestLimiter(t, Config{Ceiling: 3, Window: time.Minute})
	defer done()

	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_ = limiter.Allow(ctx, "10.0.0.1")
	}

	mr.FastForward(time.Minute + time.Second)

	if err := limiter.Allow(ctx, "10.0.0.1"); err != nil {
		t.Fatalf("expected allow after window elapsed, got %v", err)
	}
}

func TestAllowKeysAreIndependent(t *testing.T) {
	limiter, _, done := newTestLimiter(t, Config{Ceiling: 1, Window: time.Minute})
	defer done()

	ctx := context.Background()

	if err := limiter.Allow(ctx, "10.0.0.1"); err != nil {
		t.Fatalf("first key: %v", err)
	}
	if err := limiter.Allow(ctx, "10.0.0.2"); err != nil {
		t.Fatalf("second key should have its own budget: %v", err)
	}
	if err := limiter.Allow(ctx, "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("first key should be saturated, got %v", err)
	}
}

func TestAllowEmptyKeyIsNoop(t *testing.T) {
	limiter, _, done := newTestLimiter(t, Config{Ceiling: 1, Window: time.Minute})
	defer done()

	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := limiter.Allow(ctx, ""); err != nil {
			t.Fatalf("empty key must never limit: %v", err)
		}
	}
}

func TestRemaining(t *testing.T) {
	limiter, _, done := newTestLimiter(t, Config{Ceiling: 3, Window: time.Minute})
	defer done()

	ctx := context.Background()

	remaining, err := limiter.Remaining(ctx, "10.0.0.1")
	if err != nil {
		t.Fatalf("Remaining error: %v", err)
	}
	if remaining != 3 {
		t.Fatalf("expected full budget 3 for unseen key, got %d", remaining)
	}

	_ = limiter.Allow(ctx, "10.0.0.1")
	_ = limiter.Allow(ctx, "10.0.0.1")

	remaining, err = limiter.Remaining(ctx, "10.0.0.1")
	if err != nil {
		t.Fatalf("Remaining error: %v", err)
	}
	if remaining != 1 {
		t.Fatalf("expected 1 remaining, got %d", remaining)
	}
}

func TestFailClosedOnStoreOutage(t *testing.T) {
	limiter, mr, done := newTestLimiter(t, Config{Ceiling: 3, Window: time.Minute})
	defer done()

	mr.Close()

	err := limiter.Allow(context.Background(), "10.0.0.1")
	if !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable when store is down, got %v", err)
	}
}

func TestFailOpenOnStoreOutage(t *testing.T) {
	limiter, mr, done := newTestLimiter(t, Config{Ceiling: 3, Window: time.Minute, FailOpen: true})
	defer done()

	mr.Close()

	if err := limiter.Allow(context.Background(), "10.0.0.1"); err != nil {
		t.Fatalf("fail-open limiter must admit on outage, got %v", err)
	}
}
