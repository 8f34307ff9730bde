package limiters

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestGuard(t *testing.T, cfg LockoutConfig) (*LockoutGuard, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	guard := NewLockoutGuard(rdb, cfg)

	return guard, mr, func() {
		_ = rdb.Close()
		mr.Close()
	}
}

func TestThresholdLocks(t *testing.T) {
	guard, _, done := newTestGuard(t, LockoutConfig{Threshold: 3, Duration: 15 * time.Minute})
	defer done()

	ctx := context.Background()

	for i := 0; i < 2; i++ {
		locked, err := guard.RecordFailure(ctx, "alice", "")
		if err != nil {
			t.Fatalf("RecordFailure error: %v", err)
		}
		if locked {
			t.Fatalf("failure %d must not lock below threshold", i+1)
		}
	}

	locked, err := guard.RecordFailure(ctx, "alice", "")
	if err != nil {
		t.Fatalf("RecordFailure error: %v", err)
	}
	if !locked {
		t.Fatal("third failure must cross the threshold")
	}

	decision, err := guard.Check(ctx, "alice", "")
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if decision.Allowed {
		t.Fatal("locked identity must not be allowed")
	}
	if decision.RetryAfter <= 0 || decision.RetryAfter > 15*time.Minute {
		t.Fatalf("unexpected RetryAfter: %v", decision.RetryAfter)
	}
}

func TestResetClearsCounters(t *testing.T) {
	guard, _, done := newTestGuard(t, LockoutConfig{Threshold: 3, Duration: 15 * time.Minute, PerOrigin: true})
	defer done()

	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = guard.RecordFailure(ctx, "alice", "10.0.0.1")
	}

	if err := guard.Reset(ctx, "alice", "10.0.0.1"); err != nil {
		t.Fatalf("Reset error: %v", err)
	}

	decision, err := guard.Check(ctx, "alice", "10.0.0.1")
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if !decision.Allowed {
		t.Fatal("reset identity must be allowed again")
	}

	count, err := guard.FailureCount(ctx, "alice")
	if err != nil {
		t.Fatalf("FailureCount error: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected zero failures after reset, got %d", count)
	}
}

func TestLockExpires(t *testing.T) {
	guard, mr, done := newTestGuard(t, LockoutConfig{Threshold: 2, Duration: time.Minute})
	defer done()

	ctx := context.Background()

	_, _ = guard.RecordFailure(ctx, "alice", "")
	_, _ = guard.RecordFailure(ctx, "alice", "")

	decision, _ := guard.Check(ctx, "alice", "")
	if decision.Allowed {
		t.Fatal("expected lock")
	}

	mr.FastForward(time.Minute + time.Second)

	decision, err := guard.Check(ctx, "alice", "")
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if !decision.Allowed {
		t.Fatal("lock must expire with the counter TTL")
	}
}

func TestPerOriginLocking(t *testing.T) {
	guard, _, done := newTestGuard(t, LockoutConfig{Threshold: 2, Duration: time.Minute, PerOrigin: true})
	defer done()

	ctx := context.Background()

	// Same origin hammering different identities locks the origin.
	_, _ = guard.RecordFailure(ctx, "alice", "10.0.0.9")
	locked, err := guard.RecordFailure(ctx, "bob", "10.0.0.9")
	if err != nil {
		t.Fatalf("RecordFailure error: %v", err)
	}
	if !locked {
		t.Fatal("origin counter must lock after threshold failures")
	}

	// A different origin trying a fresh identity is unaffected.
	decision, err := guard.Check(ctx, "carol", "10.0.0.10")
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if !decision.Allowed {
		t.Fatal("unrelated origin must not be locked")
	}
}

func TestConcurrentFailuresAllCounted(t *testing.T) {
	const n = 16

	guard, _, done := newTestGuard(t, LockoutConfig{Threshold: 100, Duration: time.Minute})
	defer done()

	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, _ = guard.RecordFailure(ctx, "alice", "")
		}()
	}
	wg.Wait()

	count, err := guard.FailureCount(ctx, "alice")
	if err != nil {
		t.Fatalf("FailureCount error: %v", err)
	}
	if count != n {
		t.Fatalf("expected %d failures counted, got %d (lost updates)", n, count)
	}
}

func TestConcurrentThresholdCrossingObservedOnce(t *testing.T) {
	const n = 8

	guard, _, done := newTestGuard(t, LockoutConfig{Threshold: n, Duration: time.Minute})
	defer done()

	ctx := context.Background()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		locks  int
		errors int
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			locked, err := guard.RecordFailure(ctx, "alice", "")
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errors++
				return
			}
			if locked {
				locks++
			}
		}()
	}
	wg.Wait()

	if errors != 0 {
		t.Fatalf("unexpected errors: %d", errors)
	}
	// INCR hands each caller a distinct count, so exactly the caller that
	// reached the threshold observes the transition.
	if locks != 1 {
		t.Fatalf("expected exactly one caller to observe the lock transition, got %d", locks)
	}
}

func TestStoreOutagePropagates(t *testing.T) {
	guard, mr, done := newTestGuard(t, LockoutConfig{Threshold: 3, Duration: time.Minute})
	defer done()

	mr.Close()

	if _, err := guard.RecordFailure(context.Background(), "alice", ""); !errors.Is(err, ErrLockoutUnavailable) {
		t.Fatalf("expected ErrLockoutUnavailable, got %v", err)
	}
}
