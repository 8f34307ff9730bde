package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LockoutConfig holds configuration for the failed-login lockout guard.
type LockoutConfig struct {
	// Threshold is the number of consecutive failures that locks further
	// attempts.
	Threshold int
	// Duration is how long a lock lasts and doubles as the rolling window
	// over which failures accumulate.
	Duration time.Duration
	// PerOrigin additionally tracks failures per origin address. Keying on
	// identity alone would let a third party lock a victim out at will, so
	// this defaults to on.
	PerOrigin bool
	// Prefix namespaces the counter keys.
	Prefix string
}

var (
	// ErrLockoutUnavailable indicates the lockout backend is unreachable.
	ErrLockoutUnavailable = errors.New("lockout backend unavailable")
)

// Decision is the outcome of a lockout check.
type Decision struct {
	Allowed bool
	// RetryAfter is how long until the lock expires. Zero when Allowed.
	RetryAfter time.Duration
}

// LockoutGuard tracks consecutive failed login attempts per identity and
// origin in Redis and blocks further attempts once the threshold is
// reached. All state lives in the store; concurrent request handlers share
// the same counters.
type LockoutGuard struct {
	redis  redis.UniversalClient
	config LockoutConfig
}

// NewLockoutGuard creates a lockout guard backed by the given Redis client.
func NewLockoutGuard(redisClient redis.UniversalClient, cfg LockoutConfig) *LockoutGuard {
	if cfg.Prefix == "" {
		cfg.Prefix = "ac"
	}
	return &LockoutGuard{redis: redisClient, config: cfg}
}

func (l *LockoutGuard) identityKey(identity string) string {
	return l.config.Prefix + ":lo:i:" + identity
}

func (l *LockoutGuard) originKey(origin string) string {
	return l.config.Prefix + ":lo:o:" + origin
}

// Check reports whether an attempt for (identity, origin) is currently
// allowed. Must be called before credential verification so locked
// identities never reach the verifier.
func (l *LockoutGuard) Check(ctx context.Context, identity, origin string) (Decision, error) {
	keys := l.keys(identity, origin)

	var retryAfter time.Duration
	locked := false

	for _, key := range keys {
		count, err := l.count(ctx, key)
		if err != nil {
			return Decision{}, err
		}
		if count < int64(l.config.Threshold) {
			continue
		}

		locked = true
		ttl, err := l.redis.PTTL(ctx, key).Result()
		if err != nil {
			return Decision{}, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
		}
		if ttl > retryAfter {
			retryAfter = ttl
		}
	}

	if locked {
		return Decision{Allowed: false, RetryAfter: retryAfter}, nil
	}
	return Decision{Allowed: true}, nil
}

// RecordFailure increments the failure counters. Returns true when this
// failure crossed the threshold; the counter TTL is re-armed at that point
// so the lock lasts the full configured duration from the locking failure.
// Redis INCR is atomic, so concurrent failures are all counted and exactly
// one caller observes the crossing.
func (l *LockoutGuard) RecordFailure(ctx context.Context, identity, origin string) (bool, error) {
	locked := false

	for _, key := range l.keys(identity, origin) {
		count, err := l.redis.Incr(ctx, key).Result()
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
		}

		// First failure opens the rolling window; crossing the threshold
		// re-arms it so the lock runs its full course.
		if count == 1 || count == int64(l.config.Threshold) {
			if err := l.redis.Expire(ctx, key, l.config.Duration).Err(); err != nil {
				return false, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
			}
		}

		if count >= int64(l.config.Threshold) {
			locked = true
		}
	}

	return locked, nil
}

// Reset clears the failure counters after a successful authentication.
func (l *LockoutGuard) Reset(ctx context.Context, identity, origin string) error {
	if err := l.redis.Del(ctx, l.keys(identity, origin)...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return nil
}

// FailureCount returns the identity-scoped counter. Missing keys return
// zero and do not reveal account existence.
func (l *LockoutGuard) FailureCount(ctx context.Context, identity string) (int, error) {
	count, err := l.count(ctx, l.identityKey(identity))
	return int(count), err
}

func (l *LockoutGuard) keys(identity, origin string) []string {
	keys := []string{l.identityKey(identity)}
	if l.config.PerOrigin && origin != "" {
		keys = append(keys, l.originKey(origin))
	}
	return keys
}

func (l *LockoutGuard) count(ctx context.Context, key string) (int64, error) {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return count, nil
}
