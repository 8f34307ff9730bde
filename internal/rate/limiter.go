package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds request rate limiter tuning parameters.
type Config struct {
	// Ceiling is the maximum number of requests per key per window.
	Ceiling int
	// Window is the fixed counting window.
	Window time.Duration
	// FailOpen controls behavior when Redis is unreachable. The default
	// (false) rejects requests with ErrRedisUnavailable: unlimited traffic
	// during a store outage would defeat the limiter entirely. Deployments
	// that prefer availability over protection can flip this.
	FailOpen bool
	// Prefix namespaces the counter keys.
	Prefix string
}

// Limiter enforces a fixed-window request ceiling per key (identity or
// origin address) using Redis counters. It keeps no in-process state, so any
// number of request handlers can share the same window.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "ac"
	}
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

func (l *Limiter) key(k string) string {
	return l.config.Prefix + ":rl:" + k
}

// Allow counts the request against key's current window. Returns
// ErrRateLimited once the ceiling is exceeded; the rejected request has
// still been counted, so hammering a saturated key never makes progress.
func (l *Limiter) Allow(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}

	count, err := l.incrementWithTTL(ctx, l.key(key), l.config.Window)
	if err != nil {
		if l.config.FailOpen {
			return nil
		}
		return err
	}
	if count > int64(l.config.Ceiling) {
		return ErrRateLimited
	}

	return nil
}

// Remaining reports how many requests key has left in the current window.
// Missing keys return the full ceiling.
func (l *Limiter) Remaining(ctx context.Context, key string) (int, error) {
	count, err := l.redis.Get(ctx, l.key(key)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return l.config.Ceiling, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	remaining := l.config.Ceiling - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}
