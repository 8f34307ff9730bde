package rate

import "errors"

var (
	// ErrRateLimited means the key exhausted its window budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps infrastructure failures from the counter store.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
