package authcore

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredentials is returned for a wrong secret or an unknown
	// identity. The two cases are intentionally indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked means the lockout guard is rejecting attempts for
	// this identity or origin. Use errors.As with [*LockoutError] to read
	// the remaining lock time.
	ErrAccountLocked = errors.New("account locked")
	// ErrRateLimited means the request ceiling for the window was exceeded.
	ErrRateLimited = errors.New("rate limited")
	// ErrTokenExpired is returned for access tokens past their expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenMalformed covers all other access-token validation failures.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrReplayDetected means an already-rotated refresh token was
	// presented. The whole family is revoked when this is returned.
	ErrReplayDetected = errors.New("refresh token replay detected")
	// ErrRefreshInvalid is returned for malformed, expired, or revoked
	// refresh tokens.
	ErrRefreshInvalid = errors.New("invalid refresh token")
	// ErrStoreUnavailable wraps counter-store infrastructure failures.
	// Never silently retried: a retry loop around a lockout or rate check
	// could bypass the protection the check exists for.
	ErrStoreUnavailable = errors.New("counter store unavailable")
	// ErrIdentityUnknown is the sentinel a CredentialSource returns for an
	// absent identity. It never escapes the engine; callers see
	// ErrInvalidCredentials.
	ErrIdentityUnknown = errors.New("identity unknown")
	// ErrEngineNotReady is returned when the engine is missing required
	// collaborators.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// LockoutError carries the remaining lock time alongside ErrAccountLocked
// semantics.
type LockoutError struct {
	RetryAfter time.Duration
}

func (e *LockoutError) Error() string {
	return fmt.Sprintf("account locked: retry after %ds", int(e.RetryAfter.Seconds()))
}

// Is makes errors.Is(err, ErrAccountLocked) match.
func (e *LockoutError) Is(target error) bool {
	return target == ErrAccountLocked
}
