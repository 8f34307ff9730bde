package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/taskforge/authcore/internal/flows"
	"github.com/taskforge/authcore/internal/rate"
)

// Login authenticates identity+secret and issues a token pair. The origin
// address, when attached via [WithClientIP], feeds per-origin rate limiting
// and origin-scoped lockout counters.
//
// Failure modes: [ErrRateLimited], [ErrAccountLocked] (as [*LockoutError]
// with the remaining lock time), [ErrInvalidCredentials] (identical for
// wrong secret and unknown identity), [ErrStoreUnavailable].
func (e *Engine) Login(ctx context.Context, identity, secret string) (TokenPair, error) {
	if e == nil || e.creds == nil || e.hasher == nil {
		return TokenPair{}, ErrEngineNotReady
	}

	origin := clientIPFromContext(ctx)

	deps := flows.LoginDeps{
		LockDuration: e.config.Lockout.Duration,
		// Origin-keyed when WithClientIP was used, identity-keyed
		// otherwise. A single shared bucket for all callers would let one
		// noisy client starve every login.
		CheckRate: func(ctx context.Context, origin string) error {
			if origin == "" {
				return e.rateLimiter.Allow(ctx, "login:id:"+identity)
			}
			return e.rateLimiter.Allow(ctx, "login:"+origin)
		},
		CheckLockout: func(ctx context.Context, identity, origin string) (flows.LockoutDecision, error) {
			d, err := e.lockout.Check(ctx, identity, origin)
			return flows.LockoutDecision{Allowed: d.Allowed, RetryAfter: d.RetryAfter}, err
		},
		Lookup: func(ctx context.Context, identity string) (flows.LoginCredential, error) {
			rec, err := e.creds.Lookup(ctx, identity)
			if err != nil {
				return flows.LoginCredential{}, err
			}
			return flows.LoginCredential{
				Identity:   rec.Identity,
				SecretHash: rec.SecretHash,
				Scope:      rec.Scope,
			}, nil
		},
		VerifySecret:  e.hasher.Verify,
		VerifyDummy:   e.hasher.VerifyDummy,
		RecordFailure: e.lockout.RecordFailure,
		ResetFailures: e.lockout.Reset,
		IssueTokens: func(ctx context.Context, identity, scope string) (string, string, error) {
			pair, err := e.issueTokenPair(ctx, identity, scope)
			return pair.AccessToken, pair.RefreshToken, err
		},
		IdentityUnknown: ErrIdentityUnknown,
		Warn:            e.warn,
	}

	res := flows.RunLogin(ctx, identity, secret, origin, deps)

	switch res.Failure {
	case flows.LoginFailureNone:
		e.metrics.Inc(MetricLoginSuccess)
		e.emit(ctx, EventLoginSuccess, identity, origin, true, nil, nil)
		return TokenPair{
			AccessToken:  res.AccessToken,
			RefreshToken: res.RefreshToken,
		}, nil

	case flows.LoginFailureRateLimited:
		if errors.Is(res.Err, rate.ErrRateLimited) {
			e.metrics.Inc(MetricLoginRateLimited)
			e.metrics.Inc(MetricRateLimitHit)
			e.emit(ctx, EventLoginRateLimited, identity, origin, false, ErrRateLimited, nil)
			return TokenPair{}, ErrRateLimited
		}
		return TokenPair{}, e.storeFailure(ctx, identity, origin, res.Err)

	case flows.LoginFailureLocked:
		e.metrics.Inc(MetricAccountLocked)
		lockErr := &LockoutError{RetryAfter: res.RetryAfter}
		e.emit(ctx, EventAccountLocked, identity, origin, false, lockErr, map[string]string{
			"retry_after": res.RetryAfter.String(),
		})
		return TokenPair{}, lockErr

	case flows.LoginFailureInvalidCredentials:
		e.metrics.Inc(MetricLoginFailure)
		e.emit(ctx, EventLoginFailure, identity, origin, false, ErrInvalidCredentials, nil)
		return TokenPair{}, ErrInvalidCredentials

	case flows.LoginFailureVerify:
		// Corrupt credential record; do not leak detail to the caller.
		e.warn("authcore: credential verification error", "identity", identity, "error", res.Err)
		e.emit(ctx, EventLoginFailure, identity, origin, false, res.Err, nil)
		return TokenPair{}, fmt.Errorf("credential verification: %w", res.Err)

	default:
		// Lockout check, lookup, reset, or issuance failed on the
		// infrastructure side.
		return TokenPair{}, e.storeFailure(ctx, identity, origin, res.Err)
	}
}

// LockoutStatus reports the current failure count for an identity. Intended
// for the admin collaborator; missing identities report zero.
func (e *Engine) LockoutStatus(ctx context.Context, identity string) (int, error) {
	if e == nil || e.lockout == nil {
		return 0, ErrEngineNotReady
	}
	count, err := e.lockout.FailureCount(ctx, identity)
	if err != nil {
		return 0, e.mapStoreErr(err)
	}
	return count, nil
}

// UnlockAccount clears lockout counters for an identity (manual unlock).
func (e *Engine) UnlockAccount(ctx context.Context, identity string) error {
	if e == nil || e.lockout == nil {
		return ErrEngineNotReady
	}
	if err := e.lockout.Reset(ctx, identity, ""); err != nil {
		return e.mapStoreErr(err)
	}
	return nil
}

func (e *Engine) storeFailure(ctx context.Context, identity, origin string, err error) error {
	mapped := e.mapStoreErr(err)
	if errors.Is(mapped, ErrStoreUnavailable) {
		e.metrics.Inc(MetricStoreError)
		e.emit(ctx, EventStoreError, identity, origin, false, mapped, nil)
	}
	return mapped
}
