package authcore

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/taskforge/authcore/internal"
	"github.com/taskforge/authcore/internal/flows"
	"github.com/taskforge/authcore/internal/rate"
	"github.com/taskforge/authcore/refresh"
)

// Refresh rotates a refresh token and returns a new access+refresh pair.
// The presented token is invalid afterwards. Presenting an already-rotated
// token returns [ErrReplayDetected] and revokes the whole family; the
// legitimate holder is logged out with the thief.
//
// Failure modes: [ErrRefreshInvalid], [ErrReplayDetected], [ErrRateLimited],
// [ErrStoreUnavailable].
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if e == nil || e.refreshStore == nil {
		return TokenPair{}, ErrEngineNotReady
	}

	origin := clientIPFromContext(ctx)

	deps := flows.RefreshDeps{
		// The origin check runs before decoding so garbage tokens are
		// throttled too. Without WithClientIP there is no origin to key
		// on; the per-family check below still bounds well-formed tokens.
		CheckRate: func(ctx context.Context, origin string) error {
			if origin == "" {
				return nil
			}
			return e.rateLimiter.Allow(ctx, "refresh:"+origin)
		},
		CheckFamilyRate: func(ctx context.Context, familyKey string) error {
			return e.rateLimiter.Allow(ctx, "refresh:family:"+familyKey)
		},
		Decode:    internal.DecodeRefreshToken,
		NewSecret: internal.NewRefreshSecret,
		Hash:      internal.HashRefreshSecret,
		Rotate:    e.refreshStore.Rotate,
		TrackReplay: func(ctx context.Context, family uuid.UUID) error {
			return e.refreshStore.TrackReplay(ctx, family, e.config.Refresh.TTL)
		},
		Encode:         internal.EncodeRefreshToken,
		IssueAccess:    e.jwtManager.CreateAccess,
		ReuseDetected:  refresh.ErrReuseDetected,
		FamilyNotFound: refresh.ErrFamilyNotFound,
		Warn:           e.warn,
	}

	res := flows.RunRefresh(ctx, refreshToken, origin, deps)

	switch res.Failure {
	case flows.RefreshFailureNone:
		e.metrics.Inc(MetricRefreshSuccess)
		e.emit(ctx, EventRefreshSuccess, res.Identity, origin, true, nil, nil)
		return TokenPair{
			AccessToken:  res.AccessToken,
			RefreshToken: res.RefreshToken,
		}, nil

	case flows.RefreshFailureDecode, flows.RefreshFailureNotFound:
		e.metrics.Inc(MetricRefreshFailure)
		e.emit(ctx, EventRefreshInvalid, "", origin, false, ErrRefreshInvalid, nil)
		return TokenPair{}, ErrRefreshInvalid

	case flows.RefreshFailureRateLimited:
		if errors.Is(res.Err, rate.ErrRateLimited) {
			e.metrics.Inc(MetricRefreshRateLimited)
			e.metrics.Inc(MetricRateLimitHit)
			e.emit(ctx, EventRateLimitHit, "", origin, false, ErrRateLimited, map[string]string{
				"flow": "refresh",
			})
			return TokenPair{}, ErrRateLimited
		}
		return TokenPair{}, e.storeFailure(ctx, "", origin, res.Err)

	case flows.RefreshFailureReuse:
		e.metrics.Inc(MetricReplayDetected)
		e.emit(ctx, EventReplayDetected, "", origin, false, ErrReplayDetected, map[string]string{
			"family": res.Family.String(),
		})
		return TokenPair{}, ErrReplayDetected

	default:
		return TokenPair{}, e.storeFailure(ctx, res.Identity, origin, res.Err)
	}
}

// Logout revokes the refresh-token family the token belongs to. The
// matching access token stays valid until its short TTL runs out; that
// trade-off is what keeps validation store-free.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if e == nil || e.refreshStore == nil {
		return ErrEngineNotReady
	}

	family, _, err := internal.DecodeRefreshToken(refreshToken)
	if err != nil {
		return ErrRefreshInvalid
	}

	if err := e.refreshStore.Revoke(ctx, family); err != nil {
		return e.storeFailure(ctx, "", clientIPFromContext(ctx), err)
	}

	e.metrics.Inc(MetricLogout)
	e.emit(ctx, EventLogout, "", clientIPFromContext(ctx), true, nil, map[string]string{
		"family": family.String(),
	})
	return nil
}
