package authcore

import (
	"context"
	"errors"

	"github.com/taskforge/authcore/internal/flows"
	"github.com/taskforge/authcore/internal/rate"
	"github.com/taskforge/authcore/jwt"
)

// Authorize runs the per-request flow: rate check on rateKey (identity or
// origin, chosen by the caller), then stateless access-token validation.
// No store access beyond the rate counter, so it is cheap enough for every
// protected request.
//
// Failure modes: [ErrRateLimited], [ErrTokenExpired], [ErrTokenMalformed],
// [ErrStoreUnavailable].
func (e *Engine) Authorize(ctx context.Context, accessToken, rateKey string) (*AuthResult, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}

	deps := flows.AuthorizeDeps{
		CheckRate: func(ctx context.Context, key string) error {
			return e.rateLimiter.Allow(ctx, "api:"+key)
		},
		Validate: func(token string) (string, string, error) {
			claims, err := e.jwtManager.ParseAccess(token)
			if err != nil {
				return "", "", err
			}
			return claims.UID, claims.Scope, nil
		},
	}

	res := flows.RunAuthorize(ctx, accessToken, rateKey, deps)

	switch res.Failure {
	case flows.AuthorizeFailureNone:
		e.metrics.Inc(MetricAuthorizeSuccess)
		return &AuthResult{Identity: res.Identity, Scope: res.Scope}, nil

	case flows.AuthorizeFailureRateLimited:
		if errors.Is(res.Err, rate.ErrRateLimited) {
			e.metrics.Inc(MetricRateLimitHit)
			e.emit(ctx, EventRateLimitHit, "", rateKey, false, ErrRateLimited, map[string]string{
				"flow": "authorize",
			})
			return nil, ErrRateLimited
		}
		return nil, e.storeFailure(ctx, "", rateKey, res.Err)

	default:
		e.metrics.Inc(MetricAuthorizeRejected)
		e.emit(ctx, EventAuthorizeDenied, "", rateKey, false, res.Err, nil)
		if errors.Is(res.Err, jwt.ErrExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenMalformed
	}
}

// ValidateAccess validates an access token without touching the rate
// limiter. Pure and side-effect free; useful for collaborators that meter
// requests themselves.
func (e *Engine) ValidateAccess(accessToken string) (*AuthResult, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.jwtManager.ParseAccess(accessToken)
	if err != nil {
		if errors.Is(err, jwt.ErrExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenMalformed
	}

	return &AuthResult{Identity: claims.UID, Scope: claims.Scope}, nil
}
