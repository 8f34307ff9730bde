package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/taskforge/authcore/internal"
	"github.com/taskforge/authcore/internal/limiters"
	"github.com/taskforge/authcore/internal/rate"
	"github.com/taskforge/authcore/jwt"
	"github.com/taskforge/authcore/password"
	"github.com/taskforge/authcore/refresh"
)

// Engine composes the lockout guard, rate limiter, credential verifier, and
// token issuer into the login, refresh, and authorize flows. Engines are
// built once via [Builder] and are safe for concurrent use: all shared
// counters live in Redis, never in the engine itself.
type Engine struct {
	config       Config
	creds        CredentialSource
	hasher       *password.Argon2
	jwtManager   *jwt.Manager
	refreshStore *refresh.Store
	rateLimiter  *rate.Limiter
	lockout      *limiters.LockoutGuard
	audit        *auditDispatcher
	metrics      *Metrics
	logger       *zap.Logger
}

// Close flushes the audit dispatcher. The engine must not be used after.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

// HashSecret derives a storable hash for a new credential at the engine's
// configured cost parameters. The identity-management collaborator calls
// this when provisioning or changing credentials.
func (e *Engine) HashSecret(secret string) (string, error) {
	if e == nil || e.hasher == nil {
		return "", ErrEngineNotReady
	}
	return e.hasher.Hash(secret)
}

// issueTokenPair opens a new refresh-token family and mints the matching
// access token. The family record is in the store before either token is
// returned.
func (e *Engine) issueTokenPair(ctx context.Context, identity, scope string) (TokenPair, error) {
	family, err := internal.NewFamilyID()
	if err != nil {
		return TokenPair{}, err
	}
	secret, err := internal.NewRefreshSecret()
	if err != nil {
		return TokenPair{}, err
	}

	if err := e.refreshStore.Create(ctx, family, internal.HashRefreshSecret(secret), identity, scope); err != nil {
		return TokenPair{}, err
	}

	access, err := e.jwtManager.CreateAccess(identity, scope)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: internal.EncodeRefreshToken(family, secret),
	}, nil
}

// mapStoreErr folds subpackage infrastructure sentinels into
// ErrStoreUnavailable; anything else passes through unchanged.
func (e *Engine) mapStoreErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, rate.ErrRedisUnavailable) ||
		errors.Is(err, limiters.ErrLockoutUnavailable) ||
		errors.Is(err, refresh.ErrRedisUnavailable) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return err
}

func (e *Engine) emit(ctx context.Context, eventType, identity, origin string, success bool, failure error, metadata map[string]string) {
	if e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: eventType,
		Identity:  identity,
		Origin:    origin,
		Success:   success,
		Metadata:  metadata,
	}
	if failure != nil {
		event.Error = failure.Error()
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) warn(msg string, args ...any) {
	if e.logger == nil {
		return
	}
	e.logger.Sugar().Warnw(msg, args...)
}
