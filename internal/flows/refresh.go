package flows

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureDecode
	RefreshFailureRateLimited
	RefreshFailureNextSecret
	RefreshFailureReuse
	RefreshFailureNotFound
	RefreshFailureRotate
	RefreshFailureIssueAccess
)

// RefreshResult carries either the issued token pair or failure metadata.
type RefreshResult struct {
	Failure      RefreshFailureKind
	Err          error
	Family       uuid.UUID
	Identity     string
	AccessToken  string
	RefreshToken string
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	// CheckRate meters the caller's origin and runs before the token is
	// even decoded, so malformed or fabricated tokens consume budget too.
	CheckRate func(ctx context.Context, origin string) error
	// CheckFamilyRate additionally meters the decoded family, bounding how
	// fast any single refresh chain can spin.
	CheckFamilyRate func(ctx context.Context, familyKey string) error

	Decode      func(token string) (uuid.UUID, [32]byte, error)
	NewSecret   func() ([32]byte, error)
	Hash        func([32]byte) [32]byte
	Rotate      func(ctx context.Context, family uuid.UUID, providedHash, nextHash [32]byte) (identity, scope string, err error)
	TrackReplay func(ctx context.Context, family uuid.UUID) error
	Encode      func(family uuid.UUID, secret [32]byte) string
	IssueAccess func(identity, scope string) (string, error)

	// Store sentinels, matched with errors.Is.
	ReuseDetected  error
	FamilyNotFound error

	Warn func(string, ...any)
}

// RunRefresh executes refresh rotation: origin rate check, decode,
// per-family rate check, store-side compare-and-swap, and issuance of the
// replacement pair. The new token is in place before anything is returned
// to the caller.
func RunRefresh(ctx context.Context, refreshToken, origin string, deps RefreshDeps) RefreshResult {
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}

	if deps.CheckRate != nil {
		if err := deps.CheckRate(ctx, origin); err != nil {
			return RefreshResult{Failure: RefreshFailureRateLimited, Err: err}
		}
	}

	family, providedSecret, err := deps.Decode(refreshToken)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureDecode, Err: err}
	}

	if deps.CheckFamilyRate != nil {
		if err := deps.CheckFamilyRate(ctx, family.String()); err != nil {
			return RefreshResult{Failure: RefreshFailureRateLimited, Err: err, Family: family}
		}
	}

	nextSecret, err := deps.NewSecret()
	if err != nil {
		return RefreshResult{Failure: RefreshFailureNextSecret, Err: err, Family: family}
	}

	identity, scope, err := deps.Rotate(ctx, family, deps.Hash(providedSecret), deps.Hash(nextSecret))
	if err != nil {
		switch {
		case deps.ReuseDetected != nil && errors.Is(err, deps.ReuseDetected):
			if deps.TrackReplay != nil {
				if trackErr := deps.TrackReplay(ctx, family); trackErr != nil {
					deps.Warn("authcore: replay anomaly tracking failed")
				}
			}
			return RefreshResult{Failure: RefreshFailureReuse, Err: err, Family: family}
		case deps.FamilyNotFound != nil && errors.Is(err, deps.FamilyNotFound):
			return RefreshResult{Failure: RefreshFailureNotFound, Err: err, Family: family}
		default:
			return RefreshResult{Failure: RefreshFailureRotate, Err: err, Family: family}
		}
	}

	access, err := deps.IssueAccess(identity, scope)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureIssueAccess, Err: err, Family: family, Identity: identity}
	}

	return RefreshResult{
		Failure:      RefreshFailureNone,
		Family:       family,
		Identity:     identity,
		AccessToken:  access,
		RefreshToken: deps.Encode(family, nextSecret),
	}
}
