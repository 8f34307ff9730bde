package flows

import "context"

// AuthorizeFailureKind classifies authorization failures for root-level mapping.
type AuthorizeFailureKind int

const (
	AuthorizeFailureNone AuthorizeFailureKind = iota
	AuthorizeFailureRateLimited
	AuthorizeFailureToken
)

// AuthorizeResult carries the authenticated identity or failure metadata.
type AuthorizeResult struct {
	Failure  AuthorizeFailureKind
	Err      error
	Identity string
	Scope    string
}

// AuthorizeDeps captures per-request authorization dependencies.
type AuthorizeDeps struct {
	CheckRate func(ctx context.Context, key string) error
	Validate  func(token string) (identity, scope string, err error)
}

// RunAuthorize executes the per-request flow: rate check on the caller's
// key, then stateless token validation. No store access beyond the rate
// counter.
func RunAuthorize(ctx context.Context, token, rateKey string, deps AuthorizeDeps) AuthorizeResult {
	if deps.CheckRate != nil {
		if err := deps.CheckRate(ctx, rateKey); err != nil {
			return AuthorizeResult{Failure: AuthorizeFailureRateLimited, Err: err}
		}
	}

	identity, scope, err := deps.Validate(token)
	if err != nil {
		return AuthorizeResult{Failure: AuthorizeFailureToken, Err: err}
	}

	return AuthorizeResult{
		Failure:  AuthorizeFailureNone,
		Identity: identity,
		Scope:    scope,
	}
}
