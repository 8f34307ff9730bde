package flows

import (
	"context"
	"errors"
	"time"
)

// LoginFailureKind classifies login flow failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureRateLimited
	LoginFailureLocked
	LoginFailureLockoutCheck
	LoginFailureLookup
	LoginFailureVerify
	LoginFailureInvalidCredentials
	LoginFailureReset
	LoginFailureIssue
)

// LoginCredential is the flow-local view of a credential record.
type LoginCredential struct {
	Identity   string
	SecretHash string
	Scope      string
}

// LockoutDecision mirrors the guard's check outcome.
type LockoutDecision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// LoginResult carries either the issued token pair or failure metadata.
type LoginResult struct {
	Failure      LoginFailureKind
	Err          error
	Identity     string
	RetryAfter   time.Duration
	AccessToken  string
	RefreshToken string
}

// LoginDeps captures login flow dependencies.
type LoginDeps struct {
	LockDuration time.Duration

	CheckRate     func(ctx context.Context, origin string) error
	CheckLockout  func(ctx context.Context, identity, origin string) (LockoutDecision, error)
	Lookup        func(ctx context.Context, identity string) (LoginCredential, error)
	VerifySecret  func(secret, hash string) (bool, error)
	VerifyDummy   func(secret string)
	RecordFailure func(ctx context.Context, identity, origin string) (bool, error)
	ResetFailures func(ctx context.Context, identity, origin string) error
	IssueTokens   func(ctx context.Context, identity, scope string) (access, refresh string, err error)

	// IdentityUnknown is the collaborator's not-found sentinel. The flow
	// treats it exactly like a wrong secret.
	IdentityUnknown error

	Warn func(string, ...any)
}

// RunLogin executes the login flow: rate check, lockout check, credential
// verification, failure accounting, token issuance. The lockout check runs
// before verification so a locked identity never causes hashing work, and
// unknown identities take the same failure path as wrong secrets.
func RunLogin(ctx context.Context, identity, secret, origin string, deps LoginDeps) LoginResult {
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}

	if deps.CheckRate != nil {
		if err := deps.CheckRate(ctx, origin); err != nil {
			return LoginResult{Failure: LoginFailureRateLimited, Err: err, Identity: identity}
		}
	}

	decision, err := deps.CheckLockout(ctx, identity, origin)
	if err != nil {
		return LoginResult{Failure: LoginFailureLockoutCheck, Err: err, Identity: identity}
	}
	if !decision.Allowed {
		return LoginResult{
			Failure:    LoginFailureLocked,
			Identity:   identity,
			RetryAfter: decision.RetryAfter,
		}
	}

	cred, err := deps.Lookup(ctx, identity)
	if err != nil {
		if deps.IdentityUnknown != nil && errors.Is(err, deps.IdentityUnknown) {
			// Spend the same hashing work as a real verification so
			// timing does not reveal whether the identity exists.
			if deps.VerifyDummy != nil {
				deps.VerifyDummy(secret)
			}
			return loginFailure(ctx, identity, origin, deps)
		}
		return LoginResult{Failure: LoginFailureLookup, Err: err, Identity: identity}
	}

	match, err := deps.VerifySecret(secret, cred.SecretHash)
	if err != nil {
		return LoginResult{Failure: LoginFailureVerify, Err: err, Identity: identity}
	}
	if !match {
		return loginFailure(ctx, identity, origin, deps)
	}

	if err := deps.ResetFailures(ctx, identity, origin); err != nil {
		return LoginResult{Failure: LoginFailureReset, Err: err, Identity: identity}
	}

	access, refreshTok, err := deps.IssueTokens(ctx, identity, cred.Scope)
	if err != nil {
		return LoginResult{Failure: LoginFailureIssue, Err: err, Identity: identity}
	}

	return LoginResult{
		Failure:      LoginFailureNone,
		Identity:     identity,
		AccessToken:  access,
		RefreshToken: refreshTok,
	}
}

func loginFailure(ctx context.Context, identity, origin string, deps LoginDeps) LoginResult {
	locked, err := deps.RecordFailure(ctx, identity, origin)
	if err != nil {
		return LoginResult{Failure: LoginFailureLockoutCheck, Err: err, Identity: identity}
	}
	if locked {
		return LoginResult{
			Failure:    LoginFailureLocked,
			Identity:   identity,
			RetryAfter: deps.LockDuration,
		}
	}
	return LoginResult{Failure: LoginFailureInvalidCredentials, Identity: identity}
}
