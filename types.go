package authcore

import "context"

// CredentialRecord is the engine's read-only view of a stored credential.
// The identity-management collaborator owns the records; the engine only
// reads them during verification.
type CredentialRecord struct {
	Identity   string
	SecretHash string // PHC-encoded argon2id hash
	Scope      string // carried into issued tokens, e.g. "user" or "admin"
}

// CredentialSource looks up credential records by identity. Implementations
// return [ErrIdentityUnknown] (possibly wrapped) for absent identities and
// must never return raw secrets.
type CredentialSource interface {
	Lookup(ctx context.Context, identity string) (CredentialRecord, error)
}

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AuthResult is returned by [Engine.Authorize] for a valid access token.
type AuthResult struct {
	Identity string
	Scope    string
}
