// Package authcore is the authentication and abuse-protection core of the
// task API: credential verification, progressive lockout, short-lived
// access tokens with rotating refresh tokens, and request rate limiting,
// all backed by Redis as the single source of truth for counter state.
//
// # Building an engine
//
//	engine, err := authcore.New().
//		WithConfig(cfg).
//		WithRedis(redisClient).
//		WithCredentialSource(users).
//		Build()
//
// The credential source is the identity-management collaborator; the engine
// only reads hashes from it and never stores secrets itself.
//
// # Flows
//
//   - [Engine.Login] — rate check, lockout check, argon2id verification,
//     failure accounting, token issuance.
//   - [Engine.Refresh] — rotation with store-side compare-and-swap; reuse of
//     a superseded token revokes the whole family.
//   - [Engine.Authorize] — rate check plus stateless JWT validation for
//     every protected request.
//
// Access tokens cannot be revoked individually. Their short TTL is the
// mitigation, and it is what keeps per-request validation free of store
// round-trips; deployments needing instant revocation should shorten the
// TTL rather than expect a revocation list.
package authcore
