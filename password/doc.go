// Package password implements credential hashing and verification with
// argon2id defaults.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Verification is constant-time. [Argon2.NeedsUpgrade] reports when a stored
// hash predates the current cost parameters so the caller can re-hash on the
// next successful login, and [Argon2.VerifyDummy] lets the engine spend the
// same hashing work for unknown identities as for known ones.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Credential storage and
// lockout policy belong to the caller.
package password
