// Package refresh implements the Redis-backed refresh-token family store.
//
// # Model
//
// Each original refresh issuance opens a family. The store keeps exactly one
// record per family: the hash of the currently valid token plus the identity
// and scope it was issued for. Rotation compare-and-swaps the hash inside
// Redis, so at most one valid token exists per family at any time.
//
// # Replay handling
//
// Presenting a hash that does not match the stored one means a superseded
// token was reused. The store destroys the family record in the same script,
// which revokes every outstanding token in that lineage.
//
// # Architecture boundaries
//
// This package owns family state only. Token encoding and the decision of
// what to do on reuse (auditing, error mapping) belong to the Engine.
package refresh
