// Package internal holds helpers that are private to authcore: refresh-token
// encoding and the per-token secret derivation shared by the engine and the
// refresh store.
//
// # Sub-packages
//
//   - flows — pure-function orchestrators for the login, refresh, and
//     authorize operations
//   - limiters — the failed-login lockout guard
//   - rate — the Redis-backed fixed-window request limiter
//
// Nothing in here may appear in the public authcore API or be imported from
// outside the module.
package internal
