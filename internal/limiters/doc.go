// Package limiters contains the lockout guard that suspends authentication
// attempts for an identity or origin after repeated failures.
package limiters
