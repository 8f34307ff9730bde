// Package rate provides the fixed-window Redis request limiter used by the
// engine for login, refresh, and per-request throughput ceilings.
package rate
