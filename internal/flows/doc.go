// Package flows holds the pure orchestration logic for login, refresh, and
// per-request authorization. Each flow takes its collaborators as a Deps
// struct of plain functions, so the logic is testable without Redis, JWT
// keys, or the root package.
package flows
