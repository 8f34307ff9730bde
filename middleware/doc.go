// Package middleware provides a framework-free net/http guard that
// delegates bearer-token authorization to an authcore Engine.
package middleware
