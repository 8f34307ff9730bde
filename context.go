package authcore

import "context"

type clientIPContextKey struct{}

// WithClientIP attaches the caller's origin address to ctx. The Engine uses
// it for per-origin rate limiting, origin-scoped lockout counters, and audit
// events. Without it, only identity-scoped protection applies.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}
