package coursegate

import "context"

type clientIPContextKey struct{}

// WithClientIP attaches the caller's resolved client identifier to ctx. The
// engine records it on audit events; the middleware package sets it for every
// request it passes through.
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
