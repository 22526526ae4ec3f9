package authclient

import "context"

type requestIDContextKey struct{}

// WithRequestID attaches a correlation id that the dispatcher sends as
// X-Request-ID instead of generating one. The retry after a refresh reuses it.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, id)
}

func requestIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDContextKey{}).(string); ok {
		return v
	}
	return ""
}
