package rate

import "errors"

var (
	// ErrRateLimited is returned once the failure budget for a window is spent.
	ErrRateLimited = errors.New("too many failed login attempts")
	// ErrRedisUnavailable wraps Redis command failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
