package rate

import "errors"

var (
	// ErrRateLimited is returned by Enforce when a call exceeds the ceiling.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps Redis failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
