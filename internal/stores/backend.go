package stores

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidOrExpired is returned for unknown, expired, malformed or
	// already consumed records. Callers cannot tell these cases apart.
	ErrInvalidOrExpired = errors.New("invalid or expired")
	// ErrCodeSpaceExhausted is returned when no free code was found after
	// repeated collisions.
	ErrCodeSpaceExhausted = errors.New("reset code space exhausted")
	// ErrBackendUnavailable wraps storage failures.
	ErrBackendUnavailable = errors.New("store backend unavailable")
)

// Backend is a keyed map of values with a time-to-live.
//
// Implementations must make Insert and Take atomic per key: at most one
// concurrent Take of a live key returns found.
type Backend interface {
	// Insert stores value under key for ttl unless a live entry already exists.
	Insert(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	// Take removes key and returns the value it held while live.
	Take(ctx context.Context, key string) ([]byte, bool, error)
	// Contains reports whether key holds a live entry.
	Contains(ctx context.Context, key string) (bool, error)
}
