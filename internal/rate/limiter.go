package rate

import (
	"context"
	"errors"
	"time"
)

// Config sets the ceiling and the trailing window length.
type Config struct {
	Requests int
	Window   time.Duration
}

func (c Config) validate() error {
	if c.Requests <= 0 {
		return errors.New("rate limit requests must be > 0")
	}
	if c.Window <= 0 {
		return errors.New("rate limit window must be > 0")
	}
	return nil
}

// Limiter is satisfied by MemoryLimiter and RedisLimiter.
type Limiter interface {
	CheckAndRecord(ctx context.Context, clientKey string) (bool, error)
}

// Enforce converts a rejected CheckAndRecord into ErrRateLimited.
func Enforce(ctx context.Context, l Limiter, clientKey string) error {
	allowed, err := l.CheckAndRecord(ctx, clientKey)
	if err != nil {
		return err
	}
	if !allowed {
		return ErrRateLimited
	}
	return nil
}
