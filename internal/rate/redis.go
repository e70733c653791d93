package rate

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisLimiter keeps one sorted set per client key, scored by millisecond
// timestamps.
type RedisLimiter struct {
	redis  redis.UniversalClient
	config Config
	prefix string
	now    func() time.Time
}

// NewRedisLimiter validates cfg. A nil clock means time.Now.
func NewRedisLimiter(redisClient redis.UniversalClient, prefix string, cfg Config, now func() time.Time) (*RedisLimiter, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	if prefix == "" {
		prefix = "rl"
	}
	return &RedisLimiter{redis: redisClient, config: cfg, prefix: prefix, now: now}, nil
}

func (l *RedisLimiter) key(clientKey string) string {
	return l.prefix + ":" + clientKey
}

// CheckAndRecord implements Limiter. Prune, record, trim and count run in one
// MULTI/EXEC so concurrent callers on the same key see a consistent window.
func (l *RedisLimiter) CheckAndRecord(ctx context.Context, clientKey string) (bool, error) {
	key := l.key(clientKey)
	nowMs := l.now().UnixMilli()
	cutoff := nowMs - l.config.Window.Milliseconds()

	var card *redis.IntCmd
	_, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10))
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(nowMs), Member: uuid.NewString()})
		pipe.ZRemRangeByRank(ctx, key, 0, -int64(l.config.Requests+2))
		card = pipe.ZCard(ctx, key)
		pipe.PExpire(ctx, key, l.config.Window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return card.Val() <= int64(l.config.Requests), nil
}
