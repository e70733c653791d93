package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend is a Backend shared through Redis. Expiry is delegated to
// Redis key TTLs.
type RedisBackend struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisBackend namespaces every key under prefix.
func NewRedisBackend(redisClient redis.UniversalClient, prefix string) *RedisBackend {
	return &RedisBackend{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (r *RedisBackend) key(key string) string {
	return r.prefix + ":" + key
}

// Insert implements Backend with SET NX PX.
func (r *RedisBackend) Insert(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ok, err := r.redis.SetNX(ctx, r.key(key), value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return ok, nil
}

// Take implements Backend with GET and DEL inside one MULTI/EXEC, so two
// concurrent takes cannot both observe the value.
func (r *RedisBackend) Take(ctx context.Context, key string) ([]byte, bool, error) {
	k := r.key(key)

	var get *redis.StringCmd
	_, err := r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		get = pipe.Get(ctx, k)
		pipe.Del(ctx, k)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	value, err := get.Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return value, true, nil
}

// Contains implements Backend.
func (r *RedisBackend) Contains(ctx context.Context, key string) (bool, error) {
	n, err := r.redis.Exists(ctx, r.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return n > 0, nil
}
