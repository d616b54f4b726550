package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CounterStore keeps fixed-window counters.  Hit must be atomic per key:
// check the count against max and, if below, increment it, arming the
// window TTL when the key is created.
type CounterStore interface {
	Hit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Count(ctx context.Context, key string) (int64, error)
	Delete(ctx context.Context, keys ...string) error
}

// hitScript returns 1 when the request is admitted, 0 when the window is
// full.  EXPIRE is only set on the first hit so the window does not slide;
// a key that somehow lost its TTL is re-armed.
var hitScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current >= tonumber(ARGV[1]) then
    return 0
end
local n = redis.call('INCR', KEYS[1])
if n == 1 or redis.call('TTL', KEYS[1]) == -1 then
    redis.call('EXPIRE', KEYS[1], ARGV[2])
end
return 1
`)

// RedisCounterStore is the production CounterStore.
type RedisCounterStore struct {
	rdb redis.Cmdable
}

// NewRedisCounterStore wraps rdb.  Single node, cluster and ring clients all
// satisfy redis.Cmdable.
func NewRedisCounterStore(rdb redis.Cmdable) *RedisCounterStore {
	return &RedisCounterStore{rdb: rdb}
}

func (s *RedisCounterStore) Hit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	secs := int64(window / time.Second)
	if secs < 1 {
		secs = 1
	}
	n, err := hitScript.Run(ctx, s.rdb, []string{key}, limit, secs).Int64()
	if err != nil {
		return false, fmt.Errorf("rate limit script %s: %w", key, err)
	}
	return n == 1, nil
}

func (s *RedisCounterStore) Count(ctx context.Context, key string) (int64, error) {
	n, err := s.rdb.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

func (s *RedisCounterStore) Delete(ctx context.Context, keys ...string) error {
	return s.rdb.Del(ctx, keys...).Err()
}
