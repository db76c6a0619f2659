package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "rl:"

// RedisStore is the shared-deployment CounterStore: INCR with a conditional
// EXPIRE on the first hit, key TTL standing in for the sweep. Suitable when
// multiple instances must share one quota view.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// Incr implements CounterStore.
func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	k := redisKeyPrefix + key

	count, err := s.client.Incr(ctx, k).Result()
	if err != nil {
		return 0, time.Time{}, err
	}

	if count == 1 {
		if err := s.client.Expire(ctx, k, window).Err(); err != nil {
			return 0, time.Time{}, err
		}
	}

	ttl, err := s.client.PTTL(ctx, k).Result()
	if err != nil {
		return 0, time.Time{}, err
	}
	if ttl < 0 {
		// TTL lost (e.g. the EXPIRE raced a flush); restore it so the key
		// cannot count forever.
		if err := s.client.Expire(ctx, k, window).Err(); err != nil {
			return 0, time.Time{}, err
		}
		ttl = window
	}

	return count, time.Now().Add(ttl), nil
}
