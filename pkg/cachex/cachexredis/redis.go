package cachexredis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vantak/gatehouse/pkg/cachex"
)

// RedisStore implements cachex.Store backed by Redis.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore creates a new Redis-backed cache store.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// Get returns the value for key, with a miss reported via the boolean.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, cachex.ErrRegistry.NewWithCause(cachex.CodeUnavailable, err).
			WithDetail("key", key)
	}
	return data, true, nil
}

// Set writes a value with the given TTL.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return cachex.ErrRegistry.NewWithCause(cachex.CodeUnavailable, err).
			WithDetail("key", key)
	}
	return nil
}

// Delete removes a key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return cachex.ErrRegistry.NewWithCause(cachex.CodeUnavailable, err).
			WithDetail("key", key)
	}
	return nil
}
