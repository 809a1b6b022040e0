package localstore

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/atspro/atspro/internal/cache"
)

// RedisStore keeps values as plain Redis strings without expiry.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a RedisStore from a redis:// URL.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	client, err := cache.Connect(ctx, redisURL, cache.PoolOptions{})
	if err != nil {
		return nil, ioError("connect", "redis", err)
	}
	return &RedisStore{client: client}, nil
}

// Get reads key. redis.Nil is reported as a miss.
func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, ioError("get", key, err)
	}
	return data, true, nil
}

// Set writes key with no TTL.
func (r *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return ioError("set", key, err)
	}
	return nil
}

// Ping checks Redis connectivity.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
