// Package cache holds the shared Redis connection and the token buckets
// that throttle analysis and login requests.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// PoolOptions tunes the go-redis connection pool. Zero fields keep the
// defaults below.
type PoolOptions struct {
	Size        int
	MinIdle     int
	WaitTimeout time.Duration
	IdleTimeout time.Duration
	PingTimeout time.Duration
}

func (p PoolOptions) withDefaults() PoolOptions {
	if p.Size <= 0 {
		p.Size = 10
	}
	if p.MinIdle <= 0 {
		p.MinIdle = 2
	}
	if p.WaitTimeout <= 0 {
		p.WaitTimeout = 4 * time.Second
	}
	if p.IdleTimeout <= 0 {
		p.IdleTimeout = 5 * time.Minute
	}
	if p.PingTimeout <= 0 {
		p.PingTimeout = 3 * time.Second
	}
	return p
}

// Connect parses redisURL, applies pool and verifies the server answers.
// The returned client belongs to the caller.
func Connect(ctx context.Context, redisURL string, pool PoolOptions) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	pool = pool.withDefaults()
	opt.PoolSize = pool.Size
	opt.MinIdleConns = pool.MinIdle
	opt.PoolTimeout = pool.WaitTimeout
	opt.ConnMaxIdleTime = pool.IdleTimeout

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, pool.PingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opt.Addr, err)
	}
	return client, nil
}

// Cache is the process-wide Redis handle. It backs the rate limiter, the
// redis events driver and the timeline consumer.
type Cache struct {
	client *redis.Client
}

// New connects with default pool settings.
func New(ctx context.Context, redisURL string) (*Cache, error) {
	client, err := Connect(ctx, redisURL, PoolOptions{})
	if err != nil {
		return nil, err
	}
	return &Cache{client: client}, nil
}

// Ping reports whether Redis answers; used by readiness.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the pool.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Client exposes the connection for stream publishers and consumers.
func (c *Cache) Client() *redis.Client {
	return c.client
}
