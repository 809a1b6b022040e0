// Package localstore provides the key-value store that backs local-first
// persistence. Values are opaque byte slices (JSON in practice).
package localstore

import (
	"context"
	"errors"
	"fmt"
)

// ErrIOFailure marks a failed local read or write. There is no further
// fallback below this layer, so callers must surface it.
var ErrIOFailure = errors.New("local storage failure")

// Backend names accepted by Open.
const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Store is a minimal key-value store.
type Store interface {
	// Get returns the value and true, or nil and false when the key is absent.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set replaces the value stored under key.
	Set(ctx context.Context, key string, value []byte) error
	Ping(ctx context.Context) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend     string
	Dir         string
	RedisURL    string
	DatabaseURL string
	Table       string
}

// Open creates the store named by opts.Backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case "", BackendFile:
		return NewFileStore(opts.Dir)
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendRedis:
		return NewRedisStore(ctx, opts.RedisURL)
	case BackendPostgres:
		return NewPostgresStore(ctx, opts.DatabaseURL, opts.Table)
	default:
		return nil, fmt.Errorf("unknown local store backend %q", opts.Backend)
	}
}

// ioError wraps err so that errors.Is(err, ErrIOFailure) holds.
func ioError(op, key string, err error) error {
	return fmt.Errorf("%w: %s %q: %w", ErrIOFailure, op, key, err)
}
