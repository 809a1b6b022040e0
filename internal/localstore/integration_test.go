//go:build integration

package localstore

import (
	"context"
	"testing"

	"github.com/oklog/ulid/v2"

	"github.com/atspro/atspro/internal/testutil"
)

func TestRedisStore_Integration(t *testing.T) {
	redisURL := testutil.RequireEnv(t, "REDIS_URL")
	ctx := context.Background()

	s, err := NewRedisStore(ctx, redisURL)
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	defer s.Close()

	exerciseStore(t, s, "test_"+ulid.Make().String())
}

func TestPostgresStore_Integration(t *testing.T) {
	databaseURL := testutil.RequireEnv(t, "DATABASE_URL")
	ctx := context.Background()

	s, err := NewPostgresStore(ctx, databaseURL, "kv_entries_test")
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}
	defer s.Close()

	exerciseStore(t, s, "test_"+ulid.Make().String())
}
