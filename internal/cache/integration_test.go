//go:build integration

package cache

import (
	"context"
	"testing"

	"github.com/atspro/atspro/internal/testutil"
)

func TestAllow_ExhaustsBurst(t *testing.T) {
	redisURL := testutil.RequireEnv(t, "REDIS_URL")

	c, err := New(t.Context(), redisURL)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	subject := "burst-" + t.Name()
	t.Cleanup(func() { c.Client().Del(context.Background(), BucketKey(ScopeLogin, subject)) })

	limit := Limit{PerMinute: 1, Burst: 2}
	for i := 0; i < 2; i++ {
		res, err := c.Allow(t.Context(), ScopeLogin, subject, limit)
		if err != nil {
			t.Fatalf("Allow() error = %v", err)
		}
		if !res.Allowed {
			t.Fatalf("request %d denied, want allowed", i)
		}
	}

	res, err := c.Allow(t.Context(), ScopeLogin, subject, limit)
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if res.Allowed {
		t.Error("third request allowed, want denied")
	}
	if res.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want positive", res.RetryAfter)
	}
}

func TestConnect_BadURL(t *testing.T) {
	if _, err := Connect(t.Context(), "not-a-url", PoolOptions{}); err == nil {
		t.Fatal("Connect() error = nil, want parse error")
	}
}
