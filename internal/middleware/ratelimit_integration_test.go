//go:build integration

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/atspro/atspro/internal/auth"
	"github.com/atspro/atspro/internal/cache"
	"github.com/atspro/atspro/internal/testutil"
)

// A burst of parallel analyses from one user must be cut at the bucket
// size by both limiter backends.
func TestRateLimitUser_ParallelBurst(t *testing.T) {
	redisURL := testutil.RequireEnv(t, "REDIS_URL")

	shared, err := cache.New(t.Context(), redisURL)
	if err != nil {
		t.Fatalf("cache.New() error = %v", err)
	}
	t.Cleanup(func() { _ = shared.Close() })

	backends := map[string]Limiter{
		"redis": shared,
		"local": cache.NewLocalLimiter(),
	}

	for name, limiter := range backends {
		t.Run(name, func(t *testing.T) {
			user := testutil.NewUser("burst-" + name + "-" + t.Name())
			t.Cleanup(func() {
				shared.Client().Del(context.Background(), cache.BucketKey(cache.ScopeAnalysis, user.ID))
			})

			h := RateLimitUser(RateLimitConfig{Logger: testutil.DiscardLogger(), Limiter: limiter},
				cache.ScopeAnalysis, cache.Limit{PerMinute: 1, Burst: 5})(okHandler())

			var ok, limited atomic.Int64
			var g errgroup.Group
			for range 20 {
				g.Go(func() error {
					req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses", nil)
					req = req.WithContext(auth.ContextWithIdentity(req.Context(), &auth.Identity{User: user}))
					rec := httptest.NewRecorder()
					h.ServeHTTP(rec, req)
					switch rec.Code {
					case http.StatusOK:
						ok.Add(1)
					case http.StatusTooManyRequests:
						limited.Add(1)
					}
					return nil
				})
			}
			_ = g.Wait()

			if ok.Load() != 5 || limited.Load() != 15 {
				t.Errorf("ok=%d limited=%d, want 5 and 15", ok.Load(), limited.Load())
			}
		})
	}
}
