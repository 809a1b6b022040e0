package middleware

import (
	"context"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/atspro/atspro/internal/auth"
	"github.com/atspro/atspro/internal/cache"
)

// Limiter consumes tokens from a named bucket. *cache.Cache and
// *cache.LocalLimiter implement it.
type Limiter interface {
	Allow(ctx context.Context, scope, subject string, limit cache.Limit) (*cache.RateLimitResult, error)
}

// RateLimitConfig is shared by every throttled route. A nil Limiter turns
// throttling off.
type RateLimitConfig struct {
	Logger  *slog.Logger
	Limiter Limiter
}

// RateLimitUser throttles per authenticated user. It must run after Auth.
func RateLimitUser(cfg RateLimitConfig, scope string, limit cache.Limit) func(http.Handler) http.Handler {
	return throttle{cfg: cfg, scope: scope, limit: limit, subject: func(r *http.Request) string {
		return auth.UserIDFromContext(r.Context())
	}}.middleware
}

// RateLimitIP throttles per client address; used for login.
func RateLimitIP(cfg RateLimitConfig, scope string, limit cache.Limit) func(http.Handler) http.Handler {
	return throttle{cfg: cfg, scope: scope, limit: limit, subject: getClientIP}.middleware
}

type throttle struct {
	cfg     RateLimitConfig
	scope   string
	limit   cache.Limit
	subject func(*http.Request) string
}

func (t throttle) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject := t.subject(r)
		if t.cfg.Limiter == nil || subject == "" {
			next.ServeHTTP(w, r)
			return
		}

		res, err := t.cfg.Limiter.Allow(r.Context(), t.scope, subject, t.limit)
		if err != nil {
			// A broken limiter must not take the API down with it.
			t.cfg.Logger.Error("rate limit check failed", "scope", t.scope, "error", err)
			next.ServeHTTP(w, r)
			return
		}

		if t.limit.PerMinute > 0 {
			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(t.limit.PerMinute))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
		}
		if res.Allowed {
			next.ServeHTTP(w, r)
			return
		}

		wait := retryAfterSeconds(res.RetryAfter)
		t.cfg.Logger.Warn("rate limit exceeded",
			slog.String("scope", t.scope),
			slog.String("client_ip", getClientIP(r)),
			slog.String("route", r.Method+" "+r.URL.Path),
			slog.Int("retry_after_seconds", wait),
			slog.String("request_id", RequestIDFrom(r.Context())),
		)
		w.Header().Set("Retry-After", strconv.Itoa(wait))
		writeError(w, http.StatusTooManyRequests, "RATE_LIMITED",
			"Too many requests. Retry after "+strconv.Itoa(wait)+" seconds.")
	})
}

// retryAfterSeconds rounds up so clients never retry early; at least 1.
func retryAfterSeconds(d time.Duration) int {
	return max(1, int(math.Ceil(d.Seconds())))
}

// getClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then
// the connection address without its port.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
