package cache

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// localIdleTTL matches the Redis bucket TTL.
const localIdleTTL = rateLimitTTL

type localBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LocalLimiter is an in-process token bucket limiter for single-instance
// deployments without Redis. Buckets are not shared between processes.
type LocalLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*localBucket
	lastSweep time.Time
	now       func() time.Time
}

// NewLocalLimiter creates an empty LocalLimiter.
func NewLocalLimiter() *LocalLimiter {
	return &LocalLimiter{
		buckets: make(map[string]*localBucket),
		now:     time.Now,
	}
}

// Allow consumes one token from the bucket identified by scope and subject.
// It has the same semantics as Cache.Allow.
func (l *LocalLimiter) Allow(_ context.Context, scope, subject string, limit Limit) (*RateLimitResult, error) {
	now := l.now()
	if limit.PerMinute <= 0 {
		return unlimited(limit, now), nil
	}

	burst := limit.Burst
	if burst <= 0 {
		burst = 1
	}
	perSecond := float64(limit.PerMinute) / 60.0
	key := BucketKey(scope, subject)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)

	b, ok := l.buckets[key]
	if !ok {
		b = &localBucket{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now

	resetAt := now.Add(time.Duration(float64(time.Second) / perSecond))

	if b.limiter.AllowN(now, 1) {
		return &RateLimitResult{
			Allowed:   true,
			Remaining: int64(math.Floor(b.limiter.TokensAt(now))),
			ResetAt:   resetAt,
		}, nil
	}

	missing := 1 - b.limiter.TokensAt(now)
	retry := time.Duration(math.Ceil(missing/perSecond)) * time.Second
	return &RateLimitResult{
		Allowed:    false,
		Remaining:  0,
		ResetAt:    resetAt,
		RetryAfter: retry,
	}, nil
}

// sweep drops idle buckets at most once per TTL. Caller holds mu.
func (l *LocalLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < localIdleTTL {
		return
	}
	l.lastSweep = now
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > localIdleTTL {
			delete(l.buckets, key)
		}
	}
}

// Len returns the number of live buckets.
func (l *LocalLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
