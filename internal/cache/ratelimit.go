package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// rateLimitPrefix is the Redis key prefix for all rate limit buckets.
	rateLimitPrefix = "ratelimit:"
	// rateLimitTTL bounds how long an idle bucket survives.
	rateLimitTTL = 120 * time.Second
)

// Rate limit scopes.
const (
	ScopeAnalysis = "analysis"
	ScopeLogin    = "login"
)

// Limit describes a token bucket. Zero PerMinute means unlimited.
type Limit struct {
	PerMinute int
	Burst     int
}

// RateLimitResult contains the result of a rate limit check.
type RateLimitResult struct {
	Allowed    bool
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// bucketScript refills the bucket for the time elapsed since its last use,
// takes one token if available and reports
// {allowed, retry_ms, remaining, full_ms}. Times are milliseconds.
var bucketScript = redis.NewScript(`
local perMs, cap, now, idle = tonumber(ARGV[1]), tonumber(ARGV[2]), tonumber(ARGV[3]), tonumber(ARGV[4])
local state = redis.call('HMGET', KEYS[1], 'tokens', 'at')
local tokens = tonumber(state[1]) or cap
local at = tonumber(state[2]) or now
if now > at then
	tokens = math.min(cap, tokens + (now - at) * perMs)
end

local allowed, retry = 0, 0
if tokens >= 1 then
	tokens = tokens - 1
	allowed = 1
else
	retry = math.ceil((1 - tokens) / perMs)
end

redis.call('HSET', KEYS[1], 'tokens', tostring(tokens), 'at', now)
redis.call('PEXPIRE', KEYS[1], idle)
return {allowed, retry, math.floor(tokens), math.ceil((cap - tokens) / perMs)}
`)

// Allow takes one token from the bucket of scope and subject. Subjects are
// hashed before they reach Redis. Redis errors fail open.
func (c *Cache) Allow(ctx context.Context, scope, subject string, limit Limit) (*RateLimitResult, error) {
	now := time.Now()
	if limit.PerMinute <= 0 {
		return unlimited(limit, now), nil
	}

	perMs := float64(limit.PerMinute) / float64(time.Minute/time.Millisecond)
	vals, err := bucketScript.Run(ctx, c.client,
		[]string{BucketKey(scope, subject)},
		perMs, max(limit.Burst, 1), now.UnixMilli(), rateLimitTTL.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return unlimited(limit, now), nil
	}
	return resultFromScript(vals, now), nil
}

// BucketKey returns the Redis key for a scope and subject.
func BucketKey(scope, subject string) string {
	return rateLimitPrefix + scope + ":" + hashSubject(subject)
}

func unlimited(limit Limit, now time.Time) *RateLimitResult {
	return &RateLimitResult{
		Allowed:   true,
		Remaining: int64(limit.Burst),
		ResetAt:   now.Add(time.Minute),
	}
}

// resultFromScript decodes the script reply. Anything unexpected is treated
// as allowed.
func resultFromScript(vals []int64, now time.Time) *RateLimitResult {
	if len(vals) != 4 {
		return &RateLimitResult{Allowed: true, ResetAt: now.Add(time.Minute)}
	}
	return &RateLimitResult{
		Allowed:    vals[0] == 1,
		Remaining:  vals[2],
		ResetAt:    now.Add(time.Duration(max(vals[3], 1)) * time.Millisecond),
		RetryAfter: time.Duration(vals[1]) * time.Millisecond,
	}
}

// hashSubject keeps raw IPs and user ids out of Redis key names.
func hashSubject(subject string) string {
	sum := sha256.Sum256([]byte(subject))
	return hex.EncodeToString(sum[:8])
}
