package cache

import (
	"strings"
	"testing"
	"time"
)

func TestHashSubject_Deterministic(t *testing.T) {
	t.Parallel()

	if hashSubject("192.168.1.100") != hashSubject("192.168.1.100") {
		t.Error("Same subject should produce same hash")
	}
}

func TestHashSubject_Length(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		subject string
	}{
		{"IPv4", "192.168.1.1"},
		{"IPv6 localhost", "::1"},
		{"user id", "0b7c5c2e-2f9a-4c35-9d8e-3b0a3f6b9c11"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := hashSubject(tt.subject); len(got) != 16 {
				t.Errorf("hashSubject(%q) length = %d, want 16", tt.subject, len(got))
			}
		})
	}
}

func TestBucketKey(t *testing.T) {
	t.Parallel()

	analysis := BucketKey(ScopeAnalysis, "user-1")
	login := BucketKey(ScopeLogin, "user-1")

	if !strings.HasPrefix(analysis, "ratelimit:analysis:") {
		t.Errorf("BucketKey() = %q, want ratelimit:analysis: prefix", analysis)
	}
	if analysis == login {
		t.Error("scopes must not share buckets")
	}
	if strings.Contains(analysis, "user-1") {
		t.Error("raw subject must not appear in the key")
	}
}

func TestResultFromScript(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		vals          []int64
		wantAllowed   bool
		wantRemaining int64
		wantRetry     time.Duration
	}{
		{"allowed", []int64{1, 0, 4, 6000}, true, 4, 0},
		{"denied", []int64{0, 5400, 0, 30000}, false, 0, 5400 * time.Millisecond},
		{"full bucket still resets ahead", []int64{1, 0, 4, 0}, true, 4, 0},
		{"malformed fails open", []int64{0, 1, 2}, true, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := resultFromScript(tt.vals, now)
			if got.Allowed != tt.wantAllowed {
				t.Errorf("Allowed = %v, want %v", got.Allowed, tt.wantAllowed)
			}
			if got.Remaining != tt.wantRemaining {
				t.Errorf("Remaining = %d, want %d", got.Remaining, tt.wantRemaining)
			}
			if got.RetryAfter != tt.wantRetry {
				t.Errorf("RetryAfter = %v, want %v", got.RetryAfter, tt.wantRetry)
			}
			if !got.ResetAt.After(now) {
				t.Errorf("ResetAt = %v, want after %v", got.ResetAt, now)
			}
		})
	}
}

func TestAllow_UnlimitedSkipsRedis(t *testing.T) {
	t.Parallel()

	// A nil client would panic if the script ran.
	c := &Cache{}
	res, err := c.Allow(t.Context(), ScopeAnalysis, "user-1", Limit{PerMinute: 0, Burst: 3})
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !res.Allowed || res.Remaining != 3 {
		t.Errorf("Allow() = %+v, want allowed with 3 remaining", res)
	}
}

func TestPoolOptions_Defaults(t *testing.T) {
	t.Parallel()

	got := PoolOptions{Size: 32}.withDefaults()
	if got.Size != 32 {
		t.Errorf("Size = %d, want explicit 32 kept", got.Size)
	}
	if got.MinIdle != 2 || got.WaitTimeout != 4*time.Second || got.PingTimeout != 3*time.Second {
		t.Errorf("defaults not applied: %+v", got)
	}
}
