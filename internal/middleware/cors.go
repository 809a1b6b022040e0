package middleware

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultPreflightMaxAge = 24 * time.Hour

var (
	corsMethods = "GET, POST, PATCH, OPTIONS"
	corsHeaders = "Accept, Accept-Language, Authorization, Content-Type, X-Request-ID"
	corsExposed = "Retry-After, X-RateLimit-Limit, X-RateLimit-Remaining, X-RateLimit-Reset, X-Request-ID"
)

// CORSPolicy describes which browser origins may call the API. The dashboard
// sends bearer tokens in the Authorization header, so credentials mode is
// never enabled.
type CORSPolicy struct {
	// Origins holds exact origins ("https://app.example.com") or host
	// patterns ("*.example.com"). Empty means no cross-origin access.
	Origins []string

	// AllowLocalhost admits http://localhost and http://127.0.0.1 on any port,
	// for a dashboard dev server.
	AllowLocalhost bool

	// MaxAge is the preflight cache lifetime. Zero selects 24h.
	MaxAge time.Duration
}

// CORS answers preflight requests and stamps Access-Control headers on
// responses to admitted origins. Requests from other origins pass through
// untouched, except preflights which get 403.
func CORS(policy CORSPolicy) func(http.Handler) http.Handler {
	match := newOriginMatcher(policy)
	maxAge := policy.MaxAge
	if maxAge <= 0 {
		maxAge = defaultPreflightMaxAge
	}
	maxAgeSeconds := strconv.Itoa(int(maxAge / time.Second))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			preflight := r.Method == http.MethodOptions
			if !match.admits(origin) {
				if preflight {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Expose-Headers", corsExposed)

			if preflight {
				h.Set("Access-Control-Allow-Methods", corsMethods)
				h.Set("Access-Control-Allow-Headers", corsHeaders)
				h.Set("Access-Control-Max-Age", maxAgeSeconds)
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type originMatcher struct {
	exact     map[string]struct{}
	hostTails []string
	localhost bool
}

func newOriginMatcher(policy CORSPolicy) originMatcher {
	m := originMatcher{
		exact:     make(map[string]struct{}, len(policy.Origins)),
		localhost: policy.AllowLocalhost,
	}
	for _, o := range policy.Origins {
		o = strings.ToLower(strings.TrimSpace(o))
		if tail, ok := strings.CutPrefix(o, "*"); ok && strings.HasPrefix(tail, ".") {
			m.hostTails = append(m.hostTails, tail)
			continue
		}
		if o != "" {
			m.exact[strings.TrimSuffix(o, "/")] = struct{}{}
		}
	}
	return m
}

func (m originMatcher) admits(origin string) bool {
	origin = strings.ToLower(origin)
	if _, ok := m.exact[origin]; ok {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	host := u.Hostname()

	if m.localhost && u.Scheme == "http" && (host == "localhost" || host == "127.0.0.1") {
		return true
	}
	for _, tail := range m.hostTails {
		// The label before the tail must be non-empty: "*.example.com" does
		// not admit "example.com" or "badexample.com".
		if len(host) > len(tail) && strings.HasSuffix(host, tail) {
			return true
		}
	}
	return false
}
