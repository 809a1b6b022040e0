package middleware

import (
	"net/http"
	"time"
)

// HTTPObserver records served requests. *metrics.PrometheusRecorder
// satisfies it.
type HTTPObserver interface {
	ObserveHTTPRequest(route, method string, status int, duration time.Duration)
}

// unmatchedRoute labels requests no route matched, keeping label
// cardinality bounded.
const unmatchedRoute = "unmatched"

// Metrics records count and latency per matched chi route pattern.
func Metrics(observer HTTPObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)
			observer.ObserveHTTPRequest(routePattern(r, unmatchedRoute), r.Method, rec.code, time.Since(start))
		})
	}
}
