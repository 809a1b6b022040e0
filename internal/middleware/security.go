package middleware

import (
	"net/http"
)

// apiHeaders are set on every response. The API only serves JSON and report
// exports, so nothing may be framed, sniffed, cached or embedded.
var apiHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Referrer-Policy", "no-referrer"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"Cross-Origin-Opener-Policy", "same-origin"},
	{"Cross-Origin-Resource-Policy", "same-site"},
	{"Permissions-Policy", "camera=(), geolocation=(), microphone=()"},
	{"Cache-Control", "no-store"},
}

const hstsValue = "max-age=63072000; includeSubDomains"

// SecureHeaders stamps apiHeaders on every response. HSTS is added outside
// development, where the API sits behind TLS.
func SecureHeaders(development bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for _, kv := range apiHeaders {
				h.Set(kv[0], kv[1])
			}
			if !development {
				h.Set("Strict-Transport-Security", hstsValue)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// multipartOverhead covers form boundaries and the text fields sent next
// to an uploaded resume.
const multipartOverhead = 256 << 10

// BodyLimit returns the request body cap for a given upload limit.
func BodyLimit(maxUpload int64) int64 {
	return maxUpload + multipartOverhead
}

// MaxBodySize rejects bodies whose declared length exceeds limit with 413 and
// caps streamed bodies so reads past limit fail.
func MaxBodySize(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large")
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
