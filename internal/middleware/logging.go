package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// statusRecorder remembers the first status written and counts body bytes.
type statusRecorder struct {
	http.ResponseWriter
	code    int
	size    int
	flushed bool
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, code: http.StatusOK}
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.flushed {
		return
	}
	s.code, s.flushed = code, true
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(p []byte) (int, error) {
	if !s.flushed {
		s.WriteHeader(http.StatusOK)
	}
	n, err := s.ResponseWriter.Write(p)
	s.size += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// routePattern returns the chi pattern that served r, or fallback when no
// route matched.
func routePattern(r *http.Request, fallback string) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return fallback
}

// Logger writes one access line per request. Probe traffic on /healthz and
// /readyz is logged at debug level. Request headers are never logged.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			began := time.Now()
			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)

			logger.LogAttrs(r.Context(), accessLevel(r.URL.Path, rec.code), "http request",
				slog.String("request_id", RequestIDFrom(r.Context())),
				slog.String("method", r.Method),
				slog.String("route", routePattern(r, "")),
				slog.String("path", r.URL.Path),
				slog.Int("status_code", rec.code),
				slog.Int("bytes", rec.size),
				slog.Duration("duration", time.Since(began)),
				slog.String("client_ip", getClientIP(r)),
				slog.String("user_agent", r.UserAgent()),
			)
		})
	}
}

func accessLevel(path string, code int) slog.Level {
	switch {
	case code >= http.StatusInternalServerError:
		return slog.LevelError
	case code >= http.StatusBadRequest:
		return slog.LevelWarn
	case path == "/healthz" || path == "/readyz":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}
