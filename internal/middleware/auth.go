package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/atspro/atspro/internal/auth"
	"github.com/atspro/atspro/internal/localstore"
	"github.com/atspro/atspro/internal/session"
)

// SessionLookup resolves bearer tokens to authenticated sessions.
type SessionLookup interface {
	Lookup(ctx context.Context, token string) (*session.Session, error)
}

// AuthConfig wires the Auth middleware.
type AuthConfig struct {
	Logger   *slog.Logger
	Sessions SessionLookup
}

// Auth resolves "Authorization: Bearer <token>" to a logged-in identity and
// stores it in the request context. Every rejection answers the same 401 so
// callers cannot tell a malformed token from an expired one. A failing
// session store answers 503 instead.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, reason, err := resolveIdentity(r, cfg.Sessions)
			switch {
			case err != nil:
				cfg.Logger.Error("session lookup failed",
					slog.String("error", err.Error()),
					slog.String("request_id", RequestIDFrom(r.Context())),
				)
				writeError(w, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Session storage is unavailable")
			case id == nil:
				cfg.Logger.Warn("authentication failed",
					slog.String("reason", reason),
					slog.String("client_ip", getClientIP(r)),
					slog.String("route", r.Method+" "+r.URL.Path),
					slog.String("request_id", RequestIDFrom(r.Context())),
				)
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or missing session token")
			default:
				next.ServeHTTP(w, r.WithContext(auth.ContextWithIdentity(r.Context(), id)))
			}
		})
	}
}

// resolveIdentity returns the caller, or nil with a log reason. err is set
// only for storage failures.
func resolveIdentity(r *http.Request, sessions SessionLookup) (*auth.Identity, string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, "missing_token", nil
	}
	token, err := auth.ParseBearer(header)
	if err != nil {
		return nil, "invalid_format", nil
	}

	sess, err := sessions.Lookup(r.Context(), token)
	if errors.Is(err, localstore.ErrIOFailure) {
		return nil, "", err
	}
	if err != nil {
		return nil, "unknown_session", nil
	}

	user, ok := sess.CurrentUser()
	if !ok {
		return nil, "logged_out", nil
	}
	return &auth.Identity{Token: token, User: user}, "", nil
}

// writeError writes the standard {"error":{"code","message"}} envelope.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{Error: errorBody{Code: code, Message: message}})
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
