package middleware

import (
	"net/http"

	"github.com/atspro/atspro/internal/auth"
)

// RequireAdmin lets only admin identities through. It runs after Auth, so
// a missing identity means the route was mounted without it and is answered
// 401 rather than 403.
func RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch id := auth.IdentityFromContext(r.Context()); {
			case id == nil:
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			case !id.User.IsAdmin():
				writeError(w, http.StatusForbidden, "FORBIDDEN", "Admin role required")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
