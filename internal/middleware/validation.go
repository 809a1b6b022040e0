package middleware

import (
	"mime"
	"net/http"
	"slices"
	"strings"
)

// Accepted request media types.
const (
	MediaJSON      = "application/json"
	MediaMultipart = "multipart/form-data"
)

// RequireContentType rejects bodies whose media type is not listed.
// Requests without a body (GET, DELETE, empty POST) pass through.
func RequireContentType(allowed ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength == 0 && r.Header.Get("Transfer-Encoding") == "" {
				next.ServeHTTP(w, r)
				return
			}

			mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if err != nil || !slices.Contains(allowed, mediaType) {
				writeError(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE",
					"Content-Type must be one of "+strings.Join(allowed, ", "))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
