package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		inbound string
		keep    bool
	}{
		{"generated when absent", "", false},
		{"caller id kept", "req-7f3a_01.b", true},
		{"header injection replaced", "abc\r\nSet-Cookie: x=1", false},
		{"spaces replaced", "two words", false},
		{"oversized replaced", string(make([]byte, maxRequestIDLen+1)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var seen string
			h := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				seen = RequestIDFrom(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.inbound != "" {
				req.Header[RequestIDHeader] = []string{tt.inbound}
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if seen == "" || rec.Header().Get(RequestIDHeader) != seen {
				t.Fatalf("context id %q, header %q", seen, rec.Header().Get(RequestIDHeader))
			}
			if tt.keep && seen != tt.inbound {
				t.Errorf("id = %q, want %q", seen, tt.inbound)
			}
			if !tt.keep && seen == tt.inbound {
				t.Errorf("inbound id %q should have been replaced", tt.inbound)
			}
		})
	}
}
