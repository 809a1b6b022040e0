package auth

import (
	"strings"
	"testing"
)

func TestGenerateSessionToken(t *testing.T) {
	t.Parallel()

	token, err := GenerateSessionToken()
	if err != nil {
		t.Fatalf("GenerateSessionToken failed: %v", err)
	}
	if !strings.HasPrefix(token, TokenPrefix) {
		t.Errorf("Token should start with %s, got: %s", TokenPrefix, token)
	}
	if len(token) != len(TokenPrefix)+TokenSecretLen {
		t.Errorf("Token length = %d", len(token))
	}
	if !ValidateTokenFormat(token) {
		t.Errorf("generated token fails validation: %s", token)
	}
}

func TestGenerateSessionToken_Unique(t *testing.T) {
	t.Parallel()

	const n = 100
	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		token, err := GenerateSessionToken()
		if err != nil {
			t.Fatalf("GenerateSessionToken failed: %v", err)
		}
		if seen[token] {
			t.Errorf("Duplicate token at iteration %d", i)
		}
		seen[token] = true
	}
}

func TestParseBearer(t *testing.T) {
	t.Parallel()

	valid := "ats_" + strings.Repeat("ab", 32)

	tests := []struct {
		name    string
		header  string
		want    string
		wantErr error
	}{
		{"valid", "Bearer " + valid, valid, nil},
		{"lowercase scheme", "bearer " + valid, valid, nil},
		{"extra spaces", "  Bearer   " + valid + " ", valid, nil},
		{"empty", "", "", ErrInvalidTokenFormat},
		{"basic scheme", "Basic " + valid, "", ErrInvalidTokenFormat},
		{"no scheme", valid, "", ErrInvalidTokenFormat},
		{"short secret", "Bearer ats_abc", "", ErrInvalidTokenFormat},
		{"uppercase hex", "Bearer ats_" + strings.Repeat("AB", 32), "", ErrInvalidTokenFormat},
		{"api key format", "Bearer pk_live_abc123_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b", "", ErrInvalidTokenFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseBearer(tt.header)
			if err != tt.wantErr {
				t.Fatalf("ParseBearer(%q) err = %v, want %v", tt.header, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseBearer(%q) = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}
