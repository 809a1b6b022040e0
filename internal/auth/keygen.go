package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Session token format: ats_{secret}
// Example: ats_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b
const (
	TokenPrefix    = "ats_"
	TokenSecretLen = 64 // hex encoded 32 bytes
)

var (
	// ErrInvalidTokenFormat indicates the token format is invalid.
	ErrInvalidTokenFormat = errors.New("invalid session token format")
	tokenFormatRegex      = regexp.MustCompile(`^ats_[a-f0-9]{64}$`)
)

// GenerateSessionToken creates a new random bearer token.
func GenerateSessionToken() (string, error) {
	secret := make([]byte, TokenSecretLen/2)
	if _, err := rand.Read(secret); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return TokenPrefix + hex.EncodeToString(secret), nil
}

// ValidateTokenFormat checks if the token matches the expected format.
func ValidateTokenFormat(token string) bool {
	return tokenFormatRegex.MatchString(token)
}

// ParseBearer extracts a session token from an Authorization header value.
func ParseBearer(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrInvalidTokenFormat
	}
	token = strings.TrimSpace(token)
	if !ValidateTokenFormat(token) {
		return "", ErrInvalidTokenFormat
	}
	return token, nil
}
