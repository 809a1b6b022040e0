package auth

import (
	"crypto/sha256"
	"encoding/hex"
)

// TokenDigest returns the first 128 bits of SHA-256(token) in hex. Session
// records are keyed by it so stored keys never reveal a usable token.
func TokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:16])
}
