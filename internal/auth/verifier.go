// Package auth provides credential checks and session tokens.
package auth

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Credential schemes selectable through configuration.
const (
	SchemePlaintext = "plaintext"
	SchemeArgon2    = "argon2"
	SchemeBcrypt    = "bcrypt"
)

// Verifier turns passwords into stored credentials and checks them.
type Verifier interface {
	// Prepare returns the value to store for a new password.
	Prepare(password string) (string, error)
	// Verify reports whether password matches the stored value.
	Verify(password, stored string) bool
}

// NewVerifier returns the verifier for a scheme.
func NewVerifier(scheme string) (Verifier, error) {
	switch scheme {
	case "", SchemePlaintext:
		return PlaintextVerifier{}, nil
	case SchemeArgon2:
		return Argon2Verifier{}, nil
	case SchemeBcrypt:
		return BcryptVerifier{}, nil
	default:
		return nil, fmt.Errorf("unknown credential scheme %q", scheme)
	}
}

// PlaintextVerifier stores passwords as given and compares them exactly.
type PlaintextVerifier struct{}

// Prepare implements Verifier.
func (PlaintextVerifier) Prepare(password string) (string, error) {
	return password, nil
}

// Verify implements Verifier.
func (PlaintextVerifier) Verify(password, stored string) bool {
	return subtle.ConstantTimeCompare([]byte(password), []byte(stored)) == 1
}

// Argon2Verifier stores Argon2id hashes. Stored values that are not hashes
// (accounts created under the plaintext scheme) are compared exactly.
type Argon2Verifier struct{}

// Prepare implements Verifier.
func (Argon2Verifier) Prepare(password string) (string, error) {
	return HashPassword(password)
}

// Verify implements Verifier.
func (Argon2Verifier) Verify(password, stored string) bool {
	if !IsHashed(stored) {
		return PlaintextVerifier{}.Verify(password, stored)
	}
	ok, err := VerifyPassword(password, stored)
	return err == nil && ok
}

// BcryptVerifier stores bcrypt hashes at the default cost. Like
// Argon2Verifier it accepts plaintext values stored before the switch.
type BcryptVerifier struct{}

// Prepare implements Verifier.
func (BcryptVerifier) Prepare(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(b), nil
}

// Verify implements Verifier.
func (BcryptVerifier) Verify(password, stored string) bool {
	if !isBcryptHash(stored) {
		return PlaintextVerifier{}.Verify(password, stored)
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
}

func isBcryptHash(stored string) bool {
	return strings.HasPrefix(stored, "$2a$") || strings.HasPrefix(stored, "$2b$") || strings.HasPrefix(stored, "$2y$")
}
