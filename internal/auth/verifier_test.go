package auth

import (
	"strings"
	"testing"
)

func TestNewVerifier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		scheme  string
		want    Verifier
		wantErr bool
	}{
		{"", PlaintextVerifier{}, false},
		{SchemePlaintext, PlaintextVerifier{}, false},
		{SchemeArgon2, Argon2Verifier{}, false},
		{SchemeBcrypt, BcryptVerifier{}, false},
		{"md5", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.scheme, func(t *testing.T) {
			t.Parallel()
			got, err := NewVerifier(tt.scheme)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewVerifier(%q) err = %v", tt.scheme, err)
			}
			if got != tt.want {
				t.Errorf("NewVerifier(%q) = %T, want %T", tt.scheme, got, tt.want)
			}
		})
	}
}

func TestPlaintextVerifier(t *testing.T) {
	t.Parallel()

	v := PlaintextVerifier{}
	stored, err := v.Prepare("admin123")
	if err != nil || stored != "admin123" {
		t.Fatalf("Prepare = %q, %v", stored, err)
	}
	if !v.Verify("admin123", stored) {
		t.Error("exact password should verify")
	}
	if v.Verify("Admin123", stored) {
		t.Error("password comparison must be case-sensitive")
	}
}

func TestArgon2Verifier(t *testing.T) {
	t.Parallel()

	v := Argon2Verifier{}
	stored, err := v.Prepare("s3cret!")
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if stored == "s3cret!" || !IsHashed(stored) {
		t.Fatalf("Prepare should hash, got %q", stored)
	}
	if !v.Verify("s3cret!", stored) {
		t.Error("correct password should verify")
	}
	if v.Verify("wrong", stored) {
		t.Error("wrong password should not verify")
	}

	// Accounts stored before switching schemes still log in.
	if !v.Verify("admin123", "admin123") {
		t.Error("plaintext stored value should verify")
	}
}

func TestBcryptVerifier(t *testing.T) {
	t.Parallel()

	v := BcryptVerifier{}
	stored, err := v.Prepare("s3cret!")
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if !strings.HasPrefix(stored, "$2a$") {
		t.Fatalf("Prepare should hash, got %q", stored)
	}

	tests := []struct {
		name     string
		password string
		stored   string
		want     bool
	}{
		{"correct", "s3cret!", stored, true},
		{"wrong", "wrong", stored, false},
		{"legacy plaintext", "admin123", "admin123", true},
		{"legacy plaintext mismatch", "admin124", "admin123", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := v.Verify(tt.password, tt.stored); got != tt.want {
				t.Errorf("Verify(%q) = %v, want %v", tt.password, got, tt.want)
			}
		})
	}
}
