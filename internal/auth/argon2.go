package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

var (
	ErrInvalidHash         = errors.New("argon2: malformed PHC string")
	ErrIncompatibleVersion = errors.New("argon2: unsupported version")
)

const phcPrefix = "$argon2id$"

// argonParams are the cost settings recorded in every hash, so hashes made
// under older settings keep verifying.
type argonParams struct {
	memoryKiB uint32
	passes    uint32
	lanes     uint8
	keyLen    uint32
	saltLen   int
}

// currentParams follow the OWASP minimum for argon2id.
var currentParams = argonParams{memoryKiB: 64 << 10, passes: 3, lanes: 4, keyLen: 32, saltLen: 16}

var b64 = base64.RawStdEncoding

// HashPassword hashes password with argon2id and a random salt, returning
// "$argon2id$v=19$m=65536,t=3,p=4$<salt>$<key>".
func HashPassword(password string) (string, error) {
	p := currentParams
	salt := make([]byte, p.saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("argon2 salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, p.passes, p.memoryKiB, p.lanes, p.keyLen)

	var sb strings.Builder
	sb.WriteString(phcPrefix)
	fmt.Fprintf(&sb, "v=%d$m=%d,t=%d,p=%d$", argon2.Version, p.memoryKiB, p.passes, p.lanes)
	sb.WriteString(b64.EncodeToString(salt))
	sb.WriteByte('$')
	sb.WriteString(b64.EncodeToString(key))
	return sb.String(), nil
}

// IsHashed reports whether stored is a PHC argon2id string.
func IsHashed(stored string) bool {
	return strings.HasPrefix(stored, phcPrefix)
}

// VerifyPassword recomputes the key with the parameters embedded in encoded
// and compares in constant time. A mismatch is (false, nil).
func VerifyPassword(password, encoded string) (bool, error) {
	p, salt, want, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}
	got := argon2.IDKey([]byte(password), salt, p.passes, p.memoryKiB, p.lanes, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

// decodePHC splits "$argon2id$v=V$m=M,t=T,p=P$salt$key".
func decodePHC(encoded string) (argonParams, []byte, []byte, error) {
	var p argonParams
	rest, ok := strings.CutPrefix(encoded, phcPrefix)
	if !ok {
		return p, nil, nil, ErrInvalidHash
	}
	fields := strings.Split(rest, "$")
	if len(fields) != 4 {
		return p, nil, nil, ErrInvalidHash
	}

	v, ok := strings.CutPrefix(fields[0], "v=")
	if !ok {
		return p, nil, nil, ErrInvalidHash
	}
	if version, err := strconv.Atoi(v); err != nil {
		return p, nil, nil, ErrInvalidHash
	} else if version != argon2.Version {
		return p, nil, nil, ErrIncompatibleVersion
	}

	for _, kv := range strings.Split(fields[1], ",") {
		name, val, ok := strings.Cut(kv, "=")
		if !ok {
			return p, nil, nil, ErrInvalidHash
		}
		n, err := strconv.ParseUint(val, 10, 32)
		if err != nil {
			return p, nil, nil, ErrInvalidHash
		}
		switch name {
		case "m":
			p.memoryKiB = uint32(n)
		case "t":
			p.passes = uint32(n)
		case "p":
			if n > 255 {
				return p, nil, nil, ErrInvalidHash
			}
			p.lanes = uint8(n)
		default:
			return p, nil, nil, ErrInvalidHash
		}
	}
	if p.memoryKiB == 0 || p.passes == 0 || p.lanes == 0 {
		return p, nil, nil, ErrInvalidHash
	}

	salt, err := b64.DecodeString(fields[2])
	if err != nil {
		return p, nil, nil, ErrInvalidHash
	}
	key, err := b64.DecodeString(fields[3])
	if err != nil || len(key) == 0 {
		return p, nil, nil, ErrInvalidHash
	}
	return p, salt, key, nil
}
