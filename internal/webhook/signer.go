// Package webhook posts candidate status events to an HTTPS endpoint.
// Bodies are signed with HMAC-SHA256 over "timestamp.body".
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const signaturePrefix = "sha256="

// DefaultTolerance is the clock skew a receiver should accept.
const DefaultTolerance = 5 * time.Minute

var (
	ErrStaleTimestamp     = errors.New("webhook timestamp outside tolerance")
	ErrMalformedSignature = errors.New("webhook signature malformed")
	ErrSignatureMismatch  = errors.New("webhook signature mismatch")
)

// Signer computes and checks delivery signatures for one shared secret.
type Signer struct {
	key []byte
}

// NewSigner returns a Signer keyed by secret.
func NewSigner(secret string) Signer {
	return Signer{key: []byte(secret)}
}

// Sign returns the X-ATSPro-Signature value for body sent at unix seconds.
func (s Signer) Sign(unix int64, body []byte) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write(strconv.AppendInt(nil, unix, 10))
	mac.Write([]byte{'.'})
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a received signature. Timestamps further than tolerance
// from now in either direction are rejected before the MAC is compared.
func (s Signer) Verify(signature string, unix int64, body []byte, now time.Time, tolerance time.Duration) error {
	skew := now.Sub(time.Unix(unix, 0))
	if skew > tolerance || skew < -tolerance {
		return ErrStaleTimestamp
	}
	if !strings.HasPrefix(signature, signaturePrefix) {
		return ErrMalformedSignature
	}
	if !hmac.Equal([]byte(s.Sign(unix, body)), []byte(signature)) {
		return ErrSignatureMismatch
	}
	return nil
}

// VerifyRequest checks the signature headers of a delivery whose body has
// already been read.
func (s Signer) VerifyRequest(h http.Header, body []byte, now time.Time) error {
	unix, err := strconv.ParseInt(h.Get(HeaderTimestamp), 10, 64)
	if err != nil {
		return ErrStaleTimestamp
	}
	return s.Verify(h.Get(HeaderSignature), unix, body, now, DefaultTolerance)
}
