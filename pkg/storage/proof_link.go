package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ProofLinkSigner mints time-limited download tokens for stored blobs so a
// reviewer can fetch a payment proof without knowing the raw storage path.
type ProofLinkSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewProofLinkSigner constructs a signer. A non-positive TTL falls back to
// one hour.
func NewProofLinkSigner(secret string, ttl time.Duration) *ProofLinkSigner {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ProofLinkSigner{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Sign returns a token embedding the blob reference and its expiry.
func (s *ProofLinkSigner) Sign(ref string) (string, error) {
	if ref == "" {
		return "", fmt.Errorf("blob reference required")
	}
	if len(s.secret) == 0 {
		return "", fmt.Errorf("signing secret missing")
	}
	expiry := s.now().Add(s.ttl).Unix()
	encoded := base64.RawURLEncoding.EncodeToString([]byte(ref))
	sig := s.mac(encoded, expiry)
	return fmt.Sprintf("%s.%d.%s", encoded, expiry, sig), nil
}

// Verify checks the token signature and expiry and returns the blob
// reference it was minted for.
func (s *ProofLinkSigner) Verify(token string) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", fmt.Errorf("malformed token")
	}
	encoded, rawExpiry, sig := parts[0], parts[1], parts[2]

	expiry, err := strconv.ParseInt(rawExpiry, 10, 64)
	if err != nil {
		return "", fmt.Errorf("malformed token expiry")
	}
	if !hmac.Equal([]byte(s.mac(encoded, expiry)), []byte(sig)) {
		return "", fmt.Errorf("token signature mismatch")
	}
	if s.now().After(time.Unix(expiry, 0)) {
		return "", fmt.Errorf("token expired")
	}

	ref, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode blob reference: %w", err)
	}
	return string(ref), nil
}

func (s *ProofLinkSigner) mac(encodedRef string, expiry int64) string {
	h := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(h, "%s|%d", encodedRef, expiry)
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
