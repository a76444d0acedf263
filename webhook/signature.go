// Package webhook runs the GitHub push hook that keeps a local checkout in sync.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

const signaturePrefix = "sha256="

// ErrInvalidSignature rejects a payload whose X-Hub-Signature-256 does not match.
var ErrInvalidSignature = errors.New("invalid signature")

// Sign returns the X-Hub-Signature-256 value of payload for secret.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks header against payload in constant time.
// With an empty secret every payload is accepted.
func VerifySignature(secret string, payload []byte, header string) error {
	if secret == "" {
		return nil
	}
	if header == "" {
		return ErrInvalidSignature
	}
	if !hmac.Equal([]byte(Sign(secret, payload)), []byte(header)) {
		return ErrInvalidSignature
	}
	return nil
}
