// Package webhook authenticates vendor lifecycle notifications and applies
// the verified payloads to tenant state.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// Verify checks a base64 HMAC-SHA256 signature over the exact raw request
// bytes. The comparison is constant-time; missing header or secret fails
// closed. Callers must capture the body before any parsing so the hashed
// bytes are the bytes the vendor signed.
func Verify(rawBody []byte, signatureHeader, sharedSecret string) bool {
	if signatureHeader == "" || sharedSecret == "" {
		return false
	}
	sig, err := base64.StdEncoding.DecodeString(signatureHeader)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(sharedSecret))
	mac.Write(rawBody)
	return hmac.Equal(mac.Sum(nil), sig)
}
