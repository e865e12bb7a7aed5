package secrets

import (
	"crypto/rand"
	"encoding/base64"

	dErrors "toolgate/pkg/domain-errors"
)

// GenerateAccessKey creates a cryptographically secure random access key.
// Returns a base64-encoded string issued to a tenant as its capability token.
// Keys are never sequential and never derived from the merchant domain.
func GenerateAccessKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not generate access key")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
