package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestVerify(t *testing.T) {
	body := []byte(`{"shop_domain":"shop-a.example.com"}`)
	secret := "shared-webhook-secret"

	assert.True(t, Verify(body, sign(body, secret), secret))

	t.Run("tampered body", func(t *testing.T) {
		tampered := append([]byte(nil), body...)
		tampered[0] ^= 0x01
		assert.False(t, Verify(tampered, sign(body, secret), secret))
	})

	t.Run("wrong secret", func(t *testing.T) {
		assert.False(t, Verify(body, sign(body, "other-secret"), secret))
	})

	t.Run("missing header fails closed", func(t *testing.T) {
		assert.False(t, Verify(body, "", secret))
	})

	t.Run("missing secret fails closed", func(t *testing.T) {
		assert.False(t, Verify(body, sign(body, secret), ""))
	})

	t.Run("non-base64 header", func(t *testing.T) {
		assert.False(t, Verify(body, "%%not-base64%%", secret))
	})
}
