package secretbox

import (
	"encoding/base64"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCipher(t *testing.T) *Cipher {
	t.Helper()
	c, err := New("test-master-secret", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return c
}

func TestSealOpenRoundTrip(t *testing.T) {
	c := newTestCipher(t)

	for _, plaintext := range []string{
		"shpat_0123456789abcdef",
		"",
		"multi\nline\x00binary\xff",
		strings.Repeat("x", 4096),
	} {
		sealed, err := c.Seal(plaintext)
		require.NoError(t, err)
		assert.NotEqual(t, plaintext, sealed)
		assert.Contains(t, sealed, "|")
		assert.Equal(t, plaintext, c.Open(sealed))
	}
}

func TestSealProducesFreshNonce(t *testing.T) {
	c := newTestCipher(t)

	first, err := c.Seal("same input")
	require.NoError(t, err)
	second, err := c.Seal("same input")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestOpenLegacyPlaintextFallback(t *testing.T) {
	c := newTestCipher(t)

	// Records written before encryption was introduced are raw strings.
	assert.Equal(t, "legacy-plaintext-token", c.Open("legacy-plaintext-token"))
	assert.Equal(t, "", c.Open(""))
	// A value that happens to contain the separator but is not a sealed blob.
	assert.Equal(t, "not|sealed", c.Open("not|sealed"))
}

func TestOpenTamperedCiphertextFallsBack(t *testing.T) {
	c := newTestCipher(t)

	sealed, err := c.Seal("top secret")
	require.NoError(t, err)

	parts := strings.SplitN(sealed, "|", 2)
	ct, err := base64.StdEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	ct[0] ^= 0x01
	tampered := parts[0] + "|" + base64.StdEncoding.EncodeToString(ct)

	// GCM authentication fails, so Open returns the stored value unchanged.
	assert.Equal(t, tampered, c.Open(tampered))
}

func TestDistinctSecretsCannotOpen(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := New("secret-a", logger)
	require.NoError(t, err)
	b, err := New("secret-b", logger)
	require.NoError(t, err)

	sealed, err := a.Seal("credential")
	require.NoError(t, err)
	// b cannot authenticate a's ciphertext; fallback returns the blob itself.
	assert.Equal(t, sealed, b.Open(sealed))
}

func TestEphemeralKeyWhenUnconfigured(t *testing.T) {
	c, err := New("", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	sealed, err := c.Seal("v")
	require.NoError(t, err)
	assert.Equal(t, "v", c.Open(sealed))
}
