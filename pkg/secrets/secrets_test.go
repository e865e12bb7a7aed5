package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAccessKey(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		key, err := GenerateAccessKey()
		require.NoError(t, err)
		assert.Len(t, key, 43, "32 random bytes, unpadded url-safe base64")
		assert.NotContains(t, key, "=")
		assert.NotContains(t, key, "+")
		assert.NotContains(t, key, "/")
		assert.False(t, seen[key], "keys must not repeat")
		seen[key] = true
	}
}
