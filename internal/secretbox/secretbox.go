// Package secretbox seals vendor credentials before they reach durable
// storage. Ciphertexts are AES-256-GCM with a per-call random nonce, stored
// as base64(nonce)|base64(ciphertext) so Open needs nothing but the stored
// blob and the process key.
package secretbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	nonceSize = 12  // AES-GCM standard nonce (96 bits)
	keySize   = 32  // AES-256
	sep       = "|" // base64(nonce)|base64(ciphertext)
)

// Cipher seals and opens opaque secret strings with a process-wide key.
// Construct one at startup and pass it to the tenant service; there is no
// package-level instance.
type Cipher struct {
	key    []byte
	logger *slog.Logger
}

// New derives a 32-byte AES key from the configured secret via HKDF-SHA256.
// An empty secret yields a random process-lifetime key: previously sealed
// records become unrecoverable after a restart, so this mode is logged as an
// error and must not reach production.
func New(secret string, logger *slog.Logger) (*Cipher, error) {
	key := make([]byte, keySize)
	if secret == "" {
		if _, err := io.ReadFull(rand.Reader, key); err != nil {
			return nil, fmt.Errorf("generate ephemeral key: %w", err)
		}
		logger.Error("CIPHER_SECRET not configured; using ephemeral key, sealed credentials will not survive restart")
		return &Cipher{key: key, logger: logger}, nil
	}

	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("toolgate/credential-cipher"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive cipher key: %w", err)
	}
	return &Cipher{key: key, logger: logger}, nil
}

// Seal encrypts plaintext and returns base64(nonce)|base64(ciphertext).
func (c *Cipher) Seal(plaintext string) (string, error) {
	aesgcm, err := c.aead()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ct := aesgcm.Seal(nil, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(nonce) + sep + base64.StdEncoding.EncodeToString(ct), nil
}

// Open decrypts a blob produced by Seal.
//
// Compatibility path: input that does not parse as nonce|ciphertext, or that
// fails authentication, is returned unchanged so records written before
// encryption was introduced stay readable. This tolerance can mask genuine
// corruption, so every fallback is logged at error level.
func (c *Cipher) Open(blob string) string {
	pt, err := c.open(blob)
	if err != nil {
		c.logger.Error("credential decryption failed; returning stored value as-is",
			"error", err,
		)
		return blob
	}
	return pt
}

func (c *Cipher) open(blob string) (string, error) {
	parts := strings.SplitN(blob, sep, 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("not a sealed blob")
	}
	nonce, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("decode nonce: %w", err)
	}
	if len(nonce) != nonceSize {
		return "", fmt.Errorf("nonce length %d, want %d", len(nonce), nonceSize)
	}
	ct, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}

	aesgcm, err := c.aead()
	if err != nil {
		return "", err
	}
	pt, err := aesgcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("gcm open: %w", err)
	}
	return string(pt), nil
}

func (c *Cipher) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return aesgcm, nil
}
