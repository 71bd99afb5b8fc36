// Package secret encrypts credential values at rest.
//
// The wire format is enc:v1:<iv-hex>:<tag-hex>:<ciphertext-hex> using
// AES-256-GCM with a key derived as SHA-256 of the configured secret.
// Values without the enc:v1: prefix pass through Decrypt unchanged, so
// records written before encryption was enabled stay readable.
package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const prefix = "enc:v1:"

// Keychain encrypts and decrypts API keys with a deployment-wide secret.
type Keychain struct {
	key []byte
}

// NewKeychain derives the AES key from secret. An empty secret is rejected
// so a misconfigured deployment cannot silently store plaintext.
func NewKeychain(secret string) (*Keychain, error) {
	if secret == "" {
		return nil, fmt.Errorf("secret: encryption secret is required")
	}
	sum := sha256.Sum256([]byte(secret))
	return &Keychain{key: sum[:]}, nil
}

// Encrypt seals plaintext into the enc:v1 format.
func (k *Keychain) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(k.key)
	if err != nil {
		return "", fmt.Errorf("secret: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("secret: %w", err)
	}
	iv := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("secret: %w", err)
	}
	sealed := gcm.Seal(nil, iv, []byte(plaintext), nil)
	// GCM appends the auth tag to the ciphertext; the wire format keeps
	// them in separate segments.
	tagStart := len(sealed) - gcm.Overhead()
	ct, tag := sealed[:tagStart], sealed[tagStart:]
	return prefix + hex.EncodeToString(iv) + ":" + hex.EncodeToString(tag) + ":" + hex.EncodeToString(ct), nil
}

// Decrypt opens a value sealed by Encrypt. Values without the enc:v1:
// prefix, and values that fail to decode or authenticate, are returned
// as-is.
func (k *Keychain) Decrypt(value string) string {
	if !strings.HasPrefix(value, prefix) {
		return value
	}
	parts := strings.Split(strings.TrimPrefix(value, prefix), ":")
	if len(parts) != 3 {
		return value
	}
	iv, err := hex.DecodeString(parts[0])
	if err != nil {
		return value
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil {
		return value
	}
	ct, err := hex.DecodeString(parts[2])
	if err != nil {
		return value
	}
	block, err := aes.NewCipher(k.key)
	if err != nil {
		return value
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return value
	}
	if len(iv) != gcm.NonceSize() {
		return value
	}
	plaintext, err := gcm.Open(nil, iv, append(ct, tag...), nil)
	if err != nil {
		return value
	}
	return string(plaintext)
}
