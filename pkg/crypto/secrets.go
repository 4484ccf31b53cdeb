// Package crypto seals datasource secrets so configuration files and
// environments can carry them encrypted.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// SealedPrefix marks a configuration value as sealed.
const SealedPrefix = "enc:"

var (
	// ErrInvalidKey is returned when the key is empty.
	ErrInvalidKey = errors.New("invalid credentials key: must not be empty")
	// ErrOpenFailed is returned for malformed sealed values or a wrong key.
	ErrOpenFailed = errors.New("cannot open sealed value: invalid ciphertext or wrong key")
)

// IsSealed reports whether value carries SealedPrefix.
func IsSealed(value string) bool {
	return strings.HasPrefix(value, SealedPrefix)
}

// SecretBox seals and opens secrets with AES-256-GCM.
type SecretBox struct {
	aead cipher.AEAD
}

// NewSecretBox creates a box from key. A base64 value decoding to exactly
// 32 bytes is used as the AES key; anything else is treated as a passphrase
// and hashed with SHA-256.
func NewSecretBox(key string) (*SecretBox, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}

	raw, err := base64.StdEncoding.DecodeString(key)
	if err != nil || len(raw) != 32 {
		sum := sha256.Sum256([]byte(key))
		raw = sum[:]
	}

	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return &SecretBox{aead: aead}, nil
}

// Seal encrypts plaintext into "enc:" + base64(nonce || ciphertext || tag).
func (b *SecretBox) Seal(plaintext string) (string, error) {
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := b.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return SealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a sealed value. Values without SealedPrefix are returned
// unchanged.
func (b *SecretBox) Open(value string) (string, error) {
	encoded, ok := strings.CutPrefix(value, SealedPrefix)
	if !ok {
		return value, nil
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: base64 decode failed", ErrOpenFailed)
	}
	n := b.aead.NonceSize()
	if len(data) < n+b.aead.Overhead() {
		return "", fmt.Errorf("%w: ciphertext too short", ErrOpenFailed)
	}

	plaintext, err := b.aead.Open(nil, data[:n], data[n:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: authentication failed", ErrOpenFailed)
	}
	return string(plaintext), nil
}

// OpenAll opens every sealed value in place. key is only required when at
// least one value is sealed.
func OpenAll(key string, values ...*string) error {
	var box *SecretBox
	for _, v := range values {
		if v == nil || !IsSealed(*v) {
			continue
		}
		if box == nil {
			var err error
			if box, err = NewSecretBox(key); err != nil {
				return err
			}
		}
		plain, err := box.Open(*v)
		if err != nil {
			return err
		}
		*v = plain
	}
	return nil
}
