// Package vault seals withdrawal payment details at rest.
package vault

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/kirito3009/ad-time-cash/internal/config"
)

// Vault encrypts with XChaCha20-Poly1305 under one server-held key.
type Vault struct {
	aead cipher.AEAD
}

// New builds a vault from a hex-encoded 32-byte key.
func New(hexKey string) (*Vault, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrVaultKey, err)
	}
	if len(key) != config.PaymentKeyBytes {
		return nil, fmt.Errorf("%w: want %d bytes, got %d", config.ErrVaultKey, config.PaymentKeyBytes, len(key))
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrVaultKey, err)
	}
	return &Vault{aead: aead}, nil
}

// Seal encrypts plaintext bound to owner. The result is base64 of
// nonce || ciphertext and only opens with the same owner.
func (v *Vault) Seal(plaintext, owner string) (string, error) {
	nonce := make([]byte, v.aead.NonceSize(), v.aead.NonceSize()+len(plaintext)+v.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := v.aead.Seal(nonce, nonce, []byte(plaintext), []byte(owner))
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal for the same owner.
func (v *Vault) Open(sealed, owner string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", config.ErrVaultCiphertext, err)
	}
	if len(raw) < v.aead.NonceSize()+v.aead.Overhead() {
		return "", fmt.Errorf("%w: too short", config.ErrVaultCiphertext)
	}

	nonce, ciphertext := raw[:v.aead.NonceSize()], raw[v.aead.NonceSize():]
	plaintext, err := v.aead.Open(nil, nonce, ciphertext, []byte(owner))
	if err != nil {
		return "", fmt.Errorf("%w: %v", config.ErrVaultCiphertext, err)
	}
	return string(plaintext), nil
}
