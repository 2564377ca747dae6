// Package vault encrypts personal provider credentials at rest.
// Keys are sealed with AES-256-GCM under a key derived from the
// configured vault secret, so a database leak does not expose them.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	keyLen     = 32
	pbkdf2Iter = 10_000
)

// derivation salt is fixed: the vault protects API keys, not passwords,
// and the same ciphertext must decrypt across process restarts.
var derivationSalt = []byte("studyhall-credential-vault-v1")

// Common vault errors
var (
	ErrEmptySecret = errors.New("vault secret cannot be empty")
	ErrMalformed   = errors.New("malformed vault ciphertext")
)

// Vault seals and opens credential strings.
type Vault struct {
	aead cipher.AEAD
}

// New creates a Vault whose key is derived from the given secret.
func New(secret string) (*Vault, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	key := pbkdf2.Key([]byte(secret), derivationSalt, pbkdf2Iter, keyLen, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Vault{aead: aead}, nil
}

// Encrypt seals a plaintext credential and returns a base64 token.
// An empty value encrypts to an empty string so "no credential" stores
// as NULL-equivalent rather than a ciphertext of nothing.
func (v *Vault) Encrypt(value string) (string, error) {
	if value == "" {
		return "", nil
	}

	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := v.aead.Seal(nonce, nonce, []byte(value), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a token produced by Encrypt. An empty or undecryptable
// token yields an empty string and no error: a credential that cannot be
// recovered is treated the same as no credential, matching the
// fail-closed behavior callers expect from the usage governor.
func (v *Vault) Decrypt(token string) string {
	if token == "" {
		return ""
	}

	sealed, err := base64.StdEncoding.DecodeString(token)
	if err != nil || len(sealed) < v.aead.NonceSize() {
		return ""
	}

	nonce, ciphertext := sealed[:v.aead.NonceSize()], sealed[v.aead.NonceSize():]
	plaintext, err := v.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return ""
	}

	return string(plaintext)
}

// Mask returns a display-safe form of a credential, keeping only the
// first and last four characters.
func Mask(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
