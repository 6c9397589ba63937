package security

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// EncryptedPrefix marks an encrypted field value.
const EncryptedPrefix = "enc:"

// keySalt is fixed so the same passphrase always derives the same key.
var keySalt = []byte("recordguard.field-encryption.v1")

// FieldCipher encrypts individual field values with XChaCha20-Poly1305.
// Ciphertexts are "enc:" followed by base64(nonce || sealed). Key
// management is out of scope; this is obfuscation at rest, not a
// replacement for a key management service.
type FieldCipher struct {
	aead cipher.AEAD
}

// NewFieldCipher derives a key from passphrase with Argon2id.
func NewFieldCipher(passphrase string) (*FieldCipher, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("encryption key cannot be empty")
	}
	key := argon2.IDKey([]byte(passphrase), keySalt, 1, 64*1024, 4, chacha20poly1305.KeySize)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return &FieldCipher{aead: aead}, nil
}

// Encrypt seals plaintext. additional binds the ciphertext to its field.
func (c *FieldCipher) Encrypt(plaintext, additional string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), []byte(additional))
	return EncryptedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt with the same additional data.
func (c *FieldCipher) Decrypt(value, additional string) (string, error) {
	if !IsEncrypted(value) {
		return "", errors.New("value is not encrypted")
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, EncryptedPrefix))
	if err != nil {
		return "", fmt.Errorf("failed to decode base64: %w", err)
	}
	n := c.aead.NonceSize()
	if len(data) < n {
		return "", errors.New("ciphertext too short")
	}
	plaintext, err := c.aead.Open(nil, data[:n], data[n:], []byte(additional))
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}
	return string(plaintext), nil
}

// IsEncrypted reports whether v is a string carrying the encrypted prefix.
func IsEncrypted(v any) bool {
	s, ok := v.(string)
	return ok && strings.HasPrefix(s, EncryptedPrefix)
}
