// Package seal turns game keys into opaque client tokens and back.
package seal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

var ErrInvalidToken = errors.New("invalid sealed token")

// Sealer encrypts and authenticates short strings with XChaCha20-Poly1305.
// Tokens are raw URL-safe base64 of nonce || ciphertext.
type Sealer struct {
	key []byte
}

// New builds a Sealer from a 32-byte key.
func New(key []byte) (Sealer, error) {
	if len(key) != chacha20poly1305.KeySize {
		return Sealer{}, fmt.Errorf("sealing key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return Sealer{key: append([]byte(nil), key...)}, nil
}

// FromBase64 decodes a standard base64 key.
func FromBase64(encoded string) (Sealer, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return Sealer{}, fmt.Errorf("decode sealing key: %w", err)
	}
	return New(key)
}

// GenerateKey returns a fresh random key in the encoding FromBase64 accepts.
func GenerateKey() (string, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

func (s Sealer) Seal(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	out := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(out), nil
}

func (s Sealer) Open(token string) (string, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", err
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) < aead.NonceSize()+aead.Overhead() {
		return "", ErrInvalidToken
	}
	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrInvalidToken
	}
	return string(plain), nil
}
