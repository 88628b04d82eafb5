// Package crypto seals values the gateway writes to shared caches, such as the
// PayPal bearer token, with AES-256-GCM.
//
// Each call uses a random nonce, so sealing the same value twice yields
// different output. The caller supplies associated data (usually the cache key)
// which must match when opening; a blob copied to another key fails to open.
//
//	sealer, err := crypto.NewSealer(os.Getenv("CONFIG_ENCRYPTION_KEY"))
//	blob, err := sealer.Seal(tokenJSON, "paypal_bearer_token")
//	tokenJSON, err = sealer.Open(blob, "paypal_bearer_token")
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"

	"golang.org/x/crypto/pbkdf2"
	"paypal-gateway/internal/common/errors"
)

const (
	pbkdf2Iterations = 10000
	keyLength        = 32
)

var keySalt = []byte("paypal-gateway-token-salt")

// Sealer performs authenticated encryption. It is safe for concurrent use.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives an AES-256 key from passphrase with PBKDF2-SHA256
func NewSealer(passphrase string) (*Sealer, error) {
	if passphrase == "" {
		return nil, errors.ValidationError("encryption key cannot be empty")
	}

	key := pbkdf2.Key([]byte(passphrase), keySalt, pbkdf2Iterations, keyLength, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.InternalError("failed to create cipher", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.InternalError("failed to create GCM", err)
	}

	return &Sealer{aead: aead}, nil
}

// Seal encrypts plaintext bound to associatedData and returns base64(nonce||ciphertext)
func (s *Sealer) Seal(plaintext, associatedData string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errors.InternalError("failed to create nonce", err)
	}

	sealed := s.aead.Seal(nonce, nonce, []byte(plaintext), []byte(associatedData))
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. Tampered data, a different key or mismatched associated
// data all yield a validation error.
func (s *Sealer) Open(sealed, associatedData string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", errors.ValidationError("sealed value is not base64")
	}

	nonceSize := s.aead.NonceSize()
	if len(data) < nonceSize {
		return "", errors.ValidationError("sealed value too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, []byte(associatedData))
	if err != nil {
		return "", errors.ValidationError("sealed value failed authentication")
	}

	return string(plaintext), nil
}
