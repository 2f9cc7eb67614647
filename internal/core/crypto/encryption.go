// Package crypto seals opaque deployment payloads for storage and transport.
// This is part of the Functional Core - all functions are pure with no I/O
// beyond the random nonce.
//
// Payloads are sealed with AES-256-GCM; keys are derived from an operator
// passphrase with scrypt.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/scrypt"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrKeyLength is returned when the sealing key is not 32 bytes.
	ErrKeyLength = errors.New("sealing key must be at least 32 bytes")

	// ErrSaltLength is returned when the key derivation salt is too short.
	ErrSaltLength = errors.New("salt must be at least 16 bytes")

	// ErrInvalidCiphertext is returned when decryption fails due to invalid ciphertext.
	ErrInvalidCiphertext = errors.New("invalid ciphertext: too short")

	// ErrDecryptFailed is returned when decryption fails (wrong key or corrupted data).
	ErrDecryptFailed = errors.New("decryption failed: authentication tag mismatch")
)

// =============================================================================
// Key Derivation
// =============================================================================

// scrypt cost parameters. Interactive-login strength; a derivation takes tens
// of milliseconds, which the server pays once at startup.
const (
	scryptN      = 32768
	scryptR      = 8
	scryptP      = 1
	keyLength    = 32
	minSaltBytes = 16
)

// DeriveKey derives a 32-byte AES-256 key from a passphrase and salt using
// scrypt. Deterministic: the same passphrase and salt always produce the same
// key, so server and worker derive matching keys independently.
func DeriveKey(passphrase string, salt []byte) ([]byte, error) {
	if len(salt) < minSaltBytes {
		return nil, ErrSaltLength
	}
	return scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, keyLength)
}

// =============================================================================
// AES-256-GCM Sealing
// =============================================================================

// Encrypt seals plaintext using AES-256-GCM with the provided key.
// The key must be at least 32 bytes; only the first 32 are used.
//
// The ciphertext format is: nonce (12 bytes) || encrypted data || auth tag (16 bytes)
func Encrypt(plaintext, key []byte) ([]byte, error) {
	if len(key) < keyLength {
		return nil, ErrKeyLength
	}
	key = key[:keyLength]

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens ciphertext that was sealed with Encrypt.
func Decrypt(ciphertext, key []byte) ([]byte, error) {
	if len(key) < keyLength {
		return nil, ErrKeyLength
	}
	key = key[:keyLength]

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, ErrInvalidCiphertext
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}

// =============================================================================
// Base64 Encoding Variants
// =============================================================================

// EncryptToBase64 seals plaintext and returns base64-encoded ciphertext.
// Useful for carrying sealed payloads in text fields (JSON, environment
// variables).
func EncryptToBase64(plaintext, key []byte) (string, error) {
	ciphertext, err := Encrypt(plaintext, key)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// DecryptFromBase64 opens base64-encoded ciphertext.
func DecryptFromBase64(encoded string, key []byte) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	return Decrypt(ciphertext, key)
}
