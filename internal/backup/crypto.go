package backup

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
)

const (
	keySize   = 32
	nonceSize = 12
)

// Encrypt encrypts plaintext with AES-256-GCM under a freshly generated
// 256-bit key and 96-bit IV. Both are new on every call; the key is returned
// to the caller exactly once and never persisted anywhere in the system.
func Encrypt(plaintext []byte) (key, iv, ciphertext []byte, err error) {
	key = make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, nil, nil, fmt.Errorf("generate key: %w", err)
	}

	iv = make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, nil, nil, fmt.Errorf("generate iv: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create gcm: %w", err)
	}

	ciphertext = gcm.Seal(nil, iv, plaintext, nil)
	return key, iv, ciphertext, nil
}

// Decrypt reverses Encrypt. Any authentication failure (wrong key, wrong IV,
// tampered ciphertext) is reported as ErrDecryptionFailed without further
// detail, so cipher internals never leak to the caller.
func Decrypt(key, iv, ciphertext []byte) ([]byte, error) {
	if len(key) != keySize {
		return nil, ErrDecryptionFailed
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}

	plaintext, err := gcm.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// BytesToHex encodes b as lowercase hex.
func BytesToHex(b []byte) string {
	return hex.EncodeToString(b)
}

// HexToBytes decodes a hex string, returning ErrInvalidEncoding for
// odd-length or non-hex input.
func HexToBytes(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidEncoding
	}
	return b, nil
}
