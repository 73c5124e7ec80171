// Package secrets encrypts platform credentials at rest with Fernet tokens.
package secrets

import (
	"fmt"

	"github.com/fernet/fernet-go"
)

// Store wraps a Fernet key for credential encryption. Tokens never expire;
// the TTL check is skipped on decrypt because stored credentials are
// long-lived by design of the account store.
type Store struct {
	key *fernet.Key
}

// NewStore parses a base64 url-safe 32-byte Fernet key, as produced by
// `stridesync keygen` or any Fernet implementation.
func NewStore(encodedKey string) (*Store, error) {
	if encodedKey == "" {
		return nil, fmt.Errorf("encryption key is not configured (set STRIDESYNC_ENCRYPTION_KEY)")
	}
	key, err := fernet.DecodeKey(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: %w", err)
	}
	return &Store{key: key}, nil
}

// GenerateKey produces a new random Fernet key in its encoded form.
func GenerateKey() (string, error) {
	var key fernet.Key
	if err := key.Generate(); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return key.Encode(), nil
}

func (s *Store) Encrypt(plaintext string) (string, error) {
	token, err := fernet.EncryptAndSign([]byte(plaintext), s.key)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt: %w", err)
	}
	return string(token), nil
}

func (s *Store) Decrypt(ciphertext string) (string, error) {
	plaintext := fernet.VerifyAndDecrypt([]byte(ciphertext), 0, []*fernet.Key{s.key})
	if plaintext == nil {
		return "", fmt.Errorf("failed to decrypt: token invalid or key mismatch")
	}
	return string(plaintext), nil
}
