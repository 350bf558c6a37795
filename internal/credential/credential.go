package credential

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// keyBytes gives 256 bits of entropy; Issue renders it as 64 hex chars,
// the same shape devices were provisioned with historically.
const keyBytes = 32

// Store issues and verifies device API keys. Keys are stored only as
// bcrypt hashes; the plaintext exists in memory for the single issuance
// response and is never logged.
type Store struct {
	cost int
}

// NewStore creates a credential store using the default bcrypt cost.
func NewStore() *Store {
	return &Store{cost: bcrypt.DefaultCost}
}

// Issue generates a fresh random API key and returns both the plaintext
// and its hash. The plaintext must be returned to the device exactly
// once and then discarded.
func (s *Store) Issue() (plaintext, hash string, err error) {
	buf := make([]byte, keyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("failed to generate API key: %w", err)
	}

	plaintext = hex.EncodeToString(buf)
	hash, err = s.Hash(plaintext)
	if err != nil {
		return "", "", err
	}

	return plaintext, hash, nil
}

// Regenerate invalidates an existing credential by issuing a new one.
func (s *Store) Regenerate() (plaintext, hash string, err error) {
	return s.Issue()
}

// Hash hashes a client-supplied key so it can be stored in place of a
// generated one.
func (s *Store) Hash(plaintext string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(plaintext), s.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash API key: %w", err)
	}
	return string(bytes), nil
}

// Verify compares a presented key against a stored hash. bcrypt's own
// comparison is constant-time over the digest.
func (s *Store) Verify(plaintext, storedHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(plaintext)) == nil
}
