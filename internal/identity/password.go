package identity

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher turns plaintext passwords into stored hashes.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) bool
	// Deterministic reports whether equal passwords always produce equal
	// hashes, which allows looking users up by hash.
	Deterministic() bool
}

// BcryptHasher hashes passwords with bcrypt.
type BcryptHasher struct {
	Cost int
}

// NewBcryptHasher creates a bcrypt hasher with the default cost.
func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{Cost: bcrypt.DefaultCost}
}

// Hash implements PasswordHasher.
func (h *BcryptHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Compare implements PasswordHasher.
func (h *BcryptHasher) Compare(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Deterministic implements PasswordHasher.
func (h *BcryptHasher) Deterministic() bool { return false }

// SHA256Hasher stores the unsalted lowercase hex SHA-256 digest of the
// password. It exists for accounts imported with such hashes; prefer
// BcryptHasher for new deployments.
type SHA256Hasher struct{}

// Hash implements PasswordHasher.
func (SHA256Hasher) Hash(password string) (string, error) {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:]), nil
}

// Compare implements PasswordHasher.
func (h SHA256Hasher) Compare(hash, password string) bool {
	computed, _ := h.Hash(password)
	return subtle.ConstantTimeCompare([]byte(hash), []byte(computed)) == 1
}

// Deterministic implements PasswordHasher.
func (SHA256Hasher) Deterministic() bool { return true }
