package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hasher turns a PIN into a salted digest and checks candidates against it.
type Hasher interface {
	Hash(secret string) ([]byte, error)
	Verify(secret string, digest []byte) bool
}

// BcryptHasher implements Hasher with bcrypt at a fixed cost.
type BcryptHasher struct {
	Cost int
}

// Hash returns the bcrypt digest of secret.
func (h BcryptHasher) Hash(secret string) ([]byte, error) {
	cost := h.Cost
	if cost < bcrypt.DefaultCost {
		cost = bcrypt.DefaultCost
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return nil, fmt.Errorf("hash pin: %w", err)
	}
	return digest, nil
}

// Verify reports whether secret matches digest.
func (h BcryptHasher) Verify(secret string, digest []byte) bool {
	return bcrypt.CompareHashAndPassword(digest, []byte(secret)) == nil
}
