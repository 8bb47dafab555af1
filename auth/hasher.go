package auth

import (
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher produces and checks salted one-way password digests.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(digest, password string) bool
}

type bcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a PasswordHasher using bcrypt.DefaultCost.
func NewBcryptHasher() PasswordHasher {
	return &bcryptHasher{cost: bcrypt.DefaultCost}
}

// NewBcryptHasherWithCost returns a PasswordHasher using the given bcrypt cost.
func NewBcryptHasherWithCost(cost int) PasswordHasher {
	return &bcryptHasher{cost: cost}
}

// Hash returns a bcrypt digest. The digest carries the algorithm version,
// cost and a random salt, so hashing the same password twice gives
// different digests.
func (h *bcryptHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrPasswordTooLong
		}
		return "", errors.Wrap(err, "error hashing password")
	}
	return string(hash), nil
}

// Verify compares in constant time. A malformed digest never matches.
func (h *bcryptHasher) Verify(digest, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(password))
	return err == nil
}
