// Package password provides one-way hashing and verification of user
// credentials. The default hasher is bcrypt with a cost of 10, matching
// the hashes already present in seeded databases; argon2id is available
// as a drop-in alternative for new deployments.
package password

import (
	"errors"
	"fmt"

	"github.com/alexedwards/argon2id"
	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the work factor used for new bcrypt hashes.
const DefaultBcryptCost = 10

// Hasher performs salted one-way password hashing and verification.
// Check returns false (not an error) when the password simply does not
// match, so callers never have to distinguish mismatch from failure.
type Hasher interface {
	Hash(password string) (string, error)
	Check(password, hash string) (bool, error)
}

// Bcrypt implements Hasher using the bcrypt algorithm.
// Comparison is constant-time with respect to the candidate password.
type Bcrypt struct {
	// Cost is the bcrypt work factor. Zero means DefaultBcryptCost.
	Cost int
}

var _ Hasher = Bcrypt{}

// NewBcrypt returns a bcrypt hasher with the default cost.
func NewBcrypt() Bcrypt {
	return Bcrypt{Cost: DefaultBcryptCost}
}

// Hash returns the bcrypt digest of the password.
func (b Bcrypt) Hash(password string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt hash: %w", err)
	}
	return string(bytes), nil
}

// Check compares a plaintext password against a bcrypt digest.
func (b Bcrypt) Check(password, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, fmt.Errorf("bcrypt compare password hash: %w", err)
	}
	return true, nil
}

// Argon2ID implements Hasher using the argon2id algorithm with the
// library's default parameters.
type Argon2ID struct{}

var _ Hasher = Argon2ID{}

// NewArgon2ID returns an argon2id hasher.
func NewArgon2ID() Argon2ID {
	return Argon2ID{}
}

// Hash returns the argon2id digest of the password.
func (Argon2ID) Hash(password string) (string, error) {
	s, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		return "", fmt.Errorf("argon2id hash: %w", err)
	}
	return s, nil
}

// Check compares a plaintext password against an argon2id digest.
func (Argon2ID) Check(password, hash string) (bool, error) {
	ok, err := argon2id.ComparePasswordAndHash(password, hash)
	if err != nil {
		return false, fmt.Errorf("argon2id compare password hash: %w", err)
	}
	return ok, nil
}

// ForAlgorithm returns the Hasher for a configured algorithm name.
// An empty name selects bcrypt.
func ForAlgorithm(name string) (Hasher, error) {
	switch name {
	case "", "bcrypt":
		return NewBcrypt(), nil
	case "argon2id":
		return NewArgon2ID(), nil
	default:
		return nil, fmt.Errorf("unknown password algorithm %q", name)
	}
}
