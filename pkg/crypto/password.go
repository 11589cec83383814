package crypto

import (
	"crypto/rand"
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"
)

// SaltSize is the length of the random salt generated for each credential.
// bcrypt folds its own salt into the returned hash, but a stored credential
// record carries an explicit salt field, so the store keeps one and mixes it
// into the password before hashing — letting a future credential scheme
// swap in without changing the on-disk record shape.
const SaltSize = 16

// NewSalt generates a fresh random salt for a new credential.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// HashPassword derives an opaque credential blob from a password and its
// salt.
func HashPassword(password string, salt []byte) ([]byte, error) {
	return bcrypt.GenerateFromPassword(append(salt, password...), bcrypt.DefaultCost)
}

// VerifyPassword checks a candidate password against a stored hash and
// salt. Returns ErrCredentialInvalid on mismatch, never distinguishing
// "wrong password" from other failure modes to the caller.
func VerifyPassword(password string, salt, hash []byte) error {
	if err := bcrypt.CompareHashAndPassword(hash, append(salt, password...)); err != nil {
		return ErrCredentialInvalid
	}
	return nil
}

// ConstantTimeEqual compares two byte slices without leaking timing
// information, for callers comparing a hash output directly rather than
// through bcrypt's own comparison.
func ConstantTimeEqual(a, b []byte) bool {
	return len(a) == len(b) && subtle.ConstantTimeCompare(a, b) == 1
}
