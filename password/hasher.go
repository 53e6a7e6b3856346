package password

import (
	"errors"
	"strings"
)

var (
	// ErrEmptyPassword is returned when hashing an empty password.
	ErrEmptyPassword = errors.New("password: empty password")
	// ErrMalformedHash is returned when a stored hash cannot be decoded.
	ErrMalformedHash = errors.New("password: malformed hash")
)

// Hasher hashes new passwords and checks candidates against stored hashes.
// Verify returns (false, nil) on a plain mismatch.
type Hasher interface {
	Hash(plain string) (string, error)
	Verify(plain, encoded string) (bool, error)
}

// Chain hashes with Primary and verifies with whichever hasher produced the
// stored value, so accounts created under an older scheme keep working.
type Chain struct {
	Primary Hasher
	Bcrypt  *Bcrypt
	Argon2  *Argon2
}

// Hash delegates to Primary.
func (c Chain) Hash(plain string) (string, error) {
	return c.Primary.Hash(plain)
}

// Verify picks the hasher from the stored hash prefix.
func (c Chain) Verify(plain, encoded string) (bool, error) {
	switch {
	case strings.HasPrefix(encoded, "$"+argon2ID+"$") && c.Argon2 != nil:
		return c.Argon2.Verify(plain, encoded)
	case strings.HasPrefix(encoded, "$2") && c.Bcrypt != nil:
		return c.Bcrypt.Verify(plain, encoded)
	default:
		return c.Primary.Verify(plain, encoded)
	}
}
