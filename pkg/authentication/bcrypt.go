package authentication

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Bcrypt verifies $2a$/$2b$/$2y$ hashes, the format rows created by the
// first version of the tracker were written in.
type Bcrypt struct{}

// NewBcrypt returns a Bcrypt verifier
func NewBcrypt() *Bcrypt { return &Bcrypt{} }

// VerifyPassword implements PasswordVerifier
func (b *Bcrypt) VerifyPassword(password, hashedPassword string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrMismatch
	default:
		return fmt.Errorf("%w: %v", ErrUnsupportedHash, err)
	}
}
