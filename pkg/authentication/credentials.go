// Package authentication hashes team PINs and verifies them against stored hashes.
package authentication

import (
	"github.com/hackquest/hackquest/pkg/logging"
)

// Credentials is the PIN hashing front door used by the session layer
type Credentials struct {
	hasher   *Argon2ID
	verifier PasswordVerifier
}

// NewCredentials creates Credentials that hash with argon2id using params
func NewCredentials(params Argon2Params) *Credentials {
	hasher := NewArgon2ID(params)
	return &Credentials{
		hasher:   hasher,
		verifier: NewMultiHashVerifier(hasher),
	}
}

// Hash returns a salted one-way hash of pin. Two calls never return the same string.
func (c *Credentials) Hash(pin string) (string, error) {
	return c.hasher.Hash(pin)
}

// Verify reports whether pin matches hash. Malformed hashes fail closed.
func (c *Credentials) Verify(pin, hash string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logging.App.Error("PIN verification panicked", "panic", r)
			ok = false
		}
	}()

	err := c.verifier.VerifyPassword(pin, hash)
	if err != nil && err != ErrMismatch {
		logging.App.Debug("PIN hash could not be verified", "error", err)
	}
	return err == nil
}
