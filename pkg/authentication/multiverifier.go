package authentication

import "strings"

// MultiHashVerifier detects the hash type and delegates to the matching verifier
type MultiHashVerifier struct {
	argon2id *Argon2ID
	bcrypt   *Bcrypt
}

// NewMultiHashVerifier creates a verifier that supports argon2id and bcrypt
func NewMultiHashVerifier(argon2id *Argon2ID) *MultiHashVerifier {
	return &MultiHashVerifier{
		argon2id: argon2id,
		bcrypt:   NewBcrypt(),
	}
}

// VerifyPassword implements PasswordVerifier
func (v *MultiHashVerifier) VerifyPassword(password, hashedPassword string) error {
	switch {
	case strings.HasPrefix(hashedPassword, argon2Prefix):
		return v.argon2id.VerifyPassword(password, hashedPassword)
	case strings.HasPrefix(hashedPassword, "$2a$"),
		strings.HasPrefix(hashedPassword, "$2b$"),
		strings.HasPrefix(hashedPassword, "$2y$"):
		return v.bcrypt.VerifyPassword(password, hashedPassword)
	}
	return ErrUnsupportedHash
}
