package authentication

import "errors"

// PasswordVerifier is an interface for password verification algorithms
type PasswordVerifier interface {
	// VerifyPassword returns nil if password matches hashedPassword
	VerifyPassword(password, hashedPassword string) error
}

var (
	// ErrMismatch is returned when a PIN does not match its hash
	ErrMismatch = errors.New("password mismatch")

	// ErrUnsupportedHash is returned for hashes in an unknown or malformed format
	ErrUnsupportedHash = errors.New("unsupported hash format")
)
