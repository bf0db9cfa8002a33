package authentication

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	argon2Prefix  = "$argon2id$"
	argon2Version = argon2.Version
	saltLength    = 16
	keyLength     = 32

	// Upper bounds on the cost read from a stored hash; anything above is
	// refused rather than derived
	maxMemory    = 256 * 1024 // KiB
	maxTime      = 16
	maxKeyLength = 64
)

// Argon2Params are the cost parameters encoded into every hash
type Argon2Params struct {
	Memory  uint32 // KiB
	Time    uint32
	Threads uint8
}

// DefaultArgon2Params follow the OWASP minimum for argon2id
var DefaultArgon2Params = Argon2Params{Memory: 19 * 1024, Time: 2, Threads: 1}

// Argon2ID hashes and verifies Argon2id PHC-formatted strings.
// Format: $argon2id$v=19$m=19456,t=2,p=1$<salt_b64>$<hash_b64>
type Argon2ID struct {
	params Argon2Params
}

// NewArgon2ID returns an Argon2ID hasher using params for new hashes
func NewArgon2ID(params Argon2Params) *Argon2ID {
	return &Argon2ID{params: params}
}

// Hash derives a key from password with a fresh random salt
func (a *Argon2ID) Hash(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, a.params.Time, a.params.Memory, a.params.Threads, keyLength)
	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Prefix,
		argon2Version,
		a.params.Memory, a.params.Time, a.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyPassword verifies a password against a PHC-formatted argon2id hash.
// The cost parameters are read from the hash, not from a.params.
func (a *Argon2ID) VerifyPassword(password, hashedPassword string) error {
	params, salt, expected, err := parseArgon2ID(hashedPassword)
	if err != nil {
		return err
	}

	derived := argon2.IDKey([]byte(password), salt, params.Time, params.Memory, params.Threads, uint32(len(expected)))
	if subtle.ConstantTimeCompare(derived, expected) == 1 {
		return nil
	}
	return ErrMismatch
}

func parseArgon2ID(s string) (Argon2Params, []byte, []byte, error) {
	var params Argon2Params

	// ["", "argon2id", "v=19", "m=..,t=..,p=..", salt, hash]
	parts := strings.Split(s, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return params, nil, nil, fmt.Errorf("%w: not an argon2id hash", ErrUnsupportedHash)
	}

	version, ok := strings.CutPrefix(parts[2], "v=")
	if !ok {
		return params, nil, nil, fmt.Errorf("%w: missing argon2id version", ErrUnsupportedHash)
	}
	if v, err := strconv.Atoi(version); err != nil || v != argon2Version {
		return params, nil, nil, fmt.Errorf("%w: argon2id version %q", ErrUnsupportedHash, version)
	}

	seen := 0
	for _, kv := range strings.Split(parts[3], ",") {
		key, val, ok := strings.Cut(kv, "=")
		if !ok {
			return params, nil, nil, fmt.Errorf("%w: argon2id parameter %q", ErrUnsupportedHash, kv)
		}
		n, err := strconv.ParseUint(val, 10, 32)
		if err != nil || n == 0 {
			return params, nil, nil, fmt.Errorf("%w: argon2id parameter %q", ErrUnsupportedHash, kv)
		}
		switch key {
		case "m":
			if n > maxMemory {
				return params, nil, nil, fmt.Errorf("%w: argon2id memory %d KiB", ErrUnsupportedHash, n)
			}
			params.Memory = uint32(n)
		case "t":
			if n > maxTime {
				return params, nil, nil, fmt.Errorf("%w: argon2id time %d", ErrUnsupportedHash, n)
			}
			params.Time = uint32(n)
		case "p":
			if n > 255 {
				return params, nil, nil, fmt.Errorf("%w: argon2id parallelism %d", ErrUnsupportedHash, n)
			}
			params.Threads = uint8(n)
		default:
			return params, nil, nil, fmt.Errorf("%w: argon2id parameter %q", ErrUnsupportedHash, key)
		}
		seen++
	}
	if seen != 3 || params.Memory == 0 || params.Time == 0 || params.Threads == 0 {
		return params, nil, nil, fmt.Errorf("%w: incomplete argon2id parameters", ErrUnsupportedHash)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return params, nil, nil, fmt.Errorf("%w: argon2id salt: %v", ErrUnsupportedHash, err)
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return params, nil, nil, fmt.Errorf("%w: argon2id hash: %v", ErrUnsupportedHash, err)
	}
	if len(hash) == 0 || len(hash) > maxKeyLength {
		return params, nil, nil, fmt.Errorf("%w: argon2id hash length %d", ErrUnsupportedHash, len(hash))
	}
	return params, salt, hash, nil
}
