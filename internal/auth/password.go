package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alexedwards/argon2id"
	"golang.org/x/crypto/bcrypt"
)

// Hash schemes understood by PasswordHasher.
const (
	SchemeBcrypt   = "bcrypt"
	SchemeArgon2id = "argon2id"
)

// ErrPasswordTooLong is returned by Hash when the bcrypt scheme would have
// to truncate the input.
var ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

const bcryptMaxBytes = 72

// PasswordHasher produces salted, adaptive-cost password hashes. New hashes
// use the configured scheme; Verify accepts hashes from either scheme so the
// setting can be changed without invalidating stored credentials.
type PasswordHasher struct {
	scheme string
	cost   int
	params *argon2id.Params
}

// NewPasswordHasher returns a hasher for scheme ("bcrypt" or "argon2id").
// bcryptCost is clamped to bcrypt's accepted range.
func NewPasswordHasher(scheme string, bcryptCost int) (*PasswordHasher, error) {
	scheme = strings.ToLower(strings.TrimSpace(scheme))
	switch scheme {
	case "", SchemeBcrypt:
		scheme = SchemeBcrypt
	case SchemeArgon2id:
	default:
		return nil, fmt.Errorf("unknown password hash scheme %q", scheme)
	}
	if bcryptCost < bcrypt.MinCost {
		bcryptCost = bcrypt.MinCost
	}
	if bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.MaxCost
	}
	return &PasswordHasher{scheme: scheme, cost: bcryptCost, params: argon2id.DefaultParams}, nil
}

func (h *PasswordHasher) Scheme() string { return h.scheme }

// Hash returns the encoded hash of plain.
func (h *PasswordHasher) Hash(plain string) (string, error) {
	if h.scheme == SchemeArgon2id {
		return argon2id.CreateHash(plain, h.params)
	}
	if len(plain) > bcryptMaxBytes {
		return "", ErrPasswordTooLong
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify reports whether plain matches hash. Comparison is constant-time
// inside both schemes; a malformed hash yields false, never an error.
func (h *PasswordHasher) Verify(plain, hash string) bool {
	if strings.HasPrefix(hash, "$argon2id$") {
		ok, err := argon2id.ComparePasswordAndHash(plain, hash)
		return err == nil && ok
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
