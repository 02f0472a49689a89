package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/member-portal/internal/clock"
)

// ErrInvalidToken is the only error Verify returns. Callers cannot tell a
// bad signature from an expired or garbled token.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the access token payload: sub (principal id as a decimal
// string), role and exp.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// PrincipalID parses the subject claim.
func (c *Claims) PrincipalID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidToken
	}
	return id, nil
}

// TokenService issues and verifies HS256-signed access tokens. It holds no
// per-token state; a token is valid until its exp passes.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

// NewTokenService returns a TokenService signing with secret. ttl is the
// default lifetime returned by TTL.
func NewTokenService(secret string, ttl time.Duration, clk clock.Clock) (*TokenService, error) {
	if secret == "" {
		return nil, errors.New("token secret is empty")
	}
	if ttl <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, clock: clk}, nil
}

// TTL is the configured default lifetime.
func (s *TokenService) TTL() time.Duration { return s.ttl }

// Issue signs a token for principalID with role that expires ttl from now.
// It returns the token and its absolute expiry.
func (s *TokenService) Issue(principalID int64, role string, ttl time.Duration) (string, time.Time, error) {
	now := s.clock.Now().UTC()
	exp := now.Add(ttl).Truncate(jwt.TimePrecision)
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(principalID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify checks the signature, the algorithm and that exp is still in the
// future according to the service clock.
func (s *TokenService) Verify(raw string) (*Claims, error) {
	if raw == "" {
		return nil, ErrInvalidToken
	}
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
