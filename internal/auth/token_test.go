package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/member-portal/internal/clock"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestTokens(t *testing.T) (*TokenService, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(epoch)
	s, err := NewTokenService("test-secret", 30*time.Minute, clk)
	if err != nil {
		t.Fatal(err)
	}
	return s, clk
}

func TestTokenIssueVerify(t *testing.T) {
	t.Parallel()

	s, _ := newTestTokens(t)
	tok, exp, err := s.Issue(42, "admin", s.TTL())
	if err != nil {
		t.Fatal(err)
	}
	if !exp.Equal(epoch.Add(30 * time.Minute)) {
		t.Errorf("exp = %v", exp)
	}
	claims, err := s.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	id, err := claims.PrincipalID()
	if err != nil || id != 42 {
		t.Errorf("PrincipalID = %d, %v", id, err)
	}
	if claims.Role != "admin" || claims.Subject != "42" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestTokenExpiry(t *testing.T) {
	t.Parallel()

	s, clk := newTestTokens(t)
	tok, _, err := s.Issue(1, "user", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	clk.Advance(59 * time.Second)
	if _, err := s.Verify(tok); err != nil {
		t.Fatalf("token rejected before expiry: %v", err)
	}
	clk.Advance(time.Second)
	if _, err := s.Verify(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("token accepted at expiry: %v", err)
	}
}

func TestTokenTamperedAndForeign(t *testing.T) {
	t.Parallel()

	s, clk := newTestTokens(t)
	tok, _, _ := s.Issue(1, "user", time.Hour)

	parts := strings.Split(tok, ".")
	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:             "admin",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "1", ExpiresAt: jwt.NewNumericDate(epoch.Add(time.Hour))},
	})
	forgedRaw, _ := forged.SignedString([]byte("test-secret"))
	swapped := strings.Split(forgedRaw, ".")[1]

	other, _ := NewTokenService("other-secret", time.Hour, clk)
	foreign, _, _ := other.Issue(1, "user", time.Hour)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "1", ExpiresAt: jwt.NewNumericDate(epoch.Add(time.Hour))},
	})
	noneRaw, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	noExp := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "1"}})
	noExpRaw, _ := noExp.SignedString([]byte("test-secret"))

	for name, raw := range map[string]string{
		"empty":          "",
		"garbage":        "not.a.token",
		"payload swap":   parts[0] + "." + swapped + "." + parts[2],
		"foreign secret": foreign,
		"alg none":       noneRaw,
		"missing exp":    noExpRaw,
	} {
		if _, err := s.Verify(raw); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("%s: Verify err = %v, want ErrInvalidToken", name, err)
		}
	}
}

func TestPrincipalIDRejectsBadSubject(t *testing.T) {
	t.Parallel()

	for _, sub := range []string{"", "abc", "0", "-3"} {
		c := &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: sub}}
		if _, err := c.PrincipalID(); err == nil {
			t.Errorf("PrincipalID accepted subject %q", sub)
		}
	}
}

func TestNewTokenServiceRejectsEmptySecret(t *testing.T) {
	t.Parallel()

	if _, err := NewTokenService("", time.Minute, nil); err == nil {
		t.Error("expected an error for an empty secret")
	}
}
