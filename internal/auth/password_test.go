package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestPasswordHasherRoundTrip(t *testing.T) {
	t.Parallel()

	for _, scheme := range []string{SchemeBcrypt, SchemeArgon2id} {
		h, err := NewPasswordHasher(scheme, 4)
		if err != nil {
			t.Fatalf("NewPasswordHasher(%q): %v", scheme, err)
		}
		hash, err := h.Hash("secret123")
		if err != nil {
			t.Fatalf("%s: Hash: %v", scheme, err)
		}
		if hash == "secret123" {
			t.Fatalf("%s: hash equals plaintext", scheme)
		}
		if !h.Verify("secret123", hash) {
			t.Errorf("%s: Verify rejected the right password", scheme)
		}
		if h.Verify("secret124", hash) {
			t.Errorf("%s: Verify accepted the wrong password", scheme)
		}
	}
}

func TestPasswordHasherSalts(t *testing.T) {
	t.Parallel()

	h, _ := NewPasswordHasher(SchemeBcrypt, 4)
	a, _ := h.Hash("secret123")
	b, _ := h.Hash("secret123")
	if a == b {
		t.Error("two hashes of the same password are identical")
	}
}

func TestPasswordHasherVerifiesOtherScheme(t *testing.T) {
	t.Parallel()

	argon, _ := NewPasswordHasher(SchemeArgon2id, 0)
	bc, _ := NewPasswordHasher(SchemeBcrypt, 4)
	hash, err := argon.Hash("secret123")
	if err != nil {
		t.Fatal(err)
	}
	if !bc.Verify("secret123", hash) {
		t.Error("bcrypt-configured hasher should still verify argon2id hashes")
	}
}

func TestPasswordHasherMalformedHash(t *testing.T) {
	t.Parallel()

	h, _ := NewPasswordHasher(SchemeBcrypt, 4)
	for _, bad := range []string{"", "plain", "$argon2id$garbage", "$2a$04$short"} {
		if h.Verify("secret123", bad) {
			t.Errorf("Verify accepted malformed hash %q", bad)
		}
	}
}

func TestPasswordHasherBcryptLimit(t *testing.T) {
	t.Parallel()

	h, _ := NewPasswordHasher(SchemeBcrypt, 4)
	if _, err := h.Hash(strings.Repeat("a1", 37)); !errors.Is(err, ErrPasswordTooLong) {
		t.Errorf("Hash(74 bytes) err = %v, want ErrPasswordTooLong", err)
	}
}

func TestNewPasswordHasherUnknownScheme(t *testing.T) {
	t.Parallel()

	if _, err := NewPasswordHasher("md5", 10); err == nil {
		t.Error("expected an error for an unknown scheme")
	}
}
