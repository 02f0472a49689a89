package auth

import (
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/iliyamo/member-portal/internal/apperr"
)

// Input policy limits. Lengths count characters, not bytes.
const (
	PasswordMinLength = 8
	PasswordMaxLength = 50
	UsernameMaxLength = 20
	BioMaxLength      = 200
	EmailMaxLength    = 255
)

// ValidatePassword enforces the password strength policy: 8–50 characters
// with at least one ASCII letter and one digit.
func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < PasswordMinLength {
		return apperr.Validationf("password", "password must be at least %d characters", PasswordMinLength)
	}
	if n > PasswordMaxLength {
		return apperr.Validationf("password", "password must be at most %d characters", PasswordMaxLength)
	}
	var letter, digit bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			letter = true
		case r >= '0' && r <= '9':
			digit = true
		}
	}
	if !letter {
		return apperr.Validation("password", "password must contain at least one letter")
	}
	if !digit {
		return apperr.Validation("password", "password must contain at least one digit")
	}
	return nil
}

// ValidateUsername trims username and checks it is 1–20 characters drawn
// from ASCII letters, digits, underscore and CJK ideographs.
func ValidateUsername(username string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", apperr.Validation("username", "username must not be empty")
	}
	if utf8.RuneCountInString(username) > UsernameMaxLength {
		return "", apperr.Validationf("username", "username must be at most %d characters", UsernameMaxLength)
	}
	for _, r := range username {
		if !usernameRune(r) {
			return "", apperr.Validation("username", "username may only contain letters, digits, underscore and CJK characters")
		}
	}
	return username, nil
}

func usernameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		return true
	}
	return unicode.Is(unicode.Han, r)
}

// NormalizeEmail trims and lower-cases email and checks it is a bare
// address (no display name) with a dotted domain.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", apperr.Validation("email", "email must not be empty")
	}
	if len(email) > EmailMaxLength {
		return "", apperr.Validation("email", "email is too long")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperr.Validation("email", "email is not a valid address")
	}
	at := strings.LastIndexByte(email, '@')
	domain := email[at+1:]
	if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return "", apperr.Validation("email", "email is not a valid address")
	}
	return email, nil
}

// ValidateBio checks the profile bio length.
func ValidateBio(bio string) error {
	if utf8.RuneCountInString(bio) > BioMaxLength {
		return apperr.Validationf("bio", "bio must be at most %d characters", BioMaxLength)
	}
	return nil
}
