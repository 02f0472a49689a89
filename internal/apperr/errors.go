// Package apperr defines the error taxonomy shared by the service layer,
// the HTTP middleware and the handlers. Handlers translate these values into
// status codes; nothing below the boundary writes HTTP responses for them.
package apperr

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed input for a single field. It is shown to
// the caller and never recorded as an audit event.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Validation builds a *ValidationError for field.
func Validation(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// Validationf is Validation with a format string.
func Validationf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// AsValidation unwraps err into a *ValidationError when it is one.
func AsValidation(err error) (*ValidationError, bool) {
	var v *ValidationError
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}

var (
	// ErrUnauthenticated covers a missing, malformed, tampered or expired
	// token and a token whose subject no longer exists. The message is the
	// same in every case.
	ErrUnauthenticated = errors.New("not logged in or session expired")

	// ErrForbidden is the parent of every authorization failure below.
	ErrForbidden = errors.New("forbidden")

	ErrAccountDisabled  = fmt.Errorf("%w: account disabled", ErrForbidden)
	ErrInsufficientRole = fmt.Errorf("%w: insufficient role", ErrForbidden)

	// ErrSelfAction is returned when an admin targets their own account with
	// deactivate, delete, role change or password reset.
	ErrSelfAction = fmt.Errorf("%w: operation not allowed on your own account", ErrForbidden)

	// ErrConflict never says which of username or email collided.
	ErrConflict = errors.New("username or email already in use")

	ErrNotFound           = errors.New("not found")
	ErrRateLimited        = errors.New("too many requests")
	ErrInvalidCredentials = errors.New("invalid email or password")
)
