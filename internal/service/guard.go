package service

import (
	"context"
	"errors"

	"github.com/iliyamo/member-portal/internal/apperr"
	"github.com/iliyamo/member-portal/internal/auth"
	"github.com/iliyamo/member-portal/internal/model"
	"github.com/iliyamo/member-portal/internal/repository"
)

// Guard resolves a raw access token into an active principal.
type Guard struct {
	tokens *auth.TokenService
	users  UserStore
}

func NewGuard(tokens *auth.TokenService, users UserStore) *Guard {
	return &Guard{tokens: tokens, users: users}
}

// Authenticate returns the principal behind raw. A missing, invalid or
// expired token and a subject that no longer exists all yield
// ErrUnauthenticated; a disabled account yields ErrAccountDisabled.
func (g *Guard) Authenticate(ctx context.Context, raw string) (*model.User, error) {
	if raw == "" {
		return nil, apperr.ErrUnauthenticated
	}
	claims, err := g.tokens.Verify(raw)
	if err != nil {
		return nil, apperr.ErrUnauthenticated
	}
	id, err := claims.PrincipalID()
	if err != nil {
		return nil, apperr.ErrUnauthenticated
	}
	u, err := g.users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, apperr.ErrAccountDisabled
	}
	return u, nil
}

// RequireRole fails with ErrInsufficientRole unless u holds role. The role
// is taken from the stored principal, not from the token claim.
func RequireRole(u *model.User, role string) error {
	if u == nil {
		return apperr.ErrUnauthenticated
	}
	if u.Role != role {
		return apperr.ErrInsufficientRole
	}
	return nil
}
