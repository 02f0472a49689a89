package middleware

import (
	"context"
	"errors"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/member-portal/internal/apperr"
	"github.com/iliyamo/member-portal/internal/model"
)

// CookieName is the HttpOnly cookie carrying the access token.
const CookieName = "access_token"

const principalKey = "principal"

// Authenticator resolves a raw token into an active principal.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (*model.User, error)
}

// RequireAuth rejects the request unless the access_token cookie resolves
// to an active principal, which is then available through Principal.
func RequireAuth(a Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u, err := a.Authenticate(c.Request().Context(), tokenFromCookie(c))
			if err != nil {
				return err
			}
			c.Set(principalKey, u)
			return next(c)
		}
	}
}

// OptionalAuth attaches the principal when the cookie is valid and lets the
// request through otherwise. Storage failures still abort the request.
func OptionalAuth(a Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := tokenFromCookie(c)
			if raw == "" {
				return next(c)
			}
			u, err := a.Authenticate(c.Request().Context(), raw)
			switch {
			case err == nil:
				c.Set(principalKey, u)
			case errors.Is(err, apperr.ErrUnauthenticated), errors.Is(err, apperr.ErrForbidden):
			default:
				return err
			}
			return next(c)
		}
	}
}

// Principal returns the authenticated user, or nil when none is attached.
func Principal(c echo.Context) *model.User {
	u, _ := c.Get(principalKey).(*model.User)
	return u
}

func tokenFromCookie(c echo.Context) string {
	ck, err := c.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return ck.Value
}
