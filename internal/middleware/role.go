package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/member-portal/internal/service"
)

// RequireRole aborts with a Forbidden error unless the principal attached
// by RequireAuth holds role. It must be chained after RequireAuth.
func RequireRole(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := service.RequireRole(Principal(c), role); err != nil {
				return err
			}
			return next(c)
		}
	}
}
