package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/member-portal/internal/middleware"
	"github.com/iliyamo/member-portal/internal/model"
)

// RegisterAdmin registers the admin panel under /api/admin. Every route
// requires an active principal with the admin role.
func RegisterAdmin(e *echo.Echo, d Deps) {
	g := e.Group("/api/admin")
	admin := []echo.MiddlewareFunc{
		middleware.RequireAuth(d.Guard),
		middleware.RequireRole(model.RoleAdmin),
	}

	g.GET("/users", d.Admin.ListUsers, admin...)
	g.PATCH("/users/:id/toggle-active", d.Admin.ToggleActive, admin...)
	g.PATCH("/users/:id/role", d.Admin.SetRole, admin...)
	g.PATCH("/users/:id/reset-password", d.Admin.ResetPassword, admin...)
	g.DELETE("/users/:id", d.Admin.DeleteUser, admin...)

	g.GET("/audit-logs", d.Admin.AuditLogs, admin...)
}
