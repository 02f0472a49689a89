package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/member-portal/internal/middleware"
)

// RegisterUser registers the endpoints available to any active principal:
// the profile, the avatar upload and the to-do list. The guard is attached
// per route so unknown /api paths still answer 404.
func RegisterUser(e *echo.Echo, d Deps) {
	g := e.Group("/api")
	auth := middleware.RequireAuth(d.Guard)

	g.GET("/me", d.Users.Me, auth)
	g.PATCH("/me", d.Users.UpdateMe, auth)
	g.POST("/avatar", d.Users.UploadAvatar, auth)

	g.GET("/todos", d.Todos.List, auth)
	g.POST("/todos", d.Todos.Create, auth)
	g.PATCH("/todos/:id", d.Todos.Update, auth)
	g.DELETE("/todos/:id", d.Todos.Delete, auth)
}
