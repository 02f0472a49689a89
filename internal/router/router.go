// Package router builds the Echo server and registers every route.
package router

import (
	"fmt"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/member-portal/internal/handler"
	"github.com/iliyamo/member-portal/internal/middleware"
	"github.com/iliyamo/member-portal/internal/ratelimit"
)

// Options configures the server-wide middleware.
type Options struct {
	CORSOrigins    []string
	TrustProxy     bool   // take the client address from X-Forwarded-For
	UploadDir      string // served read-only under /uploads
	MaxUploadBytes int64
}

// Deps are the handlers and guards the routes are wired to.
type Deps struct {
	Guard           middleware.Authenticator
	Limiter         ratelimit.Limiter
	RateLimitPrefix string
	DB              handler.Pinger

	Auth  *handler.AuthHandler
	Users *handler.UserHandler
	Admin *handler.AdminHandler
	Todos *handler.TodoHandler

	Log *zap.Logger
}

// New returns a configured Echo instance with all routes registered.
func New(opts Options, d Deps) *echo.Echo {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler(d.Log)
	if opts.TrustProxy {
		e.IPExtractor = echo.ExtractIPFromXFFHeader()
	} else {
		e.IPExtractor = echo.ExtractIPDirect()
	}

	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(d.Log))
	if len(opts.CORSOrigins) > 0 {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins:     opts.CORSOrigins,
			AllowCredentials: true,
		}))
	}
	// Room for multipart framing on top of the avatar itself.
	e.Use(echomw.BodyLimit(fmt.Sprintf("%dK", (opts.MaxUploadBytes+(1<<20))/1024+1)))

	if opts.UploadDir != "" {
		e.Static("/uploads", opts.UploadDir)
	}

	RegisterRoutes(e, d)
	RegisterAuth(e, d)
	RegisterUser(e, d)
	RegisterAdmin(e, d)
	return e
}

// RegisterRoutes registers the unauthenticated health check.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health(d.DB))
}

// RegisterAuth registers registration, login and logout. Registration and
// login are rate limited per client address before any other work.
func RegisterAuth(e *echo.Echo, d Deps) {
	g := e.Group("/api")
	g.POST("/register", d.Auth.Register, middleware.RateLimit(d.Limiter, d.RateLimitPrefix, "register", d.Log))
	g.POST("/login", d.Auth.Login, middleware.RateLimit(d.Limiter, d.RateLimitPrefix, "login", d.Log))
	g.POST("/logout", d.Auth.Logout, middleware.OptionalAuth(d.Guard))
}
