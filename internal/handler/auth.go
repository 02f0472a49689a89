package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/member-portal/internal/apperr"
	"github.com/iliyamo/member-portal/internal/middleware"
	"github.com/iliyamo/member-portal/internal/service"
)

// CookieConfig controls the attributes of the access_token cookie.
type CookieConfig struct {
	Secure bool
	TTL    time.Duration
}

// AuthHandler serves registration, login and logout.
type AuthHandler struct {
	Accounts *service.AccountService
	Cookie   CookieConfig
}

func NewAuthHandler(accounts *service.AccountService, cookie CookieConfig) *AuthHandler {
	return &AuthHandler{Accounts: accounts, Cookie: cookie}
}

type registerReq struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account. It does not log the user in.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("", "invalid body")
	}
	ctx, cancel := timeout(c)
	defer cancel()

	u, err := h.Accounts.Register(ctx, service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	}, requestMeta(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toUserResp(u))
}

// Login verifies credentials and sets the access_token cookie. The token is
// never returned in the body.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("", "invalid body")
	}
	ctx, cancel := timeout(c)
	defer cancel()

	sess, err := h.Accounts.Login(ctx, req.Email, req.Password, requestMeta(c))
	if err != nil {
		return err
	}
	c.SetCookie(h.sessionCookie(sess.Token, int(h.Cookie.TTL/time.Second)))
	return c.JSON(http.StatusOK, echo.Map{
		"user":       toUserResp(sess.User),
		"expires_at": sess.ExpiresAt,
	})
}

// Logout clears the cookie. It succeeds with or without a valid session
// and audits the logout only when one was present.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx, cancel := timeout(c)
	defer cancel()

	h.Accounts.Logout(ctx, middleware.Principal(c), requestMeta(c))
	c.SetCookie(h.sessionCookie("", -1))
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

func (h *AuthHandler) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     middleware.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.Cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
