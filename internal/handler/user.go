package handler

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"path/filepath"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/member-portal/internal/apperr"
	"github.com/iliyamo/member-portal/internal/middleware"
	"github.com/iliyamo/member-portal/internal/service"
)

// UserHandler serves the authenticated principal's own profile.
type UserHandler struct {
	Accounts       *service.AccountService
	MaxUploadBytes int64
}

func NewUserHandler(accounts *service.AccountService, maxUploadBytes int64) *UserHandler {
	return &UserHandler{Accounts: accounts, MaxUploadBytes: maxUploadBytes}
}

type profileReq struct {
	Username        *string `json:"username"`
	Email           *string `json:"email"`
	Bio             *string `json:"bio"`
	Password        *string `json:"password"`
	CurrentPassword string  `json:"current_password"`
}

// Me returns the current principal.
func (h *UserHandler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, toUserResp(middleware.Principal(c)))
}

// UpdateMe applies a partial profile update.
func (h *UserHandler) UpdateMe(c echo.Context) error {
	var req profileReq
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("", "invalid body")
	}
	// An empty password field means no change.
	if req.Password != nil && *req.Password == "" {
		req.Password = nil
	}
	ctx, cancel := timeout(c)
	defer cancel()

	u, err := h.Accounts.UpdateProfile(ctx, middleware.Principal(c), service.ProfileUpdate{
		Username:        req.Username,
		Email:           req.Email,
		Bio:             req.Bio,
		NewPassword:     req.Password,
		CurrentPassword: req.CurrentPassword,
	}, requestMeta(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserResp(u))
}

// UploadAvatar reads the multipart "file" field into memory, up to the
// size cap plus one byte so oversize files are detected, and replaces the
// principal's avatar.
func (h *UserHandler) UploadAvatar(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return apperr.Validation("file", "file is required")
		}
		return apperr.Validation("file", "invalid multipart body")
	}
	if fh.Size > h.MaxUploadBytes {
		return apperr.Validationf("file", "file exceeds the size limit of %d bytes", h.MaxUploadBytes)
	}
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(src, h.MaxUploadBytes+1)); err != nil {
		return err
	}

	ctx, cancel := timeout(c)
	defer cancel()
	u, err := h.Accounts.UploadAvatar(ctx, middleware.Principal(c), filepath.Ext(fh.Filename), buf.Bytes(), requestMeta(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserResp(u))
}
