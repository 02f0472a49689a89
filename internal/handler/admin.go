package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/member-portal/internal/apperr"
	"github.com/iliyamo/member-portal/internal/middleware"
	"github.com/iliyamo/member-portal/internal/service"
)

// AdminHandler serves /api/admin. Routes are mounted behind RequireAuth and
// RequireRole(admin).
type AdminHandler struct {
	Admin *service.AdminService
	Audit *service.AuditRecorder
}

func NewAdminHandler(admin *service.AdminService, audit *service.AuditRecorder) *AdminHandler {
	return &AdminHandler{Admin: admin, Audit: audit}
}

// ListUsers handles GET /api/admin/users?skip=&limit=.
func (h *AdminHandler) ListUsers(c echo.Context) error {
	skip, err := queryInt(c, "skip", 0)
	if err != nil {
		return err
	}
	limit, err := queryInt(c, "limit", service.DefaultUserListLimit)
	if err != nil {
		return err
	}
	ctx, cancel := timeout(c)
	defer cancel()

	users, err := h.Admin.ListUsers(ctx, skip, limit)
	if err != nil {
		return err
	}
	out := make([]userResp, 0, len(users))
	for i := range users {
		out = append(out, toUserResp(&users[i]))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminHandler) ToggleActive(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	ctx, cancel := timeout(c)
	defer cancel()

	u, err := h.Admin.ToggleActive(ctx, middleware.Principal(c), id, requestMeta(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserResp(u))
}

type roleReq struct {
	Role string `json:"role"`
}

func (h *AdminHandler) SetRole(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req roleReq
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("", "invalid body")
	}
	ctx, cancel := timeout(c)
	defer cancel()

	u, err := h.Admin.SetRole(ctx, middleware.Principal(c), id, req.Role, requestMeta(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserResp(u))
}

type resetPasswordReq struct {
	NewPassword string `json:"new_password"`
}

func (h *AdminHandler) ResetPassword(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req resetPasswordReq
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("", "invalid body")
	}
	ctx, cancel := timeout(c)
	defer cancel()

	if err := h.Admin.ResetPassword(ctx, middleware.Principal(c), id, req.NewPassword, requestMeta(c)); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "password reset"})
}

func (h *AdminHandler) DeleteUser(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	ctx, cancel := timeout(c)
	defer cancel()

	if err := h.Admin.DeleteUser(ctx, middleware.Principal(c), id, requestMeta(c)); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// AuditLogs handles GET /api/admin/audit-logs?page=&page_size=&action=.
func (h *AdminHandler) AuditLogs(c echo.Context) error {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		return err
	}
	size, err := queryInt(c, "page_size", service.DefaultAuditPageSize)
	if err != nil {
		return err
	}
	ctx, cancel := timeout(c)
	defer cancel()

	p, err := h.Audit.List(ctx, service.AuditQuery{Page: page, PageSize: size, Action: c.QueryParam("action")})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAuditPageResp(p))
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("id", "id must be a positive integer")
	}
	return id, nil
}

func queryInt(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validationf(name, "%s must be an integer", name)
	}
	return n, nil
}
