package handler

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/member-portal/internal/model"
	"github.com/iliyamo/member-portal/internal/service"
)

// requestTimeout bounds the storage work of a single request.
const requestTimeout = 5 * time.Second

// userResp is the public view of a principal. It has no password field.
type userResp struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Avatar    *string   `json:"avatar"`
	Bio       *string   `json:"bio"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toUserResp(u *model.User) userResp {
	return userResp{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Avatar:    u.Avatar,
		Bio:       u.Bio,
		Role:      u.Role,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type auditResp struct {
	ID        int64     `json:"id"`
	UserID    *int64    `json:"user_id"`
	Username  *string   `json:"username"`
	Action    string    `json:"action"`
	IPAddress *string   `json:"ip_address"`
	UserAgent *string   `json:"user_agent"`
	Details   *string   `json:"details"`
	CreatedAt time.Time `json:"created_at"`
}

type auditPageResp struct {
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalPages int         `json:"total_pages"`
	HasMore    bool        `json:"has_more"`
	Logs       []auditResp `json:"logs"`
}

func toAuditPageResp(p *service.AuditPage) auditPageResp {
	out := auditPageResp{
		Total:      p.Total,
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalPages: p.TotalPages,
		HasMore:    p.HasMore,
		Logs:       make([]auditResp, 0, len(p.Logs)),
	}
	for _, a := range p.Logs {
		out.Logs = append(out.Logs, auditResp{
			ID:        a.ID,
			UserID:    a.UserID,
			Username:  a.Username,
			Action:    a.Action,
			IPAddress: a.IPAddress,
			UserAgent: a.UserAgent,
			Details:   a.Details,
			CreatedAt: a.CreatedAt,
		})
	}
	return out
}

type todoResp struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	IsCompleted bool      `json:"is_completed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toTodoResp(t *model.Todo) todoResp {
	return todoResp{ID: t.ID, Title: t.Title, IsCompleted: t.IsCompleted, CreatedAt: t.CreatedAt, UpdatedAt: t.UpdatedAt}
}

// requestMeta collects the client details recorded with audit events.
func requestMeta(c echo.Context) service.RequestMeta {
	return service.RequestMeta{IP: c.RealIP(), UserAgent: c.Request().UserAgent()}
}

func timeout(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}
