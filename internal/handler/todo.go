package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/member-portal/internal/apperr"
	"github.com/iliyamo/member-portal/internal/middleware"
	"github.com/iliyamo/member-portal/internal/service"
)

type TodoHandler struct {
	Todos *service.TodoService
}

func NewTodoHandler(todos *service.TodoService) *TodoHandler { return &TodoHandler{Todos: todos} }

type todoReq struct {
	Title       *string `json:"title"`
	IsCompleted *bool   `json:"is_completed"`
}

func (h *TodoHandler) List(c echo.Context) error {
	ctx, cancel := timeout(c)
	defer cancel()

	todos, err := h.Todos.List(ctx, middleware.Principal(c))
	if err != nil {
		return err
	}
	out := make([]todoResp, 0, len(todos))
	for i := range todos {
		out = append(out, toTodoResp(&todos[i]))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *TodoHandler) Create(c echo.Context) error {
	var req todoReq
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("", "invalid body")
	}
	title := ""
	if req.Title != nil {
		title = *req.Title
	}
	ctx, cancel := timeout(c)
	defer cancel()

	t, err := h.Todos.Create(ctx, middleware.Principal(c), title)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toTodoResp(t))
}

func (h *TodoHandler) Update(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req todoReq
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("", "invalid body")
	}
	ctx, cancel := timeout(c)
	defer cancel()

	t, err := h.Todos.Update(ctx, middleware.Principal(c), id, req.Title, req.IsCompleted)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toTodoResp(t))
}

func (h *TodoHandler) Delete(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	ctx, cancel := timeout(c)
	defer cancel()

	if err := h.Todos.Delete(ctx, middleware.Principal(c), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
