package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/iliyamo/member-portal/internal/apperr"
	"github.com/iliyamo/member-portal/internal/model"
)

const maxTodoTitle = 200

// TodoService manages a principal's own to-do items.
type TodoService struct {
	todos TodoStore
}

func NewTodoService(todos TodoStore) *TodoService { return &TodoService{todos: todos} }

func (s *TodoService) List(ctx context.Context, owner *model.User) ([]model.Todo, error) {
	return s.todos.ListByUser(ctx, owner.ID)
}

func (s *TodoService) Create(ctx context.Context, owner *model.User, title string) (*model.Todo, error) {
	title, err := todoTitle(title)
	if err != nil {
		return nil, err
	}
	t := &model.Todo{UserID: owner.ID, Title: title}
	if err := s.todos.Create(ctx, t); err != nil {
		return nil, translate(err)
	}
	return t, nil
}

// Update changes the title and/or completion state. Items owned by someone
// else are reported as not found.
func (s *TodoService) Update(ctx context.Context, owner *model.User, id int64, title *string, completed *bool) (*model.Todo, error) {
	t, err := s.todos.Get(ctx, id, owner.ID)
	if err != nil {
		return nil, translate(err)
	}
	if title != nil {
		if t.Title, err = todoTitle(*title); err != nil {
			return nil, err
		}
	}
	if completed != nil {
		t.IsCompleted = *completed
	}
	if err := s.todos.Update(ctx, t); err != nil {
		return nil, translate(err)
	}
	return t, nil
}

func (s *TodoService) Delete(ctx context.Context, owner *model.User, id int64) error {
	return translate(s.todos.Delete(ctx, id, owner.ID))
}

func todoTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", apperr.Validation("title", "title must not be empty")
	}
	if utf8.RuneCountInString(title) > maxTodoTitle {
		return "", apperr.Validationf("title", "title must be at most %d characters", maxTodoTitle)
	}
	return title, nil
}
