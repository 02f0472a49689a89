// Package service holds the application operations behind the HTTP
// handlers: the access control guard, the audit recorder, self-service
// account operations, admin operations and the to-do list. Services depend
// on the small store interfaces below, satisfied by package repository in
// production and by package repository/memory in tests.
package service

import (
	"context"
	"errors"

	"github.com/iliyamo/member-portal/internal/apperr"
	"github.com/iliyamo/member-portal/internal/model"
	"github.com/iliyamo/member-portal/internal/repository"
)

// UserStore persists principals. Audit events passed to write methods are
// stored atomically with the row change.
type UserStore interface {
	Create(ctx context.Context, u *model.User, events ...*model.AuditLog) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	List(ctx context.Context, skip, limit int) ([]model.User, error)
	Update(ctx context.Context, u *model.User, events ...*model.AuditLog) error
	Delete(ctx context.Context, id int64, events ...*model.AuditLog) error
}

// AuditStore appends and lists audit rows.
type AuditStore interface {
	Insert(ctx context.Context, e *model.AuditLog) error
	List(ctx context.Context, f repository.AuditFilter) ([]model.AuditLog, error)
	Count(ctx context.Context, action string) (int, error)
}

// TodoStore persists owner-scoped to-do items.
type TodoStore interface {
	Create(ctx context.Context, t *model.Todo) error
	ListByUser(ctx context.Context, userID int64) ([]model.Todo, error)
	Get(ctx context.Context, id, userID int64) (*model.Todo, error)
	Update(ctx context.Context, t *model.Todo) error
	Delete(ctx context.Context, id, userID int64) error
}

// RequestMeta carries the client details recorded with audit events.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// translate maps repository sentinels onto the domain taxonomy. Other
// errors pass through unchanged and surface as internal errors.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrDuplicate):
		return apperr.ErrConflict
	case errors.Is(err, repository.ErrNotFound):
		return apperr.ErrNotFound
	}
	return err
}
