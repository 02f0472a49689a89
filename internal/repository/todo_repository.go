package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/member-portal/internal/clock"
	"github.com/iliyamo/member-portal/internal/model"
)

// TodoRepo persists to-do items. Every read and write is scoped to the
// owning user; an item owned by someone else is reported as ErrNotFound.
type TodoRepo struct {
	db    *sql.DB
	clock clock.Clock
}

func NewTodoRepo(db *sql.DB, clk clock.Clock) *TodoRepo {
	return &TodoRepo{db: db, clock: clk}
}

func (r *TodoRepo) Create(ctx context.Context, t *model.Todo) error {
	now := dbTime(r.clock.Now())
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO todos (user_id, title, is_completed, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		t.UserID, t.Title, t.IsCompleted, now, now)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID, t.CreatedAt, t.UpdatedAt = id, now, now
	return nil
}

// ListByUser returns the user's items, newest first.
func (r *TodoRepo) ListByUser(ctx context.Context, userID int64) ([]model.Todo, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, title, is_completed, created_at, updated_at
		 FROM todos WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Todo
	for rows.Next() {
		var t model.Todo
		if err := rows.Scan(&t.ID, &t.UserID, &t.Title, &t.IsCompleted, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *TodoRepo) Get(ctx context.Context, id, userID int64) (*model.Todo, error) {
	var t model.Todo
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, is_completed, created_at, updated_at
		 FROM todos WHERE id = ? AND user_id = ?`, id, userID).
		Scan(&t.ID, &t.UserID, &t.Title, &t.IsCompleted, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Update writes title and completion state.
func (r *TodoRepo) Update(ctx context.Context, t *model.Todo) error {
	now := dbTime(r.clock.Now())
	res, err := r.db.ExecContext(ctx,
		`UPDATE todos SET title = ?, is_completed = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		t.Title, t.IsCompleted, now, t.ID, t.UserID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}
	t.UpdatedAt = now
	return nil
}

func (r *TodoRepo) Delete(ctx context.Context, id, userID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM todos WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}
	return nil
}
