package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/member-portal/internal/clock"
	"github.com/iliyamo/member-portal/internal/model"
)

const userColumns = `id, username, email, hashed_password, avatar, bio, role, is_active, created_at, updated_at`

// UserRepo persists principals. Write methods take optional audit events
// that are inserted in the same transaction as the row change, so either
// both are stored or neither is.
type UserRepo struct {
	db    *sql.DB
	clock clock.Clock
}

// NewUserRepo returns a UserRepo bound to db. Timestamps come from clk.
func NewUserRepo(db *sql.DB, clk clock.Clock) *UserRepo {
	return &UserRepo{db: db, clock: clk}
}

// Create inserts u and sets its ID and timestamps. Events whose UserID is
// nil are attributed to the new row. A unique-key violation on username or
// email returns ErrDuplicate.
func (r *UserRepo) Create(ctx context.Context, u *model.User, events ...*model.AuditLog) error {
	now := dbTime(r.clock.Now())
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO users (username, email, hashed_password, avatar, bio, role, is_active, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			u.Username, u.Email, u.PasswordHash, nullString(u.Avatar), nullString(u.Bio), u.Role, u.IsActive, now, now)
		if err != nil {
			if isDuplicate(err) {
				return ErrDuplicate
			}
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		u.ID, u.CreatedAt, u.UpdatedAt = id, now, now
		for _, e := range events {
			if e.UserID == nil {
				e.UserID = &id
			}
			if err := insertAudit(ctx, tx, e, now); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// GetByEmail expects email already normalised to lower case.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
}

func (r *UserRepo) getOne(ctx context.Context, q string, arg any) (*model.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, q, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

// List returns users ordered by id.
func (r *UserRepo) List(ctx context.Context, skip, limit int) ([]model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY id LIMIT ? OFFSET ?`, limit, skip)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// Update writes every mutable column of u and bumps UpdatedAt. It returns
// ErrNotFound when the row is gone and ErrDuplicate on a unique-key clash.
func (r *UserRepo) Update(ctx context.Context, u *model.User, events ...*model.AuditLog) error {
	now := dbTime(r.clock.Now())
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE users SET username = ?, email = ?, hashed_password = ?, avatar = ?, bio = ?,
			        role = ?, is_active = ?, updated_at = ?
			 WHERE id = ?`,
			u.Username, u.Email, u.PasswordHash, nullString(u.Avatar), nullString(u.Bio),
			u.Role, u.IsActive, now, u.ID)
		if err != nil {
			if isDuplicate(err) {
				return ErrDuplicate
			}
			return err
		}
		// MySQL reports 0 affected rows for an unchanged row, so bumping
		// updated_at keeps the count meaningful.
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return ErrNotFound
		}
		u.UpdatedAt = now
		for _, e := range events {
			if err := insertAudit(ctx, tx, e, now); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes the user. Audit rows referencing it keep their data with
// user_id set to NULL; todos are removed by the foreign key cascade.
func (r *UserRepo) Delete(ctx context.Context, id int64, events ...*model.AuditLog) error {
	now := dbTime(r.clock.Now())
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return ErrNotFound
		}
		for _, e := range events {
			if err := insertAudit(ctx, tx, e, now); err != nil {
				return err
			}
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(s rowScanner) (*model.User, error) {
	var (
		u           model.User
		avatar, bio sql.NullString
	)
	if err := s.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &avatar, &bio,
		&u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Avatar = stringPtr(avatar)
	u.Bio = stringPtr(bio)
	return &u, nil
}
