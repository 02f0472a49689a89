package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/member-portal/internal/clock"
	"github.com/iliyamo/member-portal/internal/model"
)

// AuditFilter narrows an audit log listing. An empty Action matches every
// action. Offset and Limit are applied after ordering newest first.
type AuditFilter struct {
	Action string
	Offset int
	Limit  int
}

// AuditRepo appends to and reads from audit_logs. It has no update or
// delete methods.
type AuditRepo struct {
	db    *sql.DB
	clock clock.Clock
}

// NewAuditRepo returns an AuditRepo bound to db.
func NewAuditRepo(db *sql.DB, clk clock.Clock) *AuditRepo {
	return &AuditRepo{db: db, clock: clk}
}

// Insert appends e on its own connection, outside any caller transaction.
func (r *AuditRepo) Insert(ctx context.Context, e *model.AuditLog) error {
	return insertAudit(ctx, r.db, e, r.clock.Now())
}

func insertAudit(ctx context.Context, q execer, e *model.AuditLog, now time.Time) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = dbTime(now)
	}
	res, err := q.ExecContext(ctx,
		`INSERT INTO audit_logs (user_id, action, ip_address, user_agent, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		nullInt64(e.UserID), e.Action, nullString(e.IPAddress), nullString(e.UserAgent), nullString(e.Details), e.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}

// List returns audit rows newest first, joined with the current username of
// the referenced principal when it still exists.
func (r *AuditRepo) List(ctx context.Context, f AuditFilter) ([]model.AuditLog, error) {
	q := `SELECT a.id, a.user_id, u.username, a.action, a.ip_address, a.user_agent, a.details, a.created_at
	      FROM audit_logs a LEFT JOIN users u ON u.id = a.user_id`
	args := []any{}
	if f.Action != "" {
		q += ` WHERE a.action = ?`
		args = append(args, f.Action)
	}
	q += ` ORDER BY a.created_at DESC, a.id DESC LIMIT ? OFFSET ?`
	args = append(args, f.Limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AuditLog
	for rows.Next() {
		var (
			a                        model.AuditLog
			userID                   sql.NullInt64
			username, ip, ua, detail sql.NullString
		)
		if err := rows.Scan(&a.ID, &userID, &username, &a.Action, &ip, &ua, &detail, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.UserID = int64Ptr(userID)
		a.Username = stringPtr(username)
		a.IPAddress = stringPtr(ip)
		a.UserAgent = stringPtr(ua)
		a.Details = stringPtr(detail)
		out = append(out, a)
	}
	return out, rows.Err()
}

// Count returns the number of audit rows matching action, or all rows when
// action is empty.
func (r *AuditRepo) Count(ctx context.Context, action string) (int, error) {
	q := `SELECT COUNT(*) FROM audit_logs`
	args := []any{}
	if action != "" {
		q += ` WHERE action = ?`
		args = append(args, action)
	}
	var n int
	if err := r.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// dbTime normalises t to what a DATETIME(6) column stores.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
