package service

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/member-portal/internal/apperr"
	"github.com/iliyamo/member-portal/internal/model"
	"github.com/iliyamo/member-portal/internal/queue"
	"github.com/iliyamo/member-portal/internal/repository"
)

// Audit listing bounds.
const (
	MaxAuditPageSize     = 100
	DefaultAuditPageSize = 20
)

const publishTimeout = 5 * time.Second

// EventPublisher mirrors committed audit rows to a message broker.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.AuditEvent) error
}

// AuditRecorder builds and stores audit events. Events that belong to a
// state change are handed to the user store and committed with it; events
// with nothing to roll back go through Record.
type AuditRecorder struct {
	store AuditStore
	pub   EventPublisher
	log   *zap.Logger
	wg    sync.WaitGroup
}

// NewAuditRecorder returns a recorder. pub may be nil.
func NewAuditRecorder(store AuditStore, pub EventPublisher, log *zap.Logger) *AuditRecorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuditRecorder{store: store, pub: pub, log: log}
}

// Event builds an audit row. Empty strings are stored as NULL.
func (r *AuditRecorder) Event(userID *int64, action string, meta RequestMeta, details string) *model.AuditLog {
	return &model.AuditLog{
		UserID:    userID,
		Action:    action,
		IPAddress: optional(meta.IP),
		UserAgent: optional(meta.UserAgent),
		Details:   optional(details),
	}
}

// Record stores e on its own. A failed write is logged at error level and
// does not fail the caller.
func (r *AuditRecorder) Record(ctx context.Context, e *model.AuditLog) {
	if err := r.store.Insert(ctx, e); err != nil {
		r.log.Error("audit write failed", zap.String("action", e.Action), zap.Error(err))
		return
	}
	r.Committed(e)
}

// Committed publishes events after their transaction has committed.
// Publishing runs in the background and never blocks the request.
func (r *AuditRecorder) Committed(events ...*model.AuditLog) {
	if r.pub == nil {
		return
	}
	for _, e := range events {
		ev := queue.EventFromLog(e)
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
			defer cancel()
			_ = r.pub.Publish(ctx, ev)
		}()
	}
}

// Wait blocks until in-flight publishes finish.
func (r *AuditRecorder) Wait() { r.wg.Wait() }

// AuditQuery selects one page of the audit log.
type AuditQuery struct {
	Page     int
	PageSize int
	Action   string
}

// AuditPage is one page of audit rows, newest first. Total is exact when
// HasMore is false and a lower bound otherwise. A page past the end has no
// logs and carries the exact total.
type AuditPage struct {
	Total      int
	Page       int
	PageSize   int
	TotalPages int
	HasMore    bool
	Logs       []model.AuditLog
}

// List returns the requested page. It fetches one row beyond the page to
// learn whether more exist; rows are only counted when the page is past the
// end.
func (r *AuditRecorder) List(ctx context.Context, q AuditQuery) (*AuditPage, error) {
	if q.Page < 1 {
		return nil, apperr.Validation("page", "page must be at least 1")
	}
	if q.PageSize < 1 || q.PageSize > MaxAuditPageSize {
		return nil, apperr.Validationf("page_size", "page_size must be between 1 and %d", MaxAuditPageSize)
	}
	// offset + page_size + 1 must fit in an int.
	if q.Page > math.MaxInt/q.PageSize-1 {
		return nil, apperr.Validation("page", "page is too large")
	}
	offset := (q.Page - 1) * q.PageSize
	rows, err := r.store.List(ctx, repository.AuditFilter{Action: q.Action, Offset: offset, Limit: q.PageSize + 1})
	if err != nil {
		return nil, err
	}

	page := &AuditPage{Page: q.Page, PageSize: q.PageSize}
	if len(rows) > q.PageSize {
		page.HasMore = true
		rows = rows[:q.PageSize]
		page.Total = offset + q.PageSize + 1
	} else if len(rows) > 0 || offset == 0 {
		page.Total = offset + len(rows)
	} else {
		total, err := r.store.Count(ctx, q.Action)
		if err != nil {
			return nil, err
		}
		page.Total = total
	}
	page.TotalPages = (page.Total + q.PageSize - 1) / q.PageSize
	page.Logs = rows
	if page.Logs == nil {
		page.Logs = []model.AuditLog{}
	}
	return page, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
