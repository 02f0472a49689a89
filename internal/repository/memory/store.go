// Package memory provides in-process implementations of the record store
// used by service and handler tests. They honour the same uniqueness,
// ownership and deletion rules as the MySQL repositories.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/member-portal/internal/clock"
	"github.com/iliyamo/member-portal/internal/model"
	"github.com/iliyamo/member-portal/internal/repository"
)

// Store holds users, audit logs and todos behind one mutex so multi-table
// writes are atomic, like a database transaction.
type Store struct {
	mu     sync.Mutex
	clock  clock.Clock
	users  map[int64]model.User
	audits []model.AuditLog
	todos  map[int64]model.Todo
	nextID struct{ user, audit, todo int64 }

	// FailAudit makes every audit insert fail, for exercising rollback and
	// best-effort paths.
	FailAudit error
}

func New(clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.Real()
	}
	return &Store{clock: clk, users: map[int64]model.User{}, todos: map[int64]model.Todo{}}
}

func (s *Store) now() time.Time { return s.clock.Now().UTC().Truncate(time.Microsecond) }

// Users returns a view of s implementing the user repository.
func (s *Store) Users() *Users { return &Users{s} }

// Audits returns a view of s implementing the audit repository.
func (s *Store) Audits() *Audits { return &Audits{s} }

// Todos returns a view of s implementing the todo repository.
func (s *Store) Todos() *Todos { return &Todos{s} }

// AuditRows returns a copy of every stored audit row in insertion order.
func (s *Store) AuditRows() []model.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.AuditLog(nil), s.audits...)
}

func (s *Store) clash(u *model.User) bool {
	for id, other := range s.users {
		if id == u.ID {
			continue
		}
		if other.Username == u.Username || other.Email == u.Email {
			return true
		}
	}
	return false
}

// appendAudits validates then stores events; callers hold mu.
func (s *Store) appendAudits(events []*model.AuditLog, now time.Time) error {
	if s.FailAudit != nil && len(events) > 0 {
		return s.FailAudit
	}
	for _, e := range events {
		s.nextID.audit++
		e.ID = s.nextID.audit
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		s.audits = append(s.audits, *e)
	}
	return nil
}

type Users struct{ s *Store }

func (r *Users) Create(_ context.Context, u *model.User, events ...*model.AuditLog) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clash(u) {
		return repository.ErrDuplicate
	}
	if s.FailAudit != nil && len(events) > 0 {
		return s.FailAudit
	}
	now := s.now()
	s.nextID.user++
	u.ID, u.CreatedAt, u.UpdatedAt = s.nextID.user, now, now
	s.users[u.ID] = *u
	for _, e := range events {
		if e.UserID == nil {
			id := u.ID
			e.UserID = &id
		}
	}
	return s.appendAudits(events, now)
}

func (r *Users) GetByID(_ context.Context, id int64) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r *Users) GetByEmail(_ context.Context, email string) (*model.User, error) {
	return r.find(func(u model.User) bool { return u.Email == email })
}

func (r *Users) GetByUsername(_ context.Context, username string) (*model.User, error) {
	return r.find(func(u model.User) bool { return u.Username == username })
}

func (r *Users) find(match func(model.User) bool) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *Users) List(_ context.Context, skip, limit int) ([]model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	all := make([]model.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return window(all, skip, limit), nil
}

func (r *Users) Update(_ context.Context, u *model.User, events ...*model.AuditLog) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return repository.ErrNotFound
	}
	if s.clash(u) {
		return repository.ErrDuplicate
	}
	if s.FailAudit != nil && len(events) > 0 {
		return s.FailAudit
	}
	now := s.now()
	u.UpdatedAt = now
	s.users[u.ID] = *u
	return s.appendAudits(events, now)
}

// Delete removes the user, cascades its todos and nulls audit references.
func (r *Users) Delete(_ context.Context, id int64, events ...*model.AuditLog) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return repository.ErrNotFound
	}
	if s.FailAudit != nil && len(events) > 0 {
		return s.FailAudit
	}
	delete(s.users, id)
	for tid, t := range s.todos {
		if t.UserID == id {
			delete(s.todos, tid)
		}
	}
	for i := range s.audits {
		if p := s.audits[i].UserID; p != nil && *p == id {
			s.audits[i].UserID = nil
		}
	}
	return s.appendAudits(events, s.now())
}

type Audits struct{ s *Store }

func (r *Audits) Insert(_ context.Context, e *model.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.appendAudits([]*model.AuditLog{e}, r.s.now())
}

func (r *Audits) List(_ context.Context, f repository.AuditFilter) ([]model.AuditLog, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var rows []model.AuditLog
	for i := len(s.audits) - 1; i >= 0; i-- {
		a := s.audits[i]
		if f.Action != "" && a.Action != f.Action {
			continue
		}
		if a.UserID != nil {
			if u, ok := s.users[*a.UserID]; ok {
				name := u.Username
				a.Username = &name
			}
		}
		rows = append(rows, a)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.After(rows[j].CreatedAt)
		}
		return rows[i].ID > rows[j].ID
	})
	return window(rows, f.Offset, f.Limit), nil
}

func (r *Audits) Count(_ context.Context, action string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, a := range r.s.audits {
		if action == "" || a.Action == action {
			n++
		}
	}
	return n, nil
}

type Todos struct{ s *Store }

func (r *Todos) Create(_ context.Context, t *model.Todo) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[t.UserID]; !ok {
		return repository.ErrNotFound
	}
	now := s.now()
	s.nextID.todo++
	t.ID, t.CreatedAt, t.UpdatedAt = s.nextID.todo, now, now
	s.todos[t.ID] = *t
	return nil
}

func (r *Todos) ListByUser(_ context.Context, userID int64) ([]model.Todo, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Todo
	for _, t := range r.s.todos {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *Todos) Get(_ context.Context, id, userID int64) (*model.Todo, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.todos[id]
	if !ok || t.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (r *Todos) Update(_ context.Context, t *model.Todo) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.todos[t.ID]
	if !ok || cur.UserID != t.UserID {
		return repository.ErrNotFound
	}
	t.CreatedAt = cur.CreatedAt
	t.UpdatedAt = s.now()
	s.todos[t.ID] = *t
	return nil
}

func (r *Todos) Delete(_ context.Context, id, userID int64) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.todos[id]
	if !ok || t.UserID != userID {
		return repository.ErrNotFound
	}
	delete(s.todos, id)
	return nil
}

func window[T any](rows []T, offset, limit int) []T {
	if offset < 0 || offset >= len(rows) {
		return nil
	}
	rows = rows[offset:]
	if limit >= 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}
