package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/iliyamo/member-portal/internal/auth"
	"github.com/iliyamo/member-portal/internal/avatar"
	"github.com/iliyamo/member-portal/internal/clock"
	"github.com/iliyamo/member-portal/internal/model"
	"github.com/iliyamo/member-portal/internal/repository/memory"
)

type fixture struct {
	clk     *clock.Fake
	store   *memory.Store
	hasher  *auth.PasswordHasher
	tokens  *auth.TokenService
	audit   *AuditRecorder
	avatars *avatar.Store
	account *AccountService
	admin   *AdminService
	guard   *Guard
	todos   *TodoService
}

var meta = RequestMeta{IP: "203.0.113.7", UserAgent: "test-agent"}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{clk: clock.NewFake(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))}
	f.store = memory.New(f.clk)

	var err error
	if f.hasher, err = auth.NewPasswordHasher(auth.SchemeBcrypt, 4); err != nil {
		t.Fatal(err)
	}
	if f.tokens, err = auth.NewTokenService("test-secret", 30*time.Minute, f.clk); err != nil {
		t.Fatal(err)
	}
	exts := []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}
	if f.avatars, err = avatar.NewStore(filepath.Join(t.TempDir(), "uploads"), 1<<20, exts, nil); err != nil {
		t.Fatal(err)
	}
	f.audit = NewAuditRecorder(f.store.Audits(), nil, nil)
	if f.account, err = NewAccountService(f.store.Users(), f.hasher, f.tokens, f.audit, f.avatars, nil); err != nil {
		t.Fatal(err)
	}
	f.admin = NewAdminService(f.store.Users(), f.hasher, f.audit, f.avatars, nil)
	f.guard = NewGuard(f.tokens, f.store.Users())
	f.todos = NewTodoService(f.store.Todos())
	return f
}

// register creates a user through the public path and optionally promotes
// it to admin directly in the store.
func (f *fixture) register(t *testing.T, username string, role string) *model.User {
	t.Helper()
	ctx := context.Background()
	u, err := f.account.Register(ctx, RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "secret123",
	}, meta)
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	if role != model.RoleUser {
		u.Role = role
		if err := f.store.Users().Update(ctx, u); err != nil {
			t.Fatal(err)
		}
	}
	return u
}

func (f *fixture) auditActions() []string {
	var out []string
	for _, a := range f.store.AuditRows() {
		out = append(out, a.Action)
	}
	return out
}
