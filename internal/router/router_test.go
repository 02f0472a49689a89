package router

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/member-portal/internal/auth"
	"github.com/iliyamo/member-portal/internal/avatar"
	"github.com/iliyamo/member-portal/internal/clock"
	"github.com/iliyamo/member-portal/internal/handler"
	"github.com/iliyamo/member-portal/internal/middleware"
	"github.com/iliyamo/member-portal/internal/ratelimit"
	"github.com/iliyamo/member-portal/internal/repository/memory"
	"github.com/iliyamo/member-portal/internal/service"
)

type app struct {
	e     *echo.Echo
	clk   *clock.Fake
	store *memory.Store
	admin *service.AdminService
}

func newApp(t *testing.T) *app {
	t.Helper()
	clk := clock.NewFake(time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC))
	store := memory.New(clk)
	hasher, _ := auth.NewPasswordHasher(auth.SchemeBcrypt, 4)
	tokens, _ := auth.NewTokenService("router-secret", 30*time.Minute, clk)
	uploads := filepath.Join(t.TempDir(), "uploads")
	avatars, err := avatar.NewStore(uploads, 1<<20, []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	rec := service.NewAuditRecorder(store.Audits(), nil, nil)
	accounts, err := service.NewAccountService(store.Users(), hasher, tokens, rec, avatars, nil)
	if err != nil {
		t.Fatal(err)
	}
	admin := service.NewAdminService(store.Users(), hasher, rec, avatars, nil)

	e := New(Options{UploadDir: uploads, MaxUploadBytes: 1 << 20}, Deps{
		Guard:           service.NewGuard(tokens, store.Users()),
		Limiter:         ratelimit.NewMemoryLimiter(5, time.Minute, clk),
		RateLimitPrefix: "rl",
		Auth:            handler.NewAuthHandler(accounts, handler.CookieConfig{TTL: tokens.TTL()}),
		Users:           handler.NewUserHandler(accounts, 1<<20),
		Admin:           handler.NewAdminHandler(admin, rec),
		Todos:           handler.NewTodoHandler(service.NewTodoService(store.Todos())),
	})
	return &app{e: e, clk: clk, store: store, admin: admin}
}

func (a *app) do(method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	var rd *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.RemoteAddr = "192.0.2.10:40000"
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func (a *app) signup(t *testing.T, name string) *http.Cookie {
	t.Helper()
	body := map[string]string{"username": name, "email": name + "@example.com", "password": "secret123"}
	if rec := a.do(http.MethodPost, "/api/register", body, nil); rec.Code != http.StatusCreated {
		t.Fatalf("register %s: %d %s", name, rec.Code, rec.Body)
	}
	return a.login(t, name)
}

func (a *app) login(t *testing.T, name string) *http.Cookie {
	t.Helper()
	rec := a.do(http.MethodPost, "/api/login", map[string]string{"email": name + "@example.com", "password": "secret123"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: %d %s", name, rec.Code, rec.Body)
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.CookieName {
			return c
		}
	}
	t.Fatal("no access_token cookie")
	return nil
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return body.Error
}

func TestLoginCookieAttributes(t *testing.T) {
	t.Parallel()

	a := newApp(t)
	ck := a.signup(t, "alice")
	if !ck.HttpOnly || ck.SameSite != http.SameSiteLaxMode || ck.Path != "/" || ck.MaxAge != 1800 {
		t.Errorf("cookie = %+v", ck)
	}

	rec := a.do(http.MethodGet, "/api/me", nil, ck)
	if rec.Code != http.StatusOK {
		t.Fatalf("/api/me: %d %s", rec.Code, rec.Body)
	}
	if strings.Contains(rec.Body.String(), "password") || strings.Contains(rec.Body.String(), "$2a$") {
		t.Errorf("profile leaks the hash: %s", rec.Body)
	}

	out := a.do(http.MethodPost, "/api/logout", nil, ck)
	if out.Code != http.StatusOK {
		t.Fatalf("logout: %d", out.Code)
	}
	cleared := out.Result().Cookies()
	if len(cleared) != 1 || cleared[0].MaxAge >= 0 || cleared[0].Value != "" {
		t.Errorf("logout cookie = %+v", cleared)
	}
}

func TestUnauthenticatedAndExpired(t *testing.T) {
	t.Parallel()

	a := newApp(t)
	if rec := a.do(http.MethodGet, "/api/me", nil, nil); rec.Code != http.StatusUnauthorized || errorCode(t, rec) != "unauthenticated" {
		t.Errorf("no cookie: %d %s", rec.Code, rec.Body)
	}
	ck := a.signup(t, "bob")
	a.clk.Advance(31 * time.Minute)
	if rec := a.do(http.MethodGet, "/api/me", nil, ck); rec.Code != http.StatusUnauthorized {
		t.Errorf("expired cookie: %d", rec.Code)
	}
	if rec := a.do(http.MethodPost, "/api/logout", nil, ck); rec.Code != http.StatusOK {
		t.Errorf("logout with expired cookie: %d", rec.Code)
	}
}

func TestDisabledAccountForbidden(t *testing.T) {
	t.Parallel()

	a := newApp(t)
	ck := a.signup(t, "carol")
	u, _ := a.store.Users().GetByUsername(context.Background(), "carol")
	u.IsActive = false
	_ = a.store.Users().Update(context.Background(), u)

	rec := a.do(http.MethodGet, "/api/me", nil, ck)
	if rec.Code != http.StatusForbidden || errorCode(t, rec) != "account_disabled" {
		t.Errorf("disabled: %d %s", rec.Code, rec.Body)
	}
}

func TestAdminRoutesRequireRole(t *testing.T) {
	t.Parallel()

	a := newApp(t)
	ck := a.signup(t, "dave")
	rec := a.do(http.MethodGet, "/api/admin/users", nil, ck)
	if rec.Code != http.StatusForbidden || errorCode(t, rec) != "forbidden" {
		t.Errorf("non-admin: %d %s", rec.Code, rec.Body)
	}
}

func TestAdminFlow(t *testing.T) {
	t.Parallel()

	a := newApp(t)
	ctx := context.Background()
	if _, err := a.admin.EnsureAdmin(ctx, "root", "root@example.com", "secret123"); err != nil {
		t.Fatal(err)
	}
	adminCk := a.login(t, "root")
	a.signup(t, "erin")
	erin, _ := a.store.Users().GetByUsername(ctx, "erin")
	root, _ := a.store.Users().GetByUsername(ctx, "root")

	rec := a.do(http.MethodGet, "/api/admin/users?skip=0&limit=10", nil, adminCk)
	var users []map[string]any
	if rec.Code != http.StatusOK || json.Unmarshal(rec.Body.Bytes(), &users) != nil || len(users) != 2 {
		t.Fatalf("list users: %d %s", rec.Code, rec.Body)
	}
	if rec := a.do(http.MethodGet, "/api/admin/users?limit=1001", nil, adminCk); rec.Code != http.StatusBadRequest {
		t.Errorf("limit 1001: %d", rec.Code)
	}

	self := "/api/admin/users/" + itoa(root.ID)
	if rec := a.do(http.MethodDelete, self, nil, adminCk); rec.Code != http.StatusForbidden || errorCode(t, rec) != "self_action" {
		t.Errorf("self delete: %d %s", rec.Code, rec.Body)
	}

	target := "/api/admin/users/" + itoa(erin.ID)
	if rec := a.do(http.MethodPatch, target+"/toggle-active", nil, adminCk); rec.Code != http.StatusOK {
		t.Errorf("toggle: %d %s", rec.Code, rec.Body)
	}
	if rec := a.do(http.MethodPost, "/api/login", map[string]string{"email": "erin@example.com", "password": "secret123"}, nil); rec.Code != http.StatusForbidden {
		t.Errorf("login while disabled: %d", rec.Code)
	}
	if rec := a.do(http.MethodPatch, target+"/role", map[string]string{"role": "wizard"}, adminCk); rec.Code != http.StatusBadRequest {
		t.Errorf("bad role: %d", rec.Code)
	}
	if rec := a.do(http.MethodDelete, target, nil, adminCk); rec.Code != http.StatusNoContent {
		t.Errorf("delete: %d %s", rec.Code, rec.Body)
	}
	if rec := a.do(http.MethodDelete, target, nil, adminCk); rec.Code != http.StatusNotFound {
		t.Errorf("delete again: %d", rec.Code)
	}

	rec = a.do(http.MethodGet, "/api/admin/audit-logs?page=1&page_size=2&action=user_deleted", nil, adminCk)
	var page struct {
		Total int `json:"total"`
		Logs  []struct {
			Action   string  `json:"action"`
			Username *string `json:"username"`
		} `json:"logs"`
	}
	if rec.Code != http.StatusOK || json.Unmarshal(rec.Body.Bytes(), &page) != nil {
		t.Fatalf("audit logs: %d %s", rec.Code, rec.Body)
	}
	if page.Total != 1 || len(page.Logs) != 1 || page.Logs[0].Username == nil || *page.Logs[0].Username != "root" {
		t.Errorf("audit page = %+v", page)
	}
	if rec := a.do(http.MethodGet, "/api/admin/audit-logs?page_size=101", nil, adminCk); rec.Code != http.StatusBadRequest {
		t.Errorf("page_size 101: %d", rec.Code)
	}
}

func TestRegisterConflictAndValidation(t *testing.T) {
	t.Parallel()

	a := newApp(t)
	a.signup(t, "frank")
	rec := a.do(http.MethodPost, "/api/register", map[string]string{"username": "frank", "email": "x@example.com", "password": "secret123"}, nil)
	if rec.Code != http.StatusConflict || !strings.Contains(rec.Body.String(), "username or email already in use") {
		t.Errorf("duplicate: %d %s", rec.Code, rec.Body)
	}
	rec = a.do(http.MethodPost, "/api/register", map[string]string{"username": "gina", "email": "g@example.com", "password": "short"}, nil)
	var body struct {
		Error string `json:"error"`
		Field string `json:"field"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if rec.Code != http.StatusBadRequest || body.Field != "password" {
		t.Errorf("weak password: %d %s", rec.Code, rec.Body)
	}
}

func TestLoginRateLimitedBeforeStore(t *testing.T) {
	t.Parallel()

	a := newApp(t)
	creds := map[string]string{"email": "ghost@example.com", "password": "secret123"}
	for i := 1; i <= 5; i++ {
		if rec := a.do(http.MethodPost, "/api/login", creds, nil); rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: %d", i, rec.Code)
		}
	}
	before := len(a.store.AuditRows())
	rec := a.do(http.MethodPost, "/api/login", creds, nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("6th attempt: %d", rec.Code)
	}
	if errorCode(t, rec) != "too_many_requests" || rec.Header().Get("Retry-After") == "" {
		t.Errorf("6th attempt body %s, Retry-After %q", rec.Body, rec.Header().Get("Retry-After"))
	}
	if after := len(a.store.AuditRows()); after != before {
		t.Errorf("rate-limited attempt wrote %d audit rows", after-before)
	}
}

func TestAvatarUpload(t *testing.T) {
	t.Parallel()

	a := newApp(t)
	ck := a.signup(t, "hank")

	upload := func(name string, data []byte) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, _ := mw.CreateFormFile("file", name)
		_, _ = fw.Write(data)
		_ = mw.Close()
		req := httptest.NewRequest(http.MethodPost, "/api/avatar", &buf)
		req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
		req.AddCookie(ck)
		rec := httptest.NewRecorder()
		a.e.ServeHTTP(rec, req)
		return rec
	}

	gif := []byte("GIF89a\x01\x00\x01\x00")
	rec := upload("me.gif", gif)
	var u struct {
		Avatar *string `json:"avatar"`
	}
	if rec.Code != http.StatusOK || json.Unmarshal(rec.Body.Bytes(), &u) != nil || u.Avatar == nil {
		t.Fatalf("upload: %d %s", rec.Code, rec.Body)
	}
	if !strings.HasPrefix(*u.Avatar, "uploads/avatars/") || !strings.HasSuffix(*u.Avatar, ".gif") {
		t.Errorf("avatar = %s", *u.Avatar)
	}

	served := a.do(http.MethodGet, "/"+*u.Avatar, nil, nil)
	if served.Code != http.StatusOK || !bytes.Equal(served.Body.Bytes(), gif) {
		t.Errorf("static avatar: %d", served.Code)
	}

	if rec := upload("evil.webp", gif); rec.Code != http.StatusBadRequest {
		t.Errorf("spoofed upload: %d", rec.Code)
	}
	if rec := upload("doc.pdf", []byte("%PDF-1.4")); rec.Code != http.StatusBadRequest {
		t.Errorf("pdf upload: %d", rec.Code)
	}
}

func TestTodoRoutes(t *testing.T) {
	t.Parallel()

	a := newApp(t)
	ck := a.signup(t, "ivy")
	other := a.signup(t, "jack")

	rec := a.do(http.MethodPost, "/api/todos", map[string]string{"title": "write tests"}, ck)
	var todo struct {
		ID int64 `json:"id"`
	}
	if rec.Code != http.StatusCreated || json.Unmarshal(rec.Body.Bytes(), &todo) != nil {
		t.Fatalf("create: %d %s", rec.Code, rec.Body)
	}
	path := "/api/todos/" + itoa(todo.ID)
	if rec := a.do(http.MethodPatch, path, map[string]bool{"is_completed": true}, other); rec.Code != http.StatusNotFound {
		t.Errorf("foreign patch: %d", rec.Code)
	}
	if rec := a.do(http.MethodPatch, path, map[string]bool{"is_completed": true}, ck); rec.Code != http.StatusOK {
		t.Errorf("patch: %d %s", rec.Code, rec.Body)
	}
	if rec := a.do(http.MethodDelete, path, nil, ck); rec.Code != http.StatusNoContent {
		t.Errorf("delete: %d", rec.Code)
	}
	if rec := a.do(http.MethodPatch, "/api/todos/abc", map[string]bool{"is_completed": true}, ck); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id: %d", rec.Code)
	}
}

func TestUpdateMeEmptyPasswordIsNoChange(t *testing.T) {
	t.Parallel()

	a := newApp(t)
	ck := a.signup(t, "iris")
	rec := a.do(http.MethodPatch, "/api/me", map[string]string{"bio": "hello", "password": ""}, ck)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "hello") {
		t.Fatalf("patch: %d %s", rec.Code, rec.Body)
	}
	a.login(t, "iris")

	rec = a.do(http.MethodPatch, "/api/me", map[string]string{"password": "newpass99"}, ck)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("password change without current_password: %d %s", rec.Code, rec.Body)
	}
}

func TestUnknownAPIPathNotFound(t *testing.T) {
	t.Parallel()

	a := newApp(t)
	for _, path := range []string{"/api/nope", "/api/admin/nope", "/api/me/extra"} {
		if rec := a.do(http.MethodGet, path, nil, nil); rec.Code != http.StatusNotFound {
			t.Errorf("GET %s: %d, want 404", path, rec.Code)
		}
	}
	if rec := a.do(http.MethodGet, "/api/admin/users", nil, nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("admin without cookie: %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	a := newApp(t)
	if rec := a.do(http.MethodGet, "/healthz", nil, nil); rec.Code != http.StatusOK {
		t.Errorf("healthz: %d", rec.Code)
	}
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }
