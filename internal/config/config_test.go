package config

import (
	"strings"
	"testing"
	"time"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SECRET_KEY", "test-secret")
	t.Setenv("DB_USER", "app")
	t.Setenv("DB_PASS", "pw")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_NAME", "members")
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AccessTTL() != 30*time.Minute {
		t.Errorf("AccessTTL = %v, want 30m", cfg.AccessTTL())
	}
	if cfg.MaxUploadBytes != 5*1024*1024 {
		t.Errorf("MaxUploadBytes = %d", cfg.MaxUploadBytes)
	}
	if got := strings.Join(cfg.AllowedExtensions, ","); got != ".jpg,.jpeg,.png,.gif,.webp" {
		t.Errorf("AllowedExtensions = %s", got)
	}
	if cfg.CookieSecure {
		t.Error("CookieSecure should default to false")
	}
	if cfg.RateLimit.Limit != 5 || cfg.RateLimit.Window != time.Minute {
		t.Errorf("RateLimit = %+v", cfg.RateLimit)
	}
	if got, want := cfg.DSN(), "app:pw@tcp(db:3306)/members?charset=utf8mb4&parseTime=true&loc=UTC"; got != want {
		t.Errorf("DSN = %q, want %q", got, want)
	}
	if cfg.PasswordHasher != "bcrypt" {
		t.Errorf("PasswordHasher = %q", cfg.PasswordHasher)
	}
}

func TestLoadReportsAllMissing(t *testing.T) {
	t.Setenv("SECRET_KEY", "")
	t.Setenv("DATABASE_DSN", "")
	t.Setenv("DB_USER", "")
	t.Setenv("DB_HOST", "")
	t.Setenv("DB_NAME", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected an error for missing variables")
	}
	for _, key := range []string{"SECRET_KEY", "DB_USER", "DB_HOST", "DB_NAME"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q does not mention %s", err, key)
		}
	}
}

func TestLoadDSNOverride(t *testing.T) {
	t.Setenv("SECRET_KEY", "s")
	t.Setenv("DATABASE_DSN", "root@tcp(127.0.0.1:3306)/x?parseTime=true")
	t.Setenv("DB_USER", "")
	t.Setenv("DB_HOST", "")
	t.Setenv("DB_NAME", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DSN() != "root@tcp(127.0.0.1:3306)/x?parseTime=true" {
		t.Errorf("DSN = %q", cfg.DSN())
	}
}

func TestLoadOverrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("ACCESS_TOKEN_EXPIRE_MINUTES", "5")
	t.Setenv("COOKIE_SECURE", "true")
	t.Setenv("ALLOWED_EXTENSIONS", "PNG, .Jpg")
	t.Setenv("BACKEND_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("PASSWORD_HASHER", "argon2id")
	t.Setenv("AUTH_RATE_LIMIT", "10")
	t.Setenv("AUTH_RATE_WINDOW", "30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AccessTTL() != 5*time.Minute || !cfg.CookieSecure {
		t.Errorf("ttl=%v secure=%v", cfg.AccessTTL(), cfg.CookieSecure)
	}
	if got := strings.Join(cfg.AllowedExtensions, ","); got != ".png,.jpg" {
		t.Errorf("AllowedExtensions = %s", got)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
	if cfg.PasswordHasher != "argon2id" {
		t.Errorf("PasswordHasher = %q", cfg.PasswordHasher)
	}
	if cfg.RateLimit.Limit != 10 || cfg.RateLimit.Window != 30*time.Second {
		t.Errorf("RateLimit = %+v", cfg.RateLimit)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("PASSWORD_HASHER", "md5")
	t.Setenv("ACCESS_TOKEN_EXPIRE_MINUTES", "0")

	_, err := Load()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "PASSWORD_HASHER") || !strings.Contains(err.Error(), "ACCESS_TOKEN_EXPIRE_MINUTES") {
		t.Errorf("error %q should mention both invalid settings", err)
	}
}

func TestRedisConfigHostPortWins(t *testing.T) {
	t.Setenv("REDIS_ADDR", "ignored:1")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_TLS", "1")

	rc := LoadRedisConfig()
	if rc.Addr != "cache:6380" || !rc.TLS {
		t.Errorf("got %+v", rc)
	}
}
