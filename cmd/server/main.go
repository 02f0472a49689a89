package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/member-portal/internal/auth"
	"github.com/iliyamo/member-portal/internal/avatar"
	"github.com/iliyamo/member-portal/internal/clock"
	"github.com/iliyamo/member-portal/internal/config"
	"github.com/iliyamo/member-portal/internal/database"
	"github.com/iliyamo/member-portal/internal/handler"
	"github.com/iliyamo/member-portal/internal/queue"
	"github.com/iliyamo/member-portal/internal/ratelimit"
	"github.com/iliyamo/member-portal/internal/repository"
	"github.com/iliyamo/member-portal/internal/router"
	"github.com/iliyamo/member-portal/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(fmt.Errorf("load config: %w", err))
	}

	l, err := newLogger(cfg.IsProd())
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = l.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DSN(), database.PoolConfig{
		MaxOpen:     cfg.DBMaxOpenConns,
		MaxIdle:     cfg.DBMaxIdleConns,
		MaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		l.Fatal("open database", zap.Error(err))
	}
	defer db.Close()
	if err := database.EnsureSchema(ctx, db); err != nil {
		l.Fatal("ensure schema", zap.Error(err))
	}

	clk := clock.Real()
	users := repository.NewUserRepo(db, clk)
	audits := repository.NewAuditRepo(db, clk)
	todos := repository.NewTodoRepo(db, clk)

	hasher, err := auth.NewPasswordHasher(cfg.PasswordHasher, cfg.BcryptCost)
	if err != nil {
		l.Fatal("password hasher", zap.Error(err))
	}
	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.AccessTTL(), clk)
	if err != nil {
		l.Fatal("token service", zap.Error(err))
	}
	avatars, err := avatar.NewStore(cfg.UploadDir, cfg.MaxUploadBytes, cfg.AllowedExtensions, l.Named("avatar"))
	if err != nil {
		l.Fatal("avatar store", zap.Error(err))
	}

	var pub service.EventPublisher
	if cfg.AuditQueueEnabled {
		pub = queue.NewPublisher(cfg.RabbitURL, l.Named("audit-publisher"))
		consumer := queue.NewConsumer(cfg.RabbitURL, "logs", l.Named("audit-consumer"))
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				l.Error("audit consumer stopped", zap.Error(err))
			}
		}()
	}
	recorder := service.NewAuditRecorder(audits, pub, l.Named("audit"))

	accounts, err := service.NewAccountService(users, hasher, tokens, recorder, avatars, l.Named("account"))
	if err != nil {
		l.Fatal("account service", zap.Error(err))
	}
	admin := service.NewAdminService(users, hasher, recorder, avatars, l.Named("admin"))

	if cfg.AdminUsername != "" {
		created, err := admin.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			l.Fatal("bootstrap admin", zap.Error(err))
		}
		if !created {
			l.Debug("bootstrap admin already present")
		}
	}

	e := router.New(router.Options{
		CORSOrigins:    cfg.CORSOrigins,
		TrustProxy:     cfg.TrustProxy,
		UploadDir:      cfg.UploadDir,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}, router.Deps{
		Guard:           service.NewGuard(tokens, users),
		Limiter:         newLimiter(ctx, cfg, clk, l),
		RateLimitPrefix: cfg.RateLimit.Prefix,
		DB:              db,
		Auth:            handler.NewAuthHandler(accounts, handler.CookieConfig{Secure: cfg.CookieSecure, TTL: tokens.TTL()}),
		Users:           handler.NewUserHandler(accounts, cfg.MaxUploadBytes),
		Admin:           handler.NewAdminHandler(admin, recorder),
		Todos:           handler.NewTodoHandler(service.NewTodoService(todos)),
		Log:             l.Named("http"),
	})

	addr := ":" + cfg.Port
	go func() {
		l.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal("server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	l.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		l.Error("shutdown", zap.Error(err))
	}
	recorder.Wait()
}

func newLogger(prod bool) (*zap.Logger, error) {
	var (
		l   *zap.Logger
		err error
	)
	if prod {
		l, err = zap.NewProduction()
	} else {
		l, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return l, nil
}

// newLimiter prefers Redis so the window is shared between instances and
// falls back to process memory when Redis cannot be reached.
func newLimiter(ctx context.Context, cfg config.Config, clk clock.Clock, l *zap.Logger) ratelimit.Limiter {
	rl := cfg.RateLimit
	if !rl.Enabled {
		l.Warn("auth rate limiting disabled")
		return nil
	}
	rdb, err := config.NewRedisClient(cfg.Redis)
	if err == nil {
		l.Info("rate limiter backed by redis", zap.String("addr", cfg.Redis.Addr))
		go func() {
			<-ctx.Done()
			_ = rdb.Close()
		}()
		return ratelimit.NewRedisLimiter(rdb, rl.Limit, rl.Window, clk)
	}

	l.Warn("redis unavailable, using in-memory rate limiter", zap.Error(err))
	mem := ratelimit.NewMemoryLimiter(rl.Limit, rl.Window, clk)
	go func() {
		t := time.NewTicker(rl.Window)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				mem.Prune()
			}
		}
	}()
	return mem
}
