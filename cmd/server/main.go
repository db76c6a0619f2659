// Command server runs the coursegate HTTP service: magic-link login,
// verification, enrollment, logout, the payment webhook, and the gated
// course content, all behind the rate-limiting request gate.
//
// Backends are selected by configuration: Postgres + Redis when
// DATABASE_URL / REDIS_ADDR are set, in-process stores otherwise.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	coursegate "github.com/hakanda/coursegate"
	"github.com/hakanda/coursegate/httpapi"
	"github.com/hakanda/coursegate/middleware"
	"github.com/hakanda/coursegate/ratelimit"
	"github.com/hakanda/coursegate/store/memory"
	"github.com/hakanda/coursegate/store/postgres"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	userStore, cleanupStore, err := buildUserStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanupStore()

	counters, cleanupCounters := buildCounterStore(cfg, logger)
	defer cleanupCounters()
	limiter := ratelimit.NewLimiter(counters, ratelimit.DefaultPolicies())

	engineCfg := coursegate.DefaultConfig()
	engineCfg.Session.Secret = []byte(cfg.SessionSecret)
	engineCfg.Session.TTL = cfg.SessionTTL
	engineCfg.MagicLink.TTL = cfg.MagicLinkTTL
	engineCfg.MagicLink.BaseURL = cfg.BaseURL

	engine, err := coursegate.New().
		WithConfig(engineCfg).
		WithUserStore(userStore).
		WithMailer(coursegate.LogMailer{Logger: logger}).
		WithAuditSink(coursegate.NewJSONWriterSink(os.Stdout)).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	mux := http.NewServeMux()
	api := httpapi.New(engine, httpapi.Config{
		CookieSecure:  cfg.production(),
		WebhookSecret: cfg.WebhookSecret,
	}, logger)
	api.Register(mux)

	gate := middleware.Gate(middleware.GateConfig{
		Limiter:      limiter,
		Sessions:     engine.Sessions(),
		CookieSecure: cfg.production(),
		Metrics:      engine.Metrics(),
		Logger:       logger,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           gate(mux),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr, "env", cfg.Env)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func buildUserStore(ctx context.Context, cfg *config, logger *slog.Logger) (coursegate.UserStore, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory user store")
		return memory.New(), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return postgres.New(pool), pool.Close, nil
}

func buildCounterStore(cfg *config, logger *slog.Logger) (ratelimit.CounterStore, func()) {
	if cfg.RedisAddr == "" {
		store := ratelimit.NewMemoryStore(cfg.SweepInterval)
		return store, store.Stop
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	logger.Info("rate limit counters on redis", "addr", cfg.RedisAddr)
	return ratelimit.NewRedisStore(client), func() { _ = client.Close() }
}
