package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// config holds process configuration loaded from the environment and an
// optional .env file. Missing .env is ignored (e.g. in CI); env vars
// override .env values.
type config struct {
	// Addr is the HTTP listen address.
	Addr string
	// BaseURL is the externally reachable origin embedded in magic links.
	BaseURL string
	// SessionSecret signs session credentials. Required; startup-fatal
	// when absent.
	SessionSecret string
	// DatabaseURL is the Postgres DSN; empty selects the in-memory store.
	DatabaseURL string
	// RedisAddr selects the shared rate-limit counter store; empty selects
	// the in-process store.
	RedisAddr string
	// WebhookSecret guards the payment webhook; empty disables the route.
	WebhookSecret string
	// Env is the application environment; "production" turns on secure
	// cookies.
	Env string

	SessionTTL    time.Duration
	MagicLinkTTL  time.Duration
	SweepInterval time.Duration
}

func loadConfig() (*config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("ADDR", ":8080")
	v.SetDefault("SESSION_TTL", "8760h") // 365d
	v.SetDefault("MAGIC_LINK_TTL", "1h")
	v.SetDefault("RATE_SWEEP_INTERVAL", "5m")
	v.SetDefault("APP_ENV", "development")

	cfg := &config{
		Addr:          v.GetString("ADDR"),
		BaseURL:       strings.TrimSpace(v.GetString("BASE_URL")),
		SessionSecret: v.GetString("SESSION_SECRET"),
		DatabaseURL:   v.GetString("DATABASE_URL"),
		RedisAddr:     v.GetString("REDIS_ADDR"),
		WebhookSecret: v.GetString("PAYMENT_WEBHOOK_SECRET"),
		Env:           v.GetString("APP_ENV"),
	}

	if strings.TrimSpace(cfg.SessionSecret) == "" {
		return nil, errors.New("SESSION_SECRET is required")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("BASE_URL is required")
	}

	var err error
	if cfg.SessionTTL, err = parseDuration(v, "SESSION_TTL"); err != nil {
		return nil, err
	}
	if cfg.MagicLinkTTL, err = parseDuration(v, "MAGIC_LINK_TTL"); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = parseDuration(v, "RATE_SWEEP_INTERVAL"); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", key, raw)
	}
	return d, nil
}

func (c *config) production() bool {
	return c.Env == "production"
}
