package coursegate

import (
	"errors"
	"strings"
	"time"
)

// Config carries the engine's tunables. Instances are configured during
// initialization and treated as immutable after [Builder.Build].
type Config struct {
	Session   SessionConfig
	MagicLink MagicLinkConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig configures the stateless session credential. The secret is
// process-wide configuration loaded once at startup; it must never appear in
// logs or responses.
type SessionConfig struct {
	Secret []byte
	TTL    time.Duration
	Issuer string
	Leeway time.Duration
}

/*
====================================
MAGIC LINK CONFIG
====================================
*/

// MagicLinkConfig configures token issuance. BaseURL is the externally
// reachable origin used to construct the link handed to the mailer.
type MagicLinkConfig struct {
	TTL        time.Duration
	BaseURL    string
	VerifyPath string
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig configures the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events instead of blocking the request path when the
	// buffer is full.
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig enables the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the reference configuration: one-hour magic links,
// one-year sessions, buffered non-blocking audit, metrics on. The session
// secret and base URL must still be supplied by the caller.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Session: SessionConfig{
			TTL:    365 * 24 * time.Hour,
			Issuer: "coursegate",
		},
		MagicLink: MagicLinkConfig{
			TTL:        time.Hour,
			VerifyPath: "/verify",
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.Session.Secret != nil {
		out.Session.Secret = append([]byte(nil), cfg.Session.Secret...)
	}
	return out
}

// Validate checks the configuration for startup-fatal problems. A missing
// session secret is a configuration failure, not a per-request condition.
func (c *Config) Validate() error {
	if len(c.Session.Secret) == 0 {
		return errors.New("session signing secret required")
	}
	if len(c.Session.Secret) < 16 {
		return errors.New("session signing secret too short")
	}
	if c.Session.TTL <= 0 {
		return errors.New("invalid session TTL")
	}
	if c.Session.Leeway < 0 || c.Session.Leeway > 2*time.Minute {
		return errors.New("invalid session leeway")
	}
	if c.MagicLink.TTL <= 0 {
		return errors.New("invalid magic link TTL")
	}
	if strings.TrimSpace(c.MagicLink.BaseURL) == "" {
		return errors.New("magic link base URL required")
	}
	if !strings.HasPrefix(c.MagicLink.VerifyPath, "/") {
		return errors.New("magic link verify path must start with /")
	}
	if c.Audit.Enabled && c.Audit.BufferSize < 0 {
		return errors.New("invalid audit buffer size")
	}
	return nil
}
