package coursegate

import (
	"errors"

	"github.com/hakanda/coursegate/session"
)

// Builder assembles an [Engine] from configuration and collaborators. All
// With* methods return the builder for chaining; Build may be called once.
type Builder struct {
	config    Config
	userStore UserStore
	mailer    Mailer
	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the builder's configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithUserStore sets the external identity store. Required.
func (b *Builder) WithUserStore(store UserStore) *Builder {
	b.userStore = store
	return b
}

// WithMailer sets the magic-link delivery collaborator. Required.
func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

// WithAuditSink sets the destination for audit events. Defaults to a
// [NoOpSink] when auditing is enabled without a sink.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration, constructs the session manager, and
// returns the ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.userStore == nil {
		return nil, errors.New("user store required")
	}
	if b.mailer == nil {
		return nil, errors.New("mailer required")
	}

	sessions, err := session.NewManager(session.Config{
		Secret: cfg.Session.Secret,
		TTL:    cfg.Session.TTL,
		Issuer: cfg.Session.Issuer,
		Leeway: cfg.Session.Leeway,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:    cfg,
		userStore: b.userStore,
		mailer:    b.mailer,
		sessions:  sessions,
		audit:     newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:   NewMetrics(cfg.Metrics),
	}

	b.built = true
	return engine, nil
}
