package coursegate

import (
	"context"
	"regexp"
	"time"

	"github.com/hakanda/coursegate/session"
)

// Engine orchestrates the magic-link lifecycle: enrollment, issuance,
// verification, and session minting. Construct it through [Builder.Build];
// afterwards it is safe for concurrent use. The engine holds no durable
// state of its own.
type Engine struct {
	config    Config
	userStore UserStore
	mailer    Mailer
	sessions  *session.Manager
	audit     *auditDispatcher
	metrics   *Metrics
}

var emailRx = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,63}$`)

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// Sessions returns the session credential manager built from the engine
// configuration, for wiring into the request gate.
func (e *Engine) Sessions() *session.Manager {
	if e == nil {
		return nil
	}
	return e.sessions
}

// Metrics returns the engine's counter set. The request gate shares it for
// admission-rejection counts.
func (e *Engine) Metrics() *Metrics {
	if e == nil {
		return nil
	}
	return e.metrics
}

// MetricsSnapshot returns a point-in-time copy of all counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

// AuditDropped reports how many audit events were discarded because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	identityID, email string,
	failure error,
	metadata func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp:  time.Now(),
		EventType:  eventType,
		IdentityID: identityID,
		Email:      email,
		IP:         clientIPFromContext(ctx),
		Success:    success,
	}
	if failure != nil {
		event.Error = failure.Error()
	}
	if metadata != nil {
		event.Metadata = metadata()
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) magicLinkURL(token string) string {
	base := e.config.MagicLink.BaseURL
	for len(base) > 0 && base[len(base)-1] == '/' {
		base = base[:len(base)-1]
	}
	return base + e.config.MagicLink.VerifyPath + "?token=" + token
}
