package coursegate

import "sync/atomic"

// MetricID identifies a specific counter in the in-process metrics system.
type MetricID uint16

const (
	// MetricMagicLinkRequested counts login requests that reached issuance.
	MetricMagicLinkRequested MetricID = iota
	// MetricMagicLinkDenied counts issuance refused by the payment gate or
	// an unknown email.
	MetricMagicLinkDenied
	// MetricVerifySuccess counts consumed tokens that minted a session.
	MetricVerifySuccess
	// MetricVerifyFailure counts rejected verification attempts.
	MetricVerifyFailure
	// MetricSessionMinted counts signed session credentials handed out.
	MetricSessionMinted
	// MetricEnrollment counts successful enrollment upserts.
	MetricEnrollment
	// MetricPaymentCompleted counts payment-completed events applied.
	MetricPaymentCompleted
	// MetricDeliveryFailure counts magic-link emails the mailer rejected.
	MetricDeliveryFailure
	// MetricRateLimited counts admission rejections at the request gate.
	MetricRateLimited

	metricIDCount
)

type paddedCounter struct {
	value uint64
	_     [56]byte // keep hot counters on separate cache lines
}

// Metrics holds atomic counters. When disabled, all operations are no-ops.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// NewMetrics creates a Metrics instance configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Inc increments the counter for id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// Snapshot returns a deep copy of the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Counters: make(map[MetricID]uint64, metricIDCount),
	}
	if m == nil {
		return s
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return s
}
