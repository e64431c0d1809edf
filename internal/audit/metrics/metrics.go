package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the audit chain.
type Metrics struct {
	EntriesAppended  *prometheus.CounterVec
	AppendConflicts  prometheus.Counter
	AppendDuration   prometheus.Histogram
	ChainValid       prometheus.Gauge
	EntriesValidated prometheus.Gauge
	VerifyFailures   prometheus.Counter
	OutboxDropped    prometheus.Counter
	PublishFailures  prometheus.Counter
	PublishSkipped   prometheus.Counter
}

// New registers audit metrics on the default registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers audit metrics on reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EntriesAppended: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_audit_entries_appended_total",
			Help: "Total number of audit entries appended, by event type",
		}, []string{"event_type"}),
		AppendConflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "vigil_audit_append_conflicts_total",
			Help: "Total number of appends rejected because the chain tail moved",
		}),
		AppendDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "vigil_audit_append_duration_seconds",
			Help:    "Duration of audit append (read tail, hash, write)",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		}),
		ChainValid: f.NewGauge(prometheus.GaugeOpts{
			Name: "vigil_audit_chain_valid",
			Help: "Result of the last chain verification (1=valid, 0=broken)",
		}),
		EntriesValidated: f.NewGauge(prometheus.GaugeOpts{
			Name: "vigil_audit_entries_validated",
			Help: "Entries validated by the last chain verification",
		}),
		VerifyFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "vigil_audit_verify_failures_total",
			Help: "Total number of chain verifications that found a break",
		}),
		OutboxDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "vigil_audit_outbox_dropped_total",
			Help: "Appended entries not forwarded to the publisher because the outbox was full",
		}),
		PublishFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "vigil_audit_publish_failures_total",
			Help: "Total number of failed audit entry publications",
		}),
		PublishSkipped: f.NewCounter(prometheus.CounterOpts{
			Name: "vigil_audit_publish_skipped_total",
			Help: "Entries not published because the publisher circuit was open",
		}),
	}
}

// IncAppended records a successful append.
func (m *Metrics) IncAppended(eventType string) {
	m.EntriesAppended.WithLabelValues(eventType).Inc()
}

// IncConflict records an append that lost the tail race.
func (m *Metrics) IncConflict() {
	m.AppendConflicts.Inc()
}

// ObserveAppend records append latency. Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveAppend(start time.Time) {
	m.AppendDuration.Observe(time.Since(start).Seconds())
}

// RecordVerification records the outcome of a chain verification.
func (m *Metrics) RecordVerification(valid bool, validated int) {
	m.EntriesValidated.Set(float64(validated))
	if valid {
		m.ChainValid.Set(1)
		return
	}
	m.ChainValid.Set(0)
	m.VerifyFailures.Inc()
}

// IncOutboxDropped records an entry skipped by the outbox.
func (m *Metrics) IncOutboxDropped() {
	m.OutboxDropped.Inc()
}

// IncPublishFailures records a failed publication.
func (m *Metrics) IncPublishFailures() {
	m.PublishFailures.Inc()
}

// IncPublishSkipped records an entry skipped while the publisher circuit was open.
func (m *Metrics) IncPublishSkipped() {
	m.PublishSkipped.Inc()
}
