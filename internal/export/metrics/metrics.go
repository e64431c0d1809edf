package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds export approval workflow metrics.
type Metrics struct {
	Requests        *prometheus.CounterVec
	Resolutions     *prometheus.CounterVec
	Expirations     prometheus.Counter
	Reverts         prometheus.Counter
	ResolveDuration prometheus.Histogram
}

func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_export_requests_total",
			Help: "Export requests created, by initial status",
		}, []string{"status"}),
		Resolutions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_export_resolutions_total",
			Help: "Export requests resolved, by decision",
		}, []string{"decision"}),
		Expirations: f.NewCounter(prometheus.CounterOpts{
			Name: "vigil_export_expirations_total",
			Help: "Export requests moved to EXPIRED on touch",
		}),
		Reverts: f.NewCounter(prometheus.CounterOpts{
			Name: "vigil_export_transition_reverts_total",
			Help: "Resolutions rolled back because the audit entry could not be written",
		}),
		ResolveDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "vigil_export_resolve_duration_seconds",
			Help:    "Time to resolve an export request",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncRequest(status string) {
	m.Requests.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveResolution(decision string, start time.Time) {
	m.Resolutions.WithLabelValues(decision).Inc()
	m.ResolveDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncExpired() {
	m.Expirations.Inc()
}

func (m *Metrics) IncRevert() {
	m.Reverts.Inc()
}
