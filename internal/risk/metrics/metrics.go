package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds PHI scan and override metrics. Labels never carry content.
type Metrics struct {
	Scans        *prometheus.CounterVec
	Detections   *prometheus.CounterVec
	ScanDuration prometheus.Histogram
	Overrides    *prometheus.CounterVec
}

func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Scans: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_risk_scans_total",
			Help: "Completed PHI scans by context and risk level",
		}, []string{"context", "risk_level"}),
		Detections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_risk_detections_total",
			Help: "PHI detections by category",
		}, []string{"category"}),
		ScanDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "vigil_risk_scan_duration_seconds",
			Help:    "Time to classify and record a scan",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		Overrides: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_risk_overrides_total",
			Help: "Override requests by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) RecordScan(context, level string, summary map[string]int, start time.Time) {
	m.Scans.WithLabelValues(context, level).Inc()
	for category, n := range summary {
		m.Detections.WithLabelValues(category).Add(float64(n))
	}
	m.ScanDuration.Observe(time.Since(start).Seconds())
}

// IncOverride counts an override outcome: "granted" or the rejection reason.
func (m *Metrics) IncOverride(outcome string) {
	m.Overrides.WithLabelValues(outcome).Inc()
}
