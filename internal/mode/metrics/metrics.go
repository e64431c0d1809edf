package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds mode policy metrics.
type Metrics struct {
	CallsBlocked *prometheus.CounterVec
	Transitions  *prometheus.CounterVec
	CurrentMode  *prometheus.GaugeVec
	NoNetwork    prometheus.Gauge
}

func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CallsBlocked: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_mode_calls_blocked_total",
			Help: "Calls refused by the mode gate, by reason",
		}, []string{"reason"}),
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_mode_transitions_total",
			Help: "Accepted mode transitions",
		}, []string{"from", "to"}),
		CurrentMode: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vigil_mode_current",
			Help: "Effective operating mode (1 for the active mode, 0 otherwise)",
		}, []string{"mode"}),
		NoNetwork: f.NewGauge(prometheus.GaugeOpts{
			Name: "vigil_mode_no_network",
			Help: "Network kill switch state (1=engaged)",
		}),
	}
}

func (m *Metrics) IncBlocked(reason string) {
	m.CallsBlocked.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncTransition(from, to string) {
	m.Transitions.WithLabelValues(from, to).Inc()
}

// SetState records the active mode and kill switch.
func (m *Metrics) SetState(active string, all []string, noNetwork bool) {
	for _, mode := range all {
		v := 0.0
		if mode == active {
			v = 1
		}
		m.CurrentMode.WithLabelValues(mode).Set(v)
	}
	if noNetwork {
		m.NoNetwork.Set(1)
	} else {
		m.NoNetwork.Set(0)
	}
}
