package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"irondiscipline/warden/pkg/config"
)

// ContainmentMetrics tracks the confinement lifecycle.
//
// Metrics:
//   - warden_transitions_total: Operations by op and outcome
//   - warden_transition_duration_seconds: Operation duration by op
//   - warden_reconciliations_total: Join reconciliations by outcome
//   - warden_boundary_teleports_total: Subjects pulled back into the area
//   - warden_denied_actions_total: Refused actions by action
//   - warden_confined_subjects: Subjects currently confined
type ContainmentMetrics struct {
	transitionsTotal   *prometheus.CounterVec
	transitionDuration *prometheus.HistogramVec
	reconcilesTotal    *prometheus.CounterVec
	teleportsTotal     prometheus.Counter
	deniedTotal        *prometheus.CounterVec
	confined           prometheus.Gauge
}

// NewContainmentMetrics creates and registers containment metrics.
func NewContainmentMetrics(cfg config.MetricsConfig, registry *prometheus.Registry) *ContainmentMetrics {
	cm := &ContainmentMetrics{
		transitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "transitions_total",
				Help:      "Total number of containment operations",
			},
			[]string{"op", "outcome"},
		),

		transitionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "transition_duration_seconds",
				Help:      "Duration of containment operations in seconds",
				// Store round trips plus one entity task: 1ms to 5s.
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"op"},
		),

		reconcilesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "reconciliations_total",
				Help:      "Total number of join reconciliations by outcome",
			},
			[]string{"outcome"},
		),

		teleportsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "boundary_teleports_total",
				Help:      "Total number of subjects teleported back into confinement",
			},
		),

		deniedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "denied_actions_total",
				Help:      "Total number of actions refused to confined subjects",
			},
			[]string{"action"},
		),

		confined: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "confined_subjects",
				Help:      "Number of subjects currently confined",
			},
		),
	}

	registry.MustRegister(
		cm.transitionsTotal,
		cm.transitionDuration,
		cm.reconcilesTotal,
		cm.teleportsTotal,
		cm.deniedTotal,
		cm.confined,
	)

	return cm
}

// RecordTransition records one controller operation.
func (cm *ContainmentMetrics) RecordTransition(op, outcome string, d time.Duration) {
	cm.transitionsTotal.WithLabelValues(op, outcome).Inc()
	cm.transitionDuration.WithLabelValues(op).Observe(d.Seconds())
}

// RecordReconcile records one join reconciliation.
func (cm *ContainmentMetrics) RecordReconcile(outcome string) {
	cm.reconcilesTotal.WithLabelValues(outcome).Inc()
}

// RecordBoundaryTeleport records one boundary correction.
func (cm *ContainmentMetrics) RecordBoundaryTeleport() {
	cm.teleportsTotal.Inc()
}

// RecordDenied records one refused action.
func (cm *ContainmentMetrics) RecordDenied(action string) {
	cm.deniedTotal.WithLabelValues(action).Inc()
}

// SetConfined sets the confined subjects gauge.
func (cm *ContainmentMetrics) SetConfined(n int) {
	cm.confined.Set(float64(n))
}
