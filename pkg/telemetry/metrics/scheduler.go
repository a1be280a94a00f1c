package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"irondiscipline/warden/pkg/config"
)

// SchedulerMetrics tracks the affinity scheduler.
//
// Metrics:
//   - warden_scheduler_tasks_dropped_total: Tasks dropped by domain
type SchedulerMetrics struct {
	droppedTotal *prometheus.CounterVec
}

// NewSchedulerMetrics creates and registers scheduler metrics.
func NewSchedulerMetrics(cfg config.MetricsConfig, registry *prometheus.Registry) *SchedulerMetrics {
	sm := &SchedulerMetrics{
		droppedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "scheduler",
				Name:      "tasks_dropped_total",
				Help:      "Total number of tasks dropped because their subject left",
			},
			[]string{"domain"},
		),
	}

	registry.MustRegister(sm.droppedTotal)
	return sm
}

// RecordDropped records one dropped task.
func (sm *SchedulerMetrics) RecordDropped(domain string) {
	sm.droppedTotal.WithLabelValues(domain).Inc()
}
