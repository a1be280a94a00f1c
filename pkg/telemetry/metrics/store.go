package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"irondiscipline/warden/pkg/config"
	"irondiscipline/warden/pkg/store"
)

// StoreMetrics tracks durable store operations.
//
// Metrics:
//   - warden_store_operations_total: Operations by op and result
//   - warden_store_operation_duration_seconds: Operation latency by op
type StoreMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
}

// NewStoreMetrics creates and registers store metrics.
func NewStoreMetrics(cfg config.MetricsConfig, registry *prometheus.Registry) *StoreMetrics {
	sm := &StoreMetrics{
		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "store",
				Name:      "operations_total",
				Help:      "Total number of store operations",
			},
			[]string{"op", "result"},
		),

		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "store",
				Name:      "operation_duration_seconds",
				Help:      "Duration of store operations in seconds, retries included",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
			},
			[]string{"op"},
		),
	}

	registry.MustRegister(sm.operationsTotal, sm.operationDuration)
	return sm
}

// Observe records one store operation. The result label is "ok", "closed",
// "invalid" or "error".
func (sm *StoreMetrics) Observe(op string, d time.Duration, err error) {
	sm.operationsTotal.WithLabelValues(op, storeResult(err)).Inc()
	sm.operationDuration.WithLabelValues(op).Observe(d.Seconds())
}

func storeResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, store.ErrClosed):
		return "closed"
	case errors.Is(err, store.ErrInvalidRecord):
		return "invalid"
	default:
		return "error"
	}
}
