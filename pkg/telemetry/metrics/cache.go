package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"irondiscipline/warden/pkg/config"
)

// CacheMetrics tracks the confinement cache layer.
//
// Metrics:
//   - warden_cache_lookups_total: Lookups and populates by cache and outcome
//   - warden_cache_tombstones: Tombstones held after the last prune
//   - warden_cache_tombstones_pruned_total: Tombstones removed by pruning
//
// The outcome label is "hit", "miss" or "discard". A discard is a populate
// refused because the subject was invalidated while the read was in flight.
type CacheMetrics struct {
	lookupsTotal *prometheus.CounterVec
	tombstones   prometheus.Gauge
	prunedTotal  prometheus.Counter
}

// NewCacheMetrics creates and registers cache metrics.
func NewCacheMetrics(cfg config.MetricsConfig, registry *prometheus.Registry) *CacheMetrics {
	cm := &CacheMetrics{
		lookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "cache",
				Name:      "lookups_total",
				Help:      "Total number of cache lookups and populates by outcome",
			},
			[]string{"cache", "outcome"},
		),

		tombstones: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: "cache",
				Name:      "tombstones",
				Help:      "Number of invalidation tombstones held",
			},
		),

		prunedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "cache",
				Name:      "tombstones_pruned_total",
				Help:      "Total number of tombstones removed by pruning",
			},
		),
	}

	registry.MustRegister(cm.lookupsTotal, cm.tombstones, cm.prunedTotal)
	return cm
}

// Observe records one lookup outcome.
func (cm *CacheMetrics) Observe(cache, outcome string) {
	cm.lookupsTotal.WithLabelValues(cache, outcome).Inc()
}

// RecordPrune records a prune run.
func (cm *CacheMetrics) RecordPrune(pruned, remaining int) {
	cm.prunedTotal.Add(float64(pruned))
	cm.tombstones.Set(float64(remaining))
}
