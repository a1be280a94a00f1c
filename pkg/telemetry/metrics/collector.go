package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"irondiscipline/warden/pkg/config"
)

// Collector owns every warden metric. It implements the observer interfaces
// of the controller, the store, the cache layer and the scheduler, so one
// instance can be handed to each of them.
type Collector struct {
	config   config.MetricsConfig
	registry *prometheus.Registry

	containment *ContainmentMetrics
	store       *StoreMetrics
	cache       *CacheMetrics
	scheduler   *SchedulerMetrics
	http        *HTTPMetrics
}

// NewCollector creates a collector and registers its metrics. If registry is
// nil a fresh registry is created.
//
// Example:
//
//	collector := metrics.NewCollector(cfg.Telemetry.Metrics, nil)
//	backend, err := store.Open(ctx, cfg.Store, logger, collector)
func NewCollector(cfg config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}

	return &Collector{
		config:      cfg,
		registry:    registry,
		containment: NewContainmentMetrics(cfg, registry),
		store:       NewStoreMetrics(cfg, registry),
		cache:       NewCacheMetrics(cfg, registry),
		scheduler:   NewSchedulerMetrics(cfg, registry),
		http:        NewHTTPMetrics(cfg, registry),
	}
}

// RecordTransition records a finished controller operation.
//
// Parameters:
//   - op: Operation name ("confine", "release", "reconcile", ...)
//   - outcome: "ok", "rejected" or "failed"
//   - d: Wall time of the operation
func (c *Collector) RecordTransition(op, outcome string, d time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.containment.RecordTransition(op, outcome, d)
}

// RecordReconcile records the outcome of a join reconciliation.
func (c *Collector) RecordReconcile(outcome string) {
	if !c.config.Enabled {
		return
	}
	c.containment.RecordReconcile(outcome)
}

// RecordBoundaryTeleport records a subject pulled back into confinement.
func (c *Collector) RecordBoundaryTeleport() {
	if !c.config.Enabled {
		return
	}
	c.containment.RecordBoundaryTeleport()
}

// RecordDenied records an action refused to a confined subject.
func (c *Collector) RecordDenied(action string) {
	if !c.config.Enabled {
		return
	}
	c.containment.RecordDenied(action)
}

// SetConfined updates the number of confined subjects.
func (c *Collector) SetConfined(n int) {
	if !c.config.Enabled {
		return
	}
	c.containment.SetConfined(n)
}

// ObserveStoreOp records one store operation.
func (c *Collector) ObserveStoreOp(op string, d time.Duration, err error) {
	if !c.config.Enabled {
		return
	}
	c.store.Observe(op, d, err)
}

// ObserveCache records one cache lookup or discarded populate.
func (c *Collector) ObserveCache(cache, outcome string) {
	if !c.config.Enabled {
		return
	}
	c.cache.Observe(cache, outcome)
}

// RecordTombstonePrune records a prune run and the tombstones left after it.
func (c *Collector) RecordTombstonePrune(pruned, remaining int) {
	if !c.config.Enabled {
		return
	}
	c.cache.RecordPrune(pruned, remaining)
}

// TaskDropped records a scheduler task dropped because its subject left.
func (c *Collector) TaskDropped(domain string) {
	if !c.config.Enabled {
		return
	}
	c.scheduler.RecordDropped(domain)
}

// RecordHTTPRequest records one admin API request.
func (c *Collector) RecordHTTPRequest(route, method string, status int, d time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.http.RecordRequest(route, method, status, d)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
