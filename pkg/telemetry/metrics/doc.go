// Package metrics provides Prometheus metrics for warden.
//
// # Overview
//
// A single Collector owns every metric and satisfies the observer interfaces
// of the other packages, so wiring is one value passed around:
//
//	collector := metrics.NewCollector(cfg.Telemetry.Metrics, nil)
//
//	backend, _ := store.Open(ctx, cfg.Store, logger, collector)
//	layer := cache.New(cache.WithObserver(collector))
//	sched := scheduler.New(scheduler.Config{Observer: collector})
//	ctrl, _ := containment.New(containment.Deps{Metrics: collector, ...}, settings)
//
// # Metrics Categories
//
//   - Containment: operations, reconciliations, boundary teleports, denied
//     actions and the confined subjects gauge
//   - Store: operation counts and latency by result
//   - Cache: hits, misses, discarded populates and tombstones
//   - Scheduler: tasks dropped because their subject left
//   - HTTP: admin API requests
//
// # Prometheus Endpoint
//
// Handler serves the registry, by default on /metrics of the admin server:
//
//	# HELP warden_transitions_total Total number of containment operations
//	# TYPE warden_transitions_total counter
//	warden_transitions_total{op="confine",outcome="ok"} 12
//
// When metrics are disabled in configuration every recording method is a
// no-op and the endpoint is not mounted.
package metrics
