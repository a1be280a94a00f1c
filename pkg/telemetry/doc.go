// Package telemetry groups the observability packages of warden.
//
// # Components
//
//   - logging: slog construction, context fields and secret redaction
//   - metrics: Prometheus collector for containment, store, cache,
//     scheduler and admin API metrics
//   - tracing: OpenTelemetry tracer provider and HTTP propagation
//   - health: liveness and readiness checks
//
// # Usage
//
//	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging))
//	collector := metrics.NewCollector(cfg.Telemetry.Metrics, nil)
//	tracer, err := tracing.New(cfg.Telemetry.Tracing, version)
//	defer tracer.Shutdown(context.Background())
//
// The collector implements the observer interfaces of the store, cache and
// scheduler packages and the containment.Metrics interface, so one value is
// handed to every component.
package telemetry
