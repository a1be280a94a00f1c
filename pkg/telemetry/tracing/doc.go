// Package tracing provides OpenTelemetry tracing for warden.
//
// # Overview
//
// New builds the process-wide tracer provider from configuration. When
// tracing is enabled spans are batched to an OTLP gRPC collector; when it is
// disabled a no-op provider is installed and span creation costs next to
// nothing.
//
//	tracer, err := tracing.New(cfg.Telemetry.Tracing, version)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	ctrl, err := containment.New(containment.Deps{Tracer: tracer.Tracer(), ...}, settings)
//
// # Spans
//
// Each controller operation opens one span named "containment.<op>" tagged
// with the subject ID and, on completion, its outcome. Log records written
// inside a span carry its trace_id and span_id.
//
// # Sampling Strategies
//
//   - always: Sample all traces
//   - never: Sample no traces
//   - ratio: Sample a fraction of traces by trace ID
//
// Every strategy respects the sampling decision of a remote parent.
//
// # Propagation
//
// HTTPMiddleware extracts W3C trace context from admin API requests so a
// confinement issued by an external tool joins the caller's trace.
package tracing
