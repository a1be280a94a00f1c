package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"irondiscipline/warden/pkg/config"
	"irondiscipline/warden/pkg/subject"
)

func enabledConfig() config.TracingConfig {
	return config.TracingConfig{
		Enabled:     true,
		Endpoint:    "localhost:4317",
		Insecure:    true,
		Sampler:     SamplerAlways,
		ServiceName: "warden-test",
	}
}

func TestNew_Disabled(t *testing.T) {
	tracer, err := New(config.TracingConfig{}, "test")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if tracer.Enabled() {
		t.Error("Expected tracer to be disabled")
	}

	ctx, span := tracer.Start(context.Background(), "noop")
	span.End()
	if TraceID(ctx) != "" {
		t.Error("Expected no trace ID from a no-op span")
	}
	if err := tracer.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestNew_RequiresEndpoint(t *testing.T) {
	cfg := enabledConfig()
	cfg.Endpoint = ""

	if _, err := New(cfg, "test"); err == nil {
		t.Fatal("Expected error for missing endpoint")
	}
}

func TestNew_EnabledConnectsLazily(t *testing.T) {
	tracer, err := New(enabledConfig(), "test")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if !tracer.Enabled() {
		t.Error("Expected tracer to be enabled")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = tracer.Shutdown(ctx)
}

func TestTracer_ExportsSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tracer, err := newTracer(enabledConfig(), "1.2.3", exporter)
	if err != nil {
		t.Fatalf("newTracer failed: %v", err)
	}

	id := subject.NewID()
	initiator := subject.NewID()
	ctx, span := tracer.Start(context.Background(), "containment.confine", Subject(id))
	SetInitiator(span, initiator)
	SetOutcome(span, "failed")
	SetError(span, errors.New("disk full"))

	if TraceID(ctx) == "" || SpanID(ctx) == "" {
		t.Error("Expected trace and span IDs in context")
	}
	span.End()

	if err := tracer.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("Expected 1 span, got %d", len(spans))
	}
	got := spans[0]
	if got.Name != "containment.confine" {
		t.Errorf("Expected span name containment.confine, got %s", got.Name)
	}
	if got.Status.Code != codes.Error {
		t.Errorf("Expected error status, got %v", got.Status.Code)
	}

	attrs := make(map[attribute.Key]string)
	for _, kv := range got.Attributes {
		attrs[kv.Key] = kv.Value.Emit()
	}
	if attrs[AttrSubjectID] != id.String() {
		t.Errorf("Expected subject attribute %s, got %s", id, attrs[AttrSubjectID])
	}
	if attrs[AttrInitiatorID] != initiator.String() {
		t.Errorf("Expected initiator attribute %s, got %s", initiator, attrs[AttrInitiatorID])
	}
	if attrs[AttrOutcome] != "failed" {
		t.Errorf("Expected outcome failed, got %s", attrs[AttrOutcome])
	}

	service, ok := got.Resource.Set().Value("service.name")
	if !ok || service.AsString() != "warden-test" {
		t.Errorf("Expected service.name warden-test, got %v", service)
	}
}

func TestSetError_NilIsNoop(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tracer, err := newTracer(enabledConfig(), "test", exporter)
	if err != nil {
		t.Fatalf("newTracer failed: %v", err)
	}

	_, span := tracer.Start(context.Background(), "ok")
	SetError(span, nil)
	span.End()
	_ = tracer.Shutdown(context.Background())

	spans := exporter.GetSpans()
	if len(spans) != 1 || spans[0].Status.Code != codes.Unset {
		t.Errorf("Expected one span with unset status, got %+v", spans)
	}
}

func TestCreateSampler(t *testing.T) {
	tests := []struct {
		name     string
		strategy string
		ratio    float64
		want     string
		wantErr  bool
	}{
		{name: "always", strategy: SamplerAlways, want: "AlwaysOnSampler"},
		{name: "never", strategy: SamplerNever, want: "AlwaysOffSampler"},
		{name: "ratio", strategy: SamplerRatio, ratio: 0.25, want: "TraceIDRatioBased{0.25}"},
		{name: "ratio too high", strategy: SamplerRatio, ratio: 1.5, wantErr: true},
		{name: "ratio negative", strategy: SamplerRatio, ratio: -0.1, wantErr: true},
		{name: "unknown", strategy: "sometimes", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sampler, err := createSampler(tt.strategy, tt.ratio)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("createSampler failed: %v", err)
			}
			desc := sampler.Description()
			if !strings.HasPrefix(desc, "ParentBased") || !strings.Contains(desc, tt.want) {
				t.Errorf("Expected ParentBased %s, got %s", tt.want, desc)
			}
		})
	}
}

func TestHTTPMiddleware_ExtractsTraceContext(t *testing.T) {
	const traceparent = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"

	var seen string
	handler := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/confinements", nil)
	req.Header.Set("traceparent", traceparent)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seen != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("Expected extracted trace ID, got %q", seen)
	}
	if rec.Header().Get("X-Trace-ID") != seen {
		t.Errorf("Expected X-Trace-ID header %q, got %q", seen, rec.Header().Get("X-Trace-ID"))
	}

	// Requests without context pass through untouched.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get("X-Trace-ID") != "" {
		t.Error("Expected no X-Trace-ID header without incoming context")
	}
}

func TestInjectRoundTrip(t *testing.T) {
	headers := http.Header{}
	headers.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	ctx := Extract(context.Background(), headers)

	out := http.Header{}
	Inject(ctx, out)
	if !strings.Contains(out.Get("traceparent"), "4bf92f3577b34da6a3ce929d0e0e4736") {
		t.Errorf("Expected injected traceparent, got %q", out.Get("traceparent"))
	}
}
