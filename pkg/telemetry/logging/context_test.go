package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"go.opentelemetry.io/otel/trace"

	"irondiscipline/warden/pkg/subject"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	if _, ok := GetSubject(ctx); ok {
		t.Error("expected no subject in empty context")
	}
	if GetOperation(ctx) != "" || GetRequestID(ctx) != "" {
		t.Error("expected empty operation and request id")
	}

	id, by := subject.NewID(), subject.NewID()
	ctx = WithSubject(ctx, id)
	ctx = WithInitiator(ctx, by)
	ctx = WithOperation(ctx, "confine")
	ctx = WithRequestID(ctx, "req-1")

	if got, ok := GetSubject(ctx); !ok || got != id {
		t.Errorf("GetSubject() = %v, %v", got, ok)
	}
	if got, ok := GetInitiator(ctx); !ok || got != by {
		t.Errorf("GetInitiator() = %v, %v", got, ok)
	}
	if GetOperation(ctx) != "confine" {
		t.Errorf("GetOperation() = %q", GetOperation(ctx))
	}
	if GetRequestID(ctx) != "req-1" {
		t.Errorf("GetRequestID() = %q", GetRequestID(ctx))
	}
}

func TestHandler_AddsContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Writer: &buf})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	id := subject.NewID()
	ctx := WithOperation(WithSubject(context.Background(), id), "release")

	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	ctx = trace.ContextWithSpanContext(ctx, trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	logger.InfoContext(ctx, "subject released")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["subject_id"] != id.String() {
		t.Errorf("subject_id = %v, want %s", entry["subject_id"], id)
	}
	if entry["operation"] != "release" {
		t.Errorf("operation = %v", entry["operation"])
	}
	if entry["trace_id"] != traceID.String() || entry["span_id"] != spanID.String() {
		t.Errorf("trace fields = %v/%v", entry["trace_id"], entry["span_id"])
	}
}

func TestHandler_NoContextFieldsWithoutContext(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Writer: &buf})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	logger.Info("plain")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if _, ok := entry["subject_id"]; ok {
		t.Error("unexpected subject_id on plain record")
	}
}
