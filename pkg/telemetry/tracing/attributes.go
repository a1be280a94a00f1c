package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"irondiscipline/warden/pkg/subject"
)

// Attribute keys set on warden spans.
const (
	AttrSubjectID   = "warden.subject.id"
	AttrInitiatorID = "warden.initiator.id"
	AttrOutcome     = "warden.outcome"
	AttrEvent       = "warden.event"
)

// Subject returns a span start option tagging the span with id.
func Subject(id subject.ID) trace.SpanStartOption {
	return trace.WithAttributes(attribute.String(AttrSubjectID, id.String()))
}

// SetInitiator tags the span with the subject that requested the operation.
func SetInitiator(span trace.Span, id subject.ID) {
	span.SetAttributes(attribute.String(AttrInitiatorID, id.String()))
}
