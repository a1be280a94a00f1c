package logging

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"irondiscipline/warden/pkg/subject"
)

// Context keys for common log fields.
type contextKey string

const (
	// SubjectKey is the context key for the subject an operation acts on.
	SubjectKey contextKey = "subject_id"

	// InitiatorKey is the context key for the subject that requested it.
	InitiatorKey contextKey = "initiator_id"

	// OperationKey is the context key for the operation name.
	OperationKey contextKey = "operation"

	// RequestIDKey is the context key for admin request IDs.
	RequestIDKey contextKey = "request_id"
)

// WithSubject adds the acted-on subject to the context.
func WithSubject(ctx context.Context, id subject.ID) context.Context {
	return context.WithValue(ctx, SubjectKey, id)
}

// GetSubject retrieves the acted-on subject from the context.
func GetSubject(ctx context.Context) (subject.ID, bool) {
	id, ok := ctx.Value(SubjectKey).(subject.ID)
	return id, ok
}

// WithInitiator adds the requesting subject to the context.
func WithInitiator(ctx context.Context, id subject.ID) context.Context {
	return context.WithValue(ctx, InitiatorKey, id)
}

// GetInitiator retrieves the requesting subject from the context.
func GetInitiator(ctx context.Context) (subject.ID, bool) {
	id, ok := ctx.Value(InitiatorKey).(subject.ID)
	return id, ok
}

// WithOperation adds an operation name to the context.
func WithOperation(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, OperationKey, op)
}

// GetOperation retrieves the operation name from the context.
func GetOperation(ctx context.Context) string {
	if op, ok := ctx.Value(OperationKey).(string); ok {
		return op
	}
	return ""
}

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// extractContextFields extracts common fields from context for logging.
func extractContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}

	var fields []slog.Attr
	if id, ok := GetSubject(ctx); ok {
		fields = append(fields, slog.String(string(SubjectKey), id.String()))
	}
	if id, ok := GetInitiator(ctx); ok {
		fields = append(fields, slog.String(string(InitiatorKey), id.String()))
	}
	if op := GetOperation(ctx); op != "" {
		fields = append(fields, slog.String(string(OperationKey), op))
	}
	if requestID := GetRequestID(ctx); requestID != "" {
		fields = append(fields, slog.String(string(RequestIDKey), requestID))
	}

	// Trace correlation comes from the active span, if any.
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return fields
}

// contextHandler adds context fields to every record and redacts secrets.
type contextHandler struct {
	inner    slog.Handler
	redactor *Redactor
}

func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	fields := extractContextFields(ctx)
	if len(fields) == 0 && h.redactor == nil {
		return h.inner.Handle(ctx, r)
	}

	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	out.AddAttrs(fields...)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.redact(a))
		return true
	})
	return h.inner.Handle(ctx, out)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = h.redact(a)
	}
	return &contextHandler{inner: h.inner.WithAttrs(redacted), redactor: h.redactor}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{inner: h.inner.WithGroup(name), redactor: h.redactor}
}

func (h *contextHandler) redact(a slog.Attr) slog.Attr {
	if h.redactor == nil {
		return a
	}
	return h.redactor.RedactAttr(a)
}
