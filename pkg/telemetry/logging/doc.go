// Package logging builds the process logger.
//
// Loggers are plain *slog.Logger values. Components derive their own with
// logger.With("component", "..."), and operations put the subject and
// operation into the context so every record logged with *Context methods
// carries them:
//
//	ctx = logging.WithSubject(ctx, id)
//	ctx = logging.WithOperation(ctx, "confine")
//	logger.InfoContext(ctx, "subject confined")
//
// When the context carries an OpenTelemetry span, trace_id and span_id are
// added as well. Credentials in connection strings are masked.
package logging
