package logging

import (
	"context"
	"log/slog"

	"paperling/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldDocumentID is the standardized key for Paperless document identifiers.
	FieldDocumentID = "document_id"
	// FieldDocumentTitle is the standardized key for Paperless document titles.
	FieldDocumentTitle = "document_title"
	// FieldTagID is the standardized key for the resolved target tag identifier.
	FieldTagID = "tag_id"
	// FieldAttempt is the standardized key for the 1-based conversion attempt number.
	FieldAttempt = "attempt"
	// FieldCorrelationID is the standardized key for per-attempt correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType names the event so log queries do not depend on message text.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step an operator should take.
	FieldErrorHint = "error_hint"
	// FieldErrorKind carries the error classification (resolution, discovery, conversion, update).
	FieldErrorKind = "error_kind"
	// FieldImpact describes the user-facing consequence of a warning.
	FieldImpact = "impact"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 2)
	if id, ok := services.DocumentIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldDocumentID, id))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	args := make([]any, 0, len(fields))
	for _, f := range fields {
		args = append(args, f)
	}
	return logger.With(args...)
}
