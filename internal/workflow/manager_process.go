package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/google/uuid"

	"paperling/internal/attempts"
	"paperling/internal/logging"
	"paperling/internal/notifications"
	"paperling/internal/queue"
	"paperling/internal/services"
	"paperling/internal/services/docling"
)

// processEntry converts one document and records the outcome. It reports
// whether the document was fully updated.
func (m *Manager) processEntry(ctx context.Context, entry queue.Entry) bool {
	requestID := uuid.NewString()
	docCtx := services.WithDocumentID(ctx, entry.ID)
	docCtx = services.WithRequestID(docCtx, requestID)
	logger := logging.WithContext(docCtx, m.logger).With(logging.String(logging.FieldDocumentTitle, entry.Title))

	start := time.Now()
	logger.Info("document processing started", logging.String(logging.FieldEventType, "document_started"))

	err := m.safeProcess(docCtx, logger, entry)
	if err == nil {
		m.recordSuccess(docCtx, logger, entry)
		logger.Info("document converted",
			logging.String(logging.FieldEventType, "document_converted"),
			logging.Duration("document_duration", time.Since(start)),
		)
		return true
	}

	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		logger.Info("document processing interrupted by shutdown",
			logging.String(logging.FieldEventType, "document_interrupted"),
		)
		return false
	}

	m.recordFailure(docCtx, logger, entry, err, time.Since(start))
	return false
}

// safeProcess runs processOne and converts a panic into an error.
func (m *Manager) safeProcess(ctx context.Context, logger *slog.Logger, entry queue.Entry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("document processing panicked",
				logging.String(logging.FieldEventType, "document_panic"),
				logging.String("panic", fmt.Sprint(r)),
				logging.String("stack", string(debug.Stack())),
			)
			err = services.Wrap(services.ErrTransient, "workflow", "process", fmt.Sprintf("panic: %v", r), nil)
		}
	}()
	return m.processOne(ctx, entry)
}

// processOne converts the document and writes the result back.
func (m *Manager) processOne(ctx context.Context, entry queue.Entry) error {
	tagID, ok := m.tags.ID()
	if !ok {
		return services.Wrap(services.ErrResolution, "workflow", "process", "target tag not resolved", nil)
	}
	text, err := m.converter.Convert(ctx, docling.Request{
		DocumentID: entry.ID,
		SourceURL:  m.paperless.DownloadURL(entry.ID),
	})
	if err != nil {
		if !errors.Is(err, services.ErrConversion) && !errors.Is(err, context.Canceled) {
			err = services.Wrap(services.ErrConversion, "docling", "convert", "", err)
		}
		return err
	}
	return m.updater.Commit(ctx, entry.ID, tagID, text)
}

func (m *Manager) recordSuccess(ctx context.Context, logger *slog.Logger, entry queue.Entry) {
	if m.ledger != nil {
		if err := m.ledger.RecordSuccess(ctx, entry.ID); err != nil {
			logging.WarnWithContext(logger, "failed to clear attempt record", "attempts_clear_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the attempts database in the state directory"),
				logging.String(logging.FieldImpact, "stale failure count may delay a future retry of this document"),
			)
		}
	}

	m.mu.Lock()
	m.succeeded++
	delete(m.exhausted, entry.ID)
	m.mu.Unlock()

	m.publish(ctx, logger, notifications.EventDocumentConverted, notifications.Payload{
		"documentId": entry.ID,
		"title":      entry.Title,
	})
}

// publish sends a notification and logs delivery failures without failing the document.
func (m *Manager) publish(ctx context.Context, logger *slog.Logger, event notifications.Event, payload notifications.Payload) {
	if err := m.notifier.Publish(ctx, event, payload); err != nil {
		logging.WarnWithContext(logger, "notification delivery failed", "notification_failed",
			logging.String("notification_event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic and network access to ntfy"),
			logging.String(logging.FieldImpact, "event was not announced"),
		)
	}
}

func (m *Manager) recordFailure(ctx context.Context, logger *slog.Logger, entry queue.Entry, procErr error, elapsed time.Duration) {
	kind := services.Classify(procErr)
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "document_failed"),
		logging.String(logging.FieldErrorKind, kind),
		logging.String(logging.FieldErrorHint, services.Hint(procErr)),
		logging.Duration("document_duration", elapsed),
		logging.Error(procErr),
	}

	if m.ledger != nil {
		rec, err := m.ledger.RecordFailure(ctx, attempts.Failure{
			DocumentID: entry.ID,
			Title:      entry.Title,
			Message:    procErr.Error(),
			Kind:       kind,
			At:         m.now(),
		})
		if err != nil {
			logging.WarnWithContext(logger, "failed to record attempt", "attempts_record_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the attempts database in the state directory"),
				logging.String(logging.FieldImpact, "retry policy cannot count this failure"),
			)
		} else {
			attrs = append(attrs, logging.Int(logging.FieldAttempt, rec.Failures))
			if m.policy.Backoff > 0 {
				attrs = append(attrs, logging.Time("next_attempt_at", m.policy.NextAttemptAt(rec)))
			}
		}
	}

	logging.ErrorWithContext(logger, "document processing failed", "document_failed", attrs...)

	m.mu.Lock()
	m.failed++
	m.lastErr = procErr
	m.mu.Unlock()
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
