package workflow

import (
	"context"
	"strings"

	"paperling/internal/attempts"
	"paperling/internal/logging"
	"paperling/internal/notifications"
	"paperling/internal/queue"
	"paperling/internal/services"
	"paperling/internal/services/paperless"
)

// PollResult summarizes one discovery cycle.
type PollResult struct {
	Resolved   bool
	Discovered int
	Enqueued   int
	Skipped    int
}

// PollOnce runs one discovery cycle: resolve the tag, list tagged documents,
// apply the retry policy, enqueue, and wake the worker when work is pending.
// Failures are logged and yield an empty result.
func (m *Manager) PollOnce(ctx context.Context) PollResult {
	m.setPolling(true)
	defer m.setPolling(false)

	discoveredAt := m.now()
	result := PollResult{}
	docs, ok := m.discover(ctx)
	m.markPolled(discoveredAt)
	if !ok {
		return result
	}
	result.Resolved = true
	result.Discovered = len(docs)

	eligible := m.filterEligible(ctx, docs)
	result.Skipped = len(docs) - len(eligible)

	added := m.queue.Enqueue(discoveredAt, eligible...)
	result.Enqueued = len(added)
	for _, entry := range added {
		m.logger.Info("document enqueued",
			logging.String(logging.FieldEventType, "document_enqueued"),
			logging.Int64(logging.FieldDocumentID, entry.ID),
			logging.String(logging.FieldDocumentTitle, entry.Title),
		)
	}

	pending := m.queue.Len()
	if len(added) > 0 {
		m.logger.Debug("discovery complete",
			logging.Int("discovered", result.Discovered),
			logging.Int("enqueued", result.Enqueued),
			logging.Int("queue_length", pending),
		)
	}
	if pending > 0 {
		m.signal()
	}
	return result
}

// discover lists the documents carrying the target tag. The bool is false when
// the tag is unresolved or the listing failed.
func (m *Manager) discover(ctx context.Context) ([]paperless.Document, bool) {
	tagID, ok := m.tags.Resolve(ctx)
	if !ok {
		return nil, false
	}
	docs, err := m.paperless.ListDocumentsWithTag(ctx, tagID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false
		}
		wrapped := services.Wrap(services.ErrDiscovery, "documents", "list", "could not list tagged documents", err)
		m.setLastError(wrapped)
		logging.WarnWithContext(m.logger, "document discovery failed", "discovery_failed",
			logging.Int64(logging.FieldTagID, tagID),
			logging.String(logging.FieldErrorKind, services.Classify(wrapped)),
			logging.String(logging.FieldErrorHint, services.Hint(wrapped)),
			logging.String(logging.FieldImpact, "no documents enqueued this cycle"),
			logging.Error(wrapped),
		)
		return nil, false
	}
	return docs, true
}

func (m *Manager) filterEligible(ctx context.Context, docs []paperless.Document) []queue.Entry {
	entries := make([]queue.Entry, 0, len(docs))
	now := m.now()
	for _, doc := range docs {
		entry := queue.Entry{ID: doc.ID, Title: strings.TrimSpace(doc.Title)}
		if m.ledger == nil || m.queue.Contains(doc.ID) {
			entries = append(entries, entry)
			continue
		}
		rec, found, err := m.ledger.Get(ctx, doc.ID)
		if err != nil {
			m.logger.Debug("attempt lookup failed; treating document as eligible",
				logging.Int64(logging.FieldDocumentID, doc.ID),
				logging.Error(err),
			)
			entries = append(entries, entry)
			continue
		}
		if !found {
			m.forgetExhausted(doc.ID)
			entries = append(entries, entry)
			continue
		}
		switch m.policy.Check(rec, now) {
		case attempts.Exhausted:
			m.warnExhausted(ctx, rec)
		case attempts.Waiting:
			m.logger.Debug("document in retry backoff",
				logging.Int64(logging.FieldDocumentID, doc.ID),
				logging.Int("failures", rec.Failures),
				logging.Time("next_attempt_at", m.policy.NextAttemptAt(rec)),
			)
		default:
			entries = append(entries, entry)
		}
	}
	return entries
}

// forgetExhausted drops the warn-once marker after a ledger reset.
func (m *Manager) forgetExhausted(id int64) {
	m.mu.Lock()
	delete(m.exhausted, id)
	m.mu.Unlock()
}

// warnExhausted logs once per failure count so each poll does not repeat it.
func (m *Manager) warnExhausted(ctx context.Context, rec attempts.Record) {
	m.mu.Lock()
	if m.exhausted[rec.DocumentID] == rec.Failures {
		m.mu.Unlock()
		return
	}
	m.exhausted[rec.DocumentID] = rec.Failures
	m.mu.Unlock()

	logging.WarnWithContext(m.logger, "document retries exhausted", "retry_exhausted",
		logging.Int64(logging.FieldDocumentID, rec.DocumentID),
		logging.String(logging.FieldDocumentTitle, rec.Title),
		logging.Int("failures", rec.Failures),
		logging.String("last_error", rec.LastError),
		logging.String(logging.FieldErrorHint, "fix the document, then run paperling attempts reset "+itoa(rec.DocumentID)),
		logging.String(logging.FieldImpact, "document keeps its tag and is not converted"),
	)
	m.publish(ctx, m.logger, notifications.EventRetriesExhausted, notifications.Payload{
		"documentId": rec.DocumentID,
		"title":      rec.Title,
		"failures":   rec.Failures,
		"lastError":  rec.LastError,
	})
}
