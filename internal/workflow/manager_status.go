package workflow

import (
	"time"

	"paperling/internal/queue"
)

// StatusSummary is a read-only snapshot of the workflow.
type StatusSummary struct {
	Running     bool
	State       string
	TagName     string
	TagID       *int64
	QueueLength int
	InFlight    *queue.Entry
	StartedAt   time.Time
	Pending     []queue.Entry
	LastPoll    time.Time
	Succeeded   int64
	Failed      int64
	LastError   string
}

// IsProcessing reports whether a document is being converted.
func (s StatusSummary) IsProcessing() bool {
	return s.InFlight != nil
}

// Status returns the latest workflow information.
func (m *Manager) Status() StatusSummary {
	snap := m.queue.Snapshot()

	m.mu.RLock()
	summary := StatusSummary{
		Running:     m.running,
		TagName:     m.tags.Name(),
		QueueLength: len(snap.Pending),
		InFlight:    snap.InFlight,
		StartedAt:   snap.StartedAt,
		Pending:     snap.Pending,
		LastPoll:    m.lastPoll,
		Succeeded:   m.succeeded,
		Failed:      m.failed,
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	polling := m.polling > 0
	m.mu.RUnlock()

	if id, ok := m.tags.ID(); ok {
		summary.TagID = &id
	}
	switch {
	case !summary.Running:
		summary.State = StateStopped
	case polling:
		summary.State = StatePolling
	case summary.InFlight != nil:
		summary.State = StateProcessing
	default:
		summary.State = StateIdle
	}
	return summary
}

func (m *Manager) setPolling(polling bool) {
	m.mu.Lock()
	if polling {
		m.polling++
	} else if m.polling > 0 {
		m.polling--
	}
	m.mu.Unlock()
}

func (m *Manager) markPolled(at time.Time) {
	m.mu.Lock()
	m.lastPoll = at
	m.mu.Unlock()
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}
