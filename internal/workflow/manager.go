package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"paperling/internal/attempts"
	"paperling/internal/config"
	"paperling/internal/logging"
	"paperling/internal/notifications"
	"paperling/internal/queue"
	"paperling/internal/services/docling"
)

// Poll states reported in status.
const (
	StateStopped    = "stopped"
	StateIdle       = "idle"
	StatePolling    = "polling"
	StateProcessing = "processing"
)

// Dependencies are the collaborators the Manager drives.
type Dependencies struct {
	Paperless PaperlessAPI
	Converter docling.Converter
	// Ledger is optional; without it every tagged document is always eligible.
	Ledger Ledger
	// Queue is optional; a fresh queue sharing Clock is created when nil. A
	// supplied queue must use the same clock.
	Queue *queue.Queue
	// Notifier is optional; nil disables notifications.
	Notifier notifications.Service
	Clock    Clock
}

// Manager coordinates discovery, conversion and write-back.
type Manager struct {
	cfg          *config.Config
	logger       *slog.Logger
	pollInterval time.Duration

	paperless PaperlessAPI
	converter docling.Converter
	ledger    Ledger
	policy    attempts.Policy
	queue     *queue.Queue
	tags      *TagResolver
	updater   *Updater
	notifier  notifications.Service
	now       Clock

	wake chan struct{}

	mu        sync.RWMutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	polling   int
	lastPoll  time.Time
	lastErr   error
	succeeded int64
	failed    int64
	exhausted map[int64]int
}

// NewManager constructs a workflow manager.
func NewManager(cfg *config.Config, deps Dependencies, logger *slog.Logger) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("workflow: config required")
	}
	if deps.Paperless == nil {
		return nil, errors.New("workflow: paperless client required")
	}
	if deps.Converter == nil {
		return nil, errors.New("workflow: converter required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	q := deps.Queue
	if q == nil {
		q = queue.New(queue.WithClock(now))
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewService(nil)
	}
	interval := cfg.PollInterval()
	if interval <= 0 {
		interval = time.Minute
	}
	return &Manager{
		cfg:          cfg,
		logger:       logging.NewComponentLogger(logger, "workflow"),
		pollInterval: interval,
		paperless:    deps.Paperless,
		converter:    deps.Converter,
		ledger:       deps.Ledger,
		policy:       attempts.PolicyFromConfig(cfg),
		queue:        q,
		tags:         NewTagResolver(deps.Paperless, cfg.Paperless.TagName, logger),
		updater:      NewUpdater(deps.Paperless),
		notifier:     notifier,
		now:          now,
		wake:         make(chan struct{}, 1),
		exhausted:    make(map[int64]int),
	}, nil
}

// Queue exposes the processing queue for status reporting.
func (m *Manager) Queue() *queue.Queue {
	return m.queue
}

// Start launches the poller and the worker. The first poll runs immediately.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(2)
	m.mu.Unlock()

	m.logger.Info("workflow started",
		logging.String(logging.FieldEventType, "workflow_started"),
		logging.String("tag_name", m.tags.Name()),
		logging.Duration("poll_interval", m.pollInterval),
		logging.Int("max_attempts", m.policy.MaxAttempts),
	)

	go m.workerLoop(runCtx)
	go m.pollLoop(runCtx)
	return nil
}

// Stop cancels both loops and waits for them. An in-flight conversion is
// killed through its context.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("workflow stopped", logging.String(logging.FieldEventType, "workflow_stopped"))
}

func (m *Manager) pollLoop(ctx context.Context) {
	defer m.wg.Done()

	m.PollOnce(ctx)

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.PollOnce(ctx)
		}
	}
}

func (m *Manager) workerLoop(ctx context.Context) {
	defer m.wg.Done()
	for {
		m.drain(ctx)
		select {
		case <-ctx.Done():
			return
		case <-m.wake:
		}
	}
}

// drain processes pending documents back to back until the queue is empty.
func (m *Manager) drain(ctx context.Context) {
	for ctx.Err() == nil {
		entry, ok := m.queue.Begin()
		if !ok {
			return
		}
		succeeded := m.processEntry(ctx, entry)
		m.queue.Finish(entry.ID, succeeded)
	}
}

func (m *Manager) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}
