package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"paperling/internal/attempts"
	"paperling/internal/config"
	"paperling/internal/logging"
	"paperling/internal/workflow"
)

// Workflow is the subset of workflow.Manager the daemon drives.
type Workflow interface {
	Start(ctx context.Context) error
	Stop()
	Status() workflow.StatusSummary
}

// AttemptLister reads the retry ledger for the /attempts endpoint.
type AttemptLister interface {
	List(ctx context.Context) ([]attempts.Record, error)
}

// Daemon coordinates background processing and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	workflow Workflow
	ledger   AttemptLister
	policy   attempts.Policy
	api      *apiServer
	now      func() time.Time

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Workflow     workflow.StatusSummary
	LedgerPath   string
	LockFilePath string
}

// New constructs a daemon. ledger may be nil, in which case /attempts reports an empty list.
func New(cfg *config.Config, wf Workflow, ledger AttemptLister, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || wf == nil {
		return nil, errors.New("daemon requires config and workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		workflow: wf,
		ledger:   ledger,
		policy:   attempts.PolicyFromConfig(cfg),
		now:      time.Now,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, binds the status API and launches the workflow.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another paperling daemon instance is already running (lock %s)", d.lockPath)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}
	if err := d.workflow.Start(runCtx); err != nil {
		d.api.stop()
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("paperling daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("api_address", d.APIAddress()),
	)
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.workflow.Stop()
	d.api.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the lock file manually if the next start fails"),
			logging.String(logging.FieldImpact, "next daemon start may report the lock as held"),
		)
	}
	d.running.Store(false)
	d.logger.Info("paperling daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon and releases the ledger when it owns a closer.
func (d *Daemon) Close() error {
	d.Stop()
	if closer, ok := d.ledger.(io.Closer); ok && closer != nil {
		return closer.Close()
	}
	return nil
}

// APIAddress returns the bound status API address, or "" before Start.
func (d *Daemon) APIAddress() string {
	return d.api.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	status := Status{
		Running:      d.running.Load(),
		Workflow:     d.workflow.Status(),
		LockFilePath: d.lockPath,
	}
	if pather, ok := d.ledger.(interface{ Path() string }); ok {
		status.LedgerPath = pather.Path()
	}
	return status
}

// Attempts lists the retry ledger.
func (d *Daemon) Attempts(ctx context.Context) ([]attempts.Record, error) {
	if d.ledger == nil {
		return nil, nil
	}
	return d.ledger.List(ctx)
}
