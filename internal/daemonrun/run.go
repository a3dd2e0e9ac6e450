package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"paperling/internal/attempts"
	"paperling/internal/config"
	"paperling/internal/daemon"
	"paperling/internal/logging"
	"paperling/internal/logs"
	"paperling/internal/notifications"
	"paperling/internal/preflight"
	"paperling/internal/services/docling"
	"paperling/internal/services/paperless"
	"paperling/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the paperling daemon and blocks until SIGINT/SIGTERM or cmdCtx is cancelled.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("paperling-%s.log", runID))

	level := strings.TrimSpace(opts.LogLevel)
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update paperling.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "paperling-*.log", Exclude: []string{logPath}},
	)
	logDependencySnapshot(logger, cfg)

	pidPath := filepath.Join(cfg.Paths.StateDir, "paperling.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	ledger, err := attempts.Open(cfg.AttemptsDBPath())
	if err != nil {
		logger.Error("open retry ledger", logging.Error(err))
		return err
	}

	d, err := build(cfg, ledger, logger)
	if err != nil {
		_ = ledger.Close()
		return err
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.state_dir lock ownership and that paths.api_bind is free"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("paperling daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

func build(cfg *config.Config, ledger *attempts.Store, logger *slog.Logger) (*daemon.Daemon, error) {
	client, err := paperless.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("create paperless client: %w", err)
	}
	converter, err := docling.New(docling.OptionsFromConfig(cfg), docling.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("create docling client: %w", err)
	}
	manager, err := workflow.NewManager(cfg, workflow.Dependencies{
		Paperless: client,
		Converter: converter,
		Ledger:    ledger,
		Notifier:  notifications.NewService(cfg),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create workflow: %w", err)
	}
	d, err := daemon.New(cfg, manager, ledger, logger)
	if err != nil {
		return nil, fmt.Errorf("create daemon: %w", err)
	}
	return d, nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := logs.CurrentPath(logDir)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("paperless_url", cfg.Paperless.URL),
		logging.String("tag_name", cfg.Paperless.TagName),
		logging.String("docling_binary", cfg.Docling.Binary),
		logging.String("docling_pipeline", cfg.Docling.Pipeline),
		logging.String("docling_device", cfg.Docling.Device),
		logging.String("scratch_dir", cfg.Docling.ScratchDir),
	}
	for _, result := range preflight.CheckSystemDeps(cfg) {
		attrs = append(attrs, logging.Bool(strings.ToLower(result.Name)+"_available", result.Passed))
		if !result.Passed {
			logging.WarnWithContext(logger, "required binary missing", "dependency_missing",
				logging.String("dependency", result.Name),
				logging.String("detail", result.Detail),
				logging.String(logging.FieldErrorHint, "install docling or set docling.binary"),
				logging.String(logging.FieldImpact, "every conversion attempt will fail"),
			)
		}
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
