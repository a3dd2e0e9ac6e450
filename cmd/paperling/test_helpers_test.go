package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"paperling/internal/attempts"
	"paperling/internal/config"
	"paperling/internal/daemon"
	"paperling/internal/logging"
	"paperling/internal/testsupport"
	"paperling/internal/workflow"
)

const testAuth = "Token test"

type cliTestEnv struct {
	cfg        *config.Config
	fake       *testsupport.FakePaperless
	converter  *testsupport.StubConverter
	ledger     *attempts.Store
	manager    *workflow.Manager
	daemon     *daemon.Daemon
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	t.Setenv("HOME", t.TempDir())
	fake := testsupport.NewFakePaperless(t, testAuth)
	fake.AddTag(7, "docling")
	cfg := testsupport.NewConfig(t,
		testsupport.WithPaperless(fake.URL(), testAuth),
		testsupport.WithPollInterval(int(time.Hour/time.Millisecond)),
		testsupport.WithStubbedBinaries(),
	)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	ledger, err := attempts.Open(cfg.AttemptsDBPath())
	if err != nil {
		t.Fatalf("attempts.Open: %v", err)
	}
	converter := testsupport.NewStubConverter()
	logger := logging.NewNop()
	mgr, err := workflow.NewManager(cfg, workflow.Dependencies{
		Paperless: fake.Client(t),
		Converter: converter,
		Ledger:    ledger,
	}, logger)
	if err != nil {
		t.Fatalf("workflow.NewManager: %v", err)
	}
	d, err := daemon.New(cfg, mgr, ledger, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	env := &cliTestEnv{
		cfg:       cfg,
		fake:      fake,
		converter: converter,
		ledger:    ledger,
		manager:   mgr,
		daemon:    d,
	}
	t.Cleanup(func() {
		_ = d.Close()
	})
	return env
}

// start runs the daemon and rewrites the config file with the bound API address.
func (e *cliTestEnv) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := e.daemon.Start(ctx); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	e.cfg.Paths.APIBind = e.daemon.APIAddress()
	e.writeConfig(t)
}

func (e *cliTestEnv) writeConfig(t *testing.T) {
	t.Helper()
	encoded, err := config.Encode(*e.cfg)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if e.configPath == "" {
		e.configPath = filepath.Join(testsupport.BaseDir(e.cfg), "config.toml")
	}
	if err := os.WriteFile(e.configPath, []byte(encoded), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
