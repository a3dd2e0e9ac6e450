package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"paperling/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paperless.URL = "http://paperless.invalid/api"
	cfgVal.Paperless.Auth = "Token test"
	cfgVal.Paperless.RequestsPerSecond = -1
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Docling.ScratchDir = filepath.Join(base, "scratch")
	cfgVal.Workflow.PollIntervalMS = 50

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithPaperless points the config at a (usually fake) Paperless server.
func WithPaperless(url, auth string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paperless.URL = url
		b.cfg.Paperless.Auth = auth
	}
}

// WithPollInterval overrides the discovery interval in milliseconds.
func WithPollInterval(ms int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.PollIntervalMS = ms
	}
}

// WithRetryPolicy overrides the retry policy.
func WithRetryPolicy(maxAttempts, backoffSeconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.MaxAttempts = maxAttempts
		b.cfg.Workflow.RetryBackoffSeconds = backoffSeconds
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, docling is stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"docling"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
