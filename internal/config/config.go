package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-shellwords"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Paperless contains connection settings for the Paperless-ngx REST API.
type Paperless struct {
	URL               string  `toml:"url"`
	Auth              string  `toml:"auth"`
	TagName           string  `toml:"tag_name"`
	RequestTimeout    int     `toml:"request_timeout"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// Docling contains the fixed argument bundle passed to every docling run.
type Docling struct {
	Binary     string `toml:"binary"`
	Pipeline   string `toml:"pipeline"`
	Model      string `toml:"model"`
	Device     string `toml:"device"`
	Threads    int    `toml:"threads"`
	PDFBackend string `toml:"pdf_backend"`
	OCREngine  string `toml:"ocr_engine"`
	ExtraArgs  string `toml:"extra_args"`
	ScratchDir string `toml:"scratch_dir"`
	// TimeoutSeconds bounds a single run. Zero leaves runs unbounded.
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// Workflow contains poll timing and the retry policy.
type Workflow struct {
	PollIntervalMS      int `toml:"poll_interval_ms"`
	MaxAttempts         int `toml:"max_attempts"`
	RetryBackoffSeconds int `toml:"retry_backoff_seconds"`
	MaxBackoffSeconds   int `toml:"max_backoff_seconds"`
}

// Notifications configures optional ntfy push messages.
type Notifications struct {
	// NtfyTopic is the full topic URL. Empty disables notifications.
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	// NotifySuccess also publishes one message per converted document.
	NotifySuccess bool `toml:"notify_success"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for paperling.
//
// Configuration sections by subsystem:
//   - Paths: state/log directories and the status API bind address
//   - Paperless: document service URL, credential and target tag
//   - Docling: conversion tool arguments and scratch directory
//   - Workflow: poll interval and retry policy
//   - Notifications: ntfy topic for failure alerts
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Paperless     Paperless     `toml:"paperless"`
	Docling       Docling       `toml:"docling"`
	Workflow      Workflow      `toml:"workflow"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/paperling/config.toml")
}

// Load locates, parses, and validates a configuration file. Environment
// variables are applied after the file so container deployments can run
// without one. The returned config has all path fields expanded.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		info, err := os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		if info.IsDir() {
			return "", false, fmt.Errorf("config path %q is a directory", expanded)
		}
		return expanded, true, nil
	}

	if value, ok := os.LookupEnv("PAPERLING_CONFIG"); ok && strings.TrimSpace(value) != "" {
		return resolveConfigPath(strings.TrimSpace(value))
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("paperling.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir, c.Docling.ScratchDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// PollInterval returns the configured discovery interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Workflow.PollIntervalMS) * time.Millisecond
}

// AttemptsDBPath returns the location of the retry ledger database.
func (c *Config) AttemptsDBPath() string {
	return filepath.Join(c.Paths.StateDir, "attempts.db")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "paperling.lock")
}

// APIBaseURL returns the HTTP base URL CLI commands use to reach the daemon.
func (c *Config) APIBaseURL() string {
	bind := strings.TrimSpace(c.Paths.APIBind)
	if strings.HasPrefix(bind, ":") {
		bind = "127.0.0.1" + bind
	}
	if strings.HasPrefix(bind, "0.0.0.0:") {
		bind = "127.0.0.1:" + strings.TrimPrefix(bind, "0.0.0.0:")
	}
	return "http://" + bind
}

// DoclingExtraArgs splits the configured passthrough arguments with shell
// quoting rules, so `--foo "a b"` yields two arguments. Variables and
// backticks are not expanded. Validate rejects strings that do not parse.
func (c *Config) DoclingExtraArgs() []string {
	args, err := parseExtraArgs(c.Docling.ExtraArgs)
	if err != nil {
		return strings.Fields(c.Docling.ExtraArgs)
	}
	return args
}

func parseExtraArgs(value string) ([]string, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	parser := shellwords.NewParser()
	parser.ParseEnv = false
	parser.ParseBacktick = false
	return parser.Parse(value)
}

// Redacted returns a copy with credentials masked for display.
func (c *Config) Redacted() Config {
	clone := *c
	if clone.Paperless.Auth != "" {
		clone.Paperless.Auth = "<redacted>"
	}
	if clone.Paths.APIToken != "" {
		clone.Paths.APIToken = "<redacted>"
	}
	if clone.Notifications.NtfyTopic != "" {
		clone.Notifications.NtfyTopic = "<redacted>"
	}
	return clone
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the configuration as TOML.
func Encode(cfg Config) (string, error) {
	var b strings.Builder
	encoder := toml.NewEncoder(&b)
	if err := encoder.Encode(cfg); err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return b.String(), nil
}
