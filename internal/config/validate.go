package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaperless(); err != nil {
		return err
	}
	if err := c.validateDocling(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return c.validateNotifications()
}

func (c *Config) validatePaperless() error {
	if c.Paperless.URL == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/paperling/config.toml"
		}
		return fmt.Errorf("paperless.url is required. Set PAPERLESS_API_URL env var or edit %s (create with 'paperling config init')", defaultPath)
	}
	parsed, err := url.Parse(c.Paperless.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("paperless.url %q must be an absolute http(s) URL", c.Paperless.URL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("paperless.url %q must use http or https", c.Paperless.URL)
	}
	if c.Paperless.Auth == "" {
		return errors.New("paperless.auth is required (set PAPERLESS_AUTH, e.g. \"Token <key>\")")
	}
	return nil
}

func (c *Config) validateDocling() error {
	if c.Docling.Threads < 0 {
		return errors.New("docling.threads must be positive")
	}
	if c.Docling.TimeoutSeconds < 0 {
		return errors.New("docling.timeout_seconds must be >= 0")
	}
	if _, err := parseExtraArgs(c.Docling.ExtraArgs); err != nil {
		return fmt.Errorf("docling.extra_args %q: %w", c.Docling.ExtraArgs, err)
	}
	if strings.ContainsAny(c.Docling.Binary, "\n\r") {
		return errors.New("docling.binary must be a single command name or path")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.PollIntervalMS < 0 {
		return errors.New("workflow.poll_interval_ms must be positive")
	}
	if c.Workflow.MaxAttempts < 0 {
		return errors.New("workflow.max_attempts must be >= 0 (0 retries forever)")
	}
	if c.Workflow.RetryBackoffSeconds < 0 {
		return errors.New("workflow.retry_backoff_seconds must be >= 0")
	}
	if c.Workflow.MaxBackoffSeconds < 0 {
		return errors.New("workflow.max_backoff_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.NtfyTopic == "" {
		return nil
	}
	parsed, err := url.Parse(c.Notifications.NtfyTopic)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("notifications.ntfy_topic %q must be an http(s) topic URL", c.Notifications.NtfyTopic)
	}
	return nil
}
