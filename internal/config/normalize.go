package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// applyEnv overlays environment variables onto values read from the file.
// The variable names match the container image the daemon replaces so existing
// deployments keep working unchanged.
func (c *Config) applyEnv() error {
	stringVars := []struct {
		name   string
		target *string
	}{
		{"PAPERLESS_API_URL", &c.Paperless.URL},
		{"PAPERLESS_AUTH", &c.Paperless.Auth},
		{"TAG_NAME", &c.Paperless.TagName},
		{"DOCLING_BINARY", &c.Docling.Binary},
		{"DOCLING_PIPELINE", &c.Docling.Pipeline},
		{"DOCLING_MODEL", &c.Docling.Model},
		{"DOCLING_DEVICE", &c.Docling.Device},
		{"DOCLING_PDF_BACKEND", &c.Docling.PDFBackend},
		{"DOCLING_OCR_ENGINE", &c.Docling.OCREngine},
		{"DOCLING_EXTRA_ARGS", &c.Docling.ExtraArgs},
		{"DOCLING_SCRATCH_DIR", &c.Docling.ScratchDir},
		{"PAPERLING_STATE_DIR", &c.Paths.StateDir},
		{"PAPERLING_LOG_DIR", &c.Paths.LogDir},
		{"PAPERLING_API_TOKEN", &c.Paths.APIToken},
		{"PAPERLING_LOG_LEVEL", &c.Logging.Level},
		{"PAPERLING_LOG_FORMAT", &c.Logging.Format},
		{"NTFY_TOPIC", &c.Notifications.NtfyTopic},
	}
	for _, v := range stringVars {
		if value, ok := os.LookupEnv(v.name); ok {
			*v.target = value
		}
	}

	intVars := []struct {
		name   string
		target *int
	}{
		{"CHECK_INTERVAL", &c.Workflow.PollIntervalMS},
		{"DOCLING_THREADS", &c.Docling.Threads},
		{"DOCLING_TIMEOUT", &c.Docling.TimeoutSeconds},
		{"PAPERLING_MAX_ATTEMPTS", &c.Workflow.MaxAttempts},
		{"PAPERLING_RETRY_BACKOFF", &c.Workflow.RetryBackoffSeconds},
	}
	for _, v := range intVars {
		value, ok := os.LookupEnv(v.name)
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%s: expected integer, got %q", v.name, value)
		}
		*v.target = parsed
	}

	if value, ok := os.LookupEnv("PORT"); ok && strings.TrimSpace(value) != "" {
		port := strings.TrimSpace(value)
		if _, err := strconv.Atoi(port); err != nil {
			return fmt.Errorf("PORT: expected integer, got %q", value)
		}
		c.Paths.APIBind = ":" + port
	}
	return nil
}

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizePaperless()
	if err := c.normalizeDocling(); err != nil {
		return err
	}
	c.normalizeWorkflow()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizePaperless() {
	c.Paperless.URL = strings.TrimRight(strings.TrimSpace(c.Paperless.URL), "/")
	c.Paperless.Auth = strings.TrimSpace(c.Paperless.Auth)
	if strings.TrimSpace(c.Paperless.TagName) == "" {
		c.Paperless.TagName = defaultTagName
	}
	if c.Paperless.RequestTimeout <= 0 {
		c.Paperless.RequestTimeout = defaultPaperlessRequestTimeout
	}
	if c.Paperless.RequestsPerSecond <= 0 {
		c.Paperless.RequestsPerSecond = defaultPaperlessRequestsPerSec
	}
}

func (c *Config) normalizeDocling() error {
	defaults := []struct {
		target   *string
		fallback string
	}{
		{&c.Docling.Binary, defaultDoclingBinary},
		{&c.Docling.Pipeline, defaultDoclingPipeline},
		{&c.Docling.Model, defaultDoclingModel},
		{&c.Docling.Device, defaultDoclingDevice},
		{&c.Docling.PDFBackend, defaultDoclingPDFBackend},
		{&c.Docling.OCREngine, defaultDoclingOCREngine},
		{&c.Docling.ScratchDir, defaultDoclingScratchDir},
	}
	for _, d := range defaults {
		*d.target = strings.TrimSpace(*d.target)
		if *d.target == "" {
			*d.target = d.fallback
		}
	}
	c.Docling.ExtraArgs = strings.TrimSpace(c.Docling.ExtraArgs)
	if c.Docling.Threads == 0 {
		c.Docling.Threads = defaultDoclingThreads
	}
	var err error
	if c.Docling.ScratchDir, err = expandPath(c.Docling.ScratchDir); err != nil {
		return fmt.Errorf("docling.scratch_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.PollIntervalMS == 0 {
		c.Workflow.PollIntervalMS = defaultWorkflowPollIntervalMS
	}
	if c.Workflow.MaxBackoffSeconds == 0 {
		c.Workflow.MaxBackoffSeconds = defaultWorkflowMaxBackoffSeconds
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNtfyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
