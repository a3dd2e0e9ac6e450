package docling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"paperling/internal/config"
	"paperling/internal/logging"
	"paperling/internal/services"
)

const stderrTailLines = 20

// Options is the fixed argument bundle applied to every conversion.
type Options struct {
	Binary     string
	Pipeline   string
	Model      string
	Device     string
	Threads    int
	PDFBackend string
	OCREngine  string
	ExtraArgs  []string
	ScratchDir string
	// Auth is forwarded to docling as the Authorization header for the download.
	Auth    string
	Timeout time.Duration
}

// OptionsFromConfig builds Options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	if cfg == nil {
		return Options{}
	}
	return Options{
		Binary:     cfg.Docling.Binary,
		Pipeline:   cfg.Docling.Pipeline,
		Model:      cfg.Docling.Model,
		Device:     cfg.Docling.Device,
		Threads:    cfg.Docling.Threads,
		PDFBackend: cfg.Docling.PDFBackend,
		OCREngine:  cfg.Docling.OCREngine,
		ExtraArgs:  cfg.DoclingExtraArgs(),
		ScratchDir: cfg.Docling.ScratchDir,
		Auth:       cfg.Paperless.Auth,
		Timeout:    time.Duration(cfg.Docling.TimeoutSeconds) * time.Second,
	}
}

// Request identifies one document to convert.
type Request struct {
	DocumentID int64
	SourceURL  string
}

// Converter turns a source document into markdown text.
type Converter interface {
	Convert(ctx context.Context, req Request) (string, error)
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithLogger attaches a logger; tool output is streamed at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithIDGenerator overrides scratch directory naming (primarily for tests).
func WithIDGenerator(next func() string) Option {
	return func(c *Client) {
		if next != nil {
			c.newID = next
		}
	}
}

// Client wraps docling CLI interactions.
type Client struct {
	opts   Options
	exec   Executor
	logger *slog.Logger
	newID  func() string
}

// New constructs a docling client.
func New(opts Options, options ...Option) (*Client, error) {
	opts.Binary = strings.TrimSpace(opts.Binary)
	if opts.Binary == "" {
		return nil, errors.New("docling binary required")
	}
	opts.ScratchDir = strings.TrimSpace(opts.ScratchDir)
	if opts.ScratchDir == "" {
		return nil, errors.New("docling scratch directory required")
	}
	client := &Client{
		opts:   opts,
		exec:   commandExecutor{},
		logger: logging.NewNop(),
		newID:  uuid.NewString,
	}
	for _, opt := range options {
		opt(client)
	}
	client.logger = logging.NewComponentLogger(client.logger, "docling")
	return client, nil
}

// Args returns the argument vector for a run writing into outputDir.
func (c *Client) Args(outputDir, sourceURL string) ([]string, error) {
	headers, err := json.Marshal(map[string]string{"Authorization": c.opts.Auth})
	if err != nil {
		return nil, fmt.Errorf("encode docling headers: %w", err)
	}
	args := []string{
		"--pipeline", c.opts.Pipeline,
		"--vlm-model", c.opts.Model,
		"--device", c.opts.Device,
		"--num-threads", strconv.Itoa(c.opts.Threads),
		"--output", outputDir,
		"--ocr-engine", c.opts.OCREngine,
		"--pdf-backend", c.opts.PDFBackend,
		"--headers", string(headers),
	}
	args = append(args, c.opts.ExtraArgs...)
	args = append(args, sourceURL)
	return args, nil
}

// Convert runs docling against req.SourceURL and returns the markdown it produced.
func (c *Client) Convert(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.SourceURL) == "" {
		return "", services.Wrap(services.ErrConversion, "docling", "prepare", "source url required", nil)
	}
	logger := logging.WithContext(ctx, c.logger)

	outputDir := filepath.Join(c.opts.ScratchDir, c.newID())
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrConversion, "docling", "prepare", "create scratch directory", err)
	}
	defer c.cleanup(logger, outputDir)

	args, err := c.Args(outputDir, req.SourceURL)
	if err != nil {
		return "", services.Wrap(services.ErrConversion, "docling", "prepare", "build arguments", err)
	}

	runCtx := ctx
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	logger.Info("docling started",
		logging.String(logging.FieldEventType, "docling_started"),
		logging.String("output_dir", outputDir),
		logging.String("source_url", req.SourceURL),
	)

	tail := newLineTail(stderrTailLines)
	start := time.Now()
	runErr := c.exec.Run(runCtx, c.opts.Binary, args,
		func(line string) {
			logger.Debug("docling stdout", logging.String("line", line))
		},
		func(line string) {
			tail.add(line)
			logger.Debug("docling stderr", logging.String("line", line))
		},
	)
	elapsed := time.Since(start)

	if runErr != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			runErr = services.Wrap(services.ErrTimeout, "docling", "run", fmt.Sprintf("exceeded %s", c.opts.Timeout), runErr)
		}
		msg := "docling exited with error"
		if stderr := tail.String(); stderr != "" {
			msg = msg + ": " + stderr
		}
		logger.Debug("docling failed", logging.Duration("docling_duration", elapsed))
		return "", services.Wrap(services.ErrConversion, "docling", "run", msg, runErr)
	}

	logger.Info("docling finished",
		logging.String(logging.FieldEventType, "docling_finished"),
		logging.Duration("docling_duration", elapsed),
	)

	content, err := readMarkdown(outputDir)
	if err != nil {
		return "", err
	}
	return content, nil
}

func readMarkdown(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", services.Wrap(services.ErrConversion, "docling", "collect", "read output directory", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return "", services.Wrap(services.ErrConversion, "docling", "collect", "read markdown output", err)
		}
		return string(data), nil
	}
	return "", services.Wrap(services.ErrConversion, "docling", "collect", "no markdown file generated", nil)
}

func (c *Client) cleanup(logger *slog.Logger, dir string) {
	if err := os.RemoveAll(dir); err != nil {
		logging.WarnWithContext(logger, "scratch cleanup failed", "scratch_cleanup_failed",
			logging.String("output_dir", dir),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the directory manually"),
			logging.String(logging.FieldImpact, "scratch space is not reclaimed"),
		)
	}
}

// lineTail keeps the most recent lines written by the tool.
type lineTail struct {
	mu    sync.Mutex
	max   int
	lines []string
}

func newLineTail(max int) *lineTail {
	return &lineTail{max: max}
}

func (t *lineTail) add(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
	if len(t.lines) > t.max {
		t.lines = t.lines[len(t.lines)-t.max:]
	}
}

func (t *lineTail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.lines, " | ")
}
