package docling_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"paperling/internal/services"
	"paperling/internal/services/docling"
)

type stubExecutor struct {
	files  map[string]string
	stderr []string
	err    error
	wait   time.Duration
	binary string
	args   []string
	calls  int
}

func (s *stubExecutor) Run(ctx context.Context, binary string, args []string, onStdout, onStderr func(string)) error {
	s.calls++
	s.binary = binary
	s.args = append([]string(nil), args...)
	outputDir := argValue(args, "--output")
	for name, content := range s.files {
		if err := os.WriteFile(filepath.Join(outputDir, name), []byte(content), 0o644); err != nil {
			return err
		}
	}
	onStdout("converting")
	for _, line := range s.stderr {
		onStderr(line)
	}
	if s.wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.wait):
		}
	}
	return s.err
}

func argValue(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func testOptions(t *testing.T) docling.Options {
	t.Helper()
	return docling.Options{
		Binary:     "docling",
		Pipeline:   "vlm",
		Model:      "smoldocling",
		Device:     "cuda",
		Threads:    32,
		PDFBackend: "dlparse_v4",
		OCREngine:  "easyocr",
		ExtraArgs:  []string{"--to", "md"},
		ScratchDir: t.TempDir(),
		Auth:       `Token a"b`,
	}
}

func newClient(t *testing.T, opts docling.Options, exec docling.Executor) *docling.Client {
	t.Helper()
	client, err := docling.New(opts, docling.WithExecutor(exec), docling.WithIDGenerator(func() string { return "run-1" }))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return client
}

func TestConvertReturnsMarkdownAndRemovesScratch(t *testing.T) {
	opts := testOptions(t)
	exec := &stubExecutor{files: map[string]string{"notes.txt": "ignored", "doc.md": "# Invoice\n"}}
	client := newClient(t, opts, exec)

	content, err := client.Convert(context.Background(), docling.Request{DocumentID: 5, SourceURL: "http://paperless/api/documents/5/download/"})
	if err != nil {
		t.Fatalf("Convert returned error: %v", err)
	}
	if content != "# Invoice\n" {
		t.Fatalf("unexpected content %q", content)
	}
	if exec.binary != "docling" {
		t.Fatalf("unexpected binary %q", exec.binary)
	}
	if _, err := os.Stat(filepath.Join(opts.ScratchDir, "run-1")); !os.IsNotExist(err) {
		t.Fatalf("expected scratch directory removed, got %v", err)
	}
}

func TestArgsOrderAndHeaderEscaping(t *testing.T) {
	opts := testOptions(t)
	client := newClient(t, opts, &stubExecutor{})

	args, err := client.Args("/tmp/md/x", "http://paperless/api/documents/5/download/")
	if err != nil {
		t.Fatalf("Args returned error: %v", err)
	}
	want := []string{
		"--pipeline", "vlm",
		"--vlm-model", "smoldocling",
		"--device", "cuda",
		"--num-threads", "32",
		"--output", "/tmp/md/x",
		"--ocr-engine", "easyocr",
		"--pdf-backend", "dlparse_v4",
		"--headers", `{"Authorization":"Token a\"b"}`,
		"--to", "md",
		"http://paperless/api/documents/5/download/",
	}
	if strings.Join(args, "\x00") != strings.Join(want, "\x00") {
		t.Fatalf("unexpected args:\n got %q\nwant %q", args, want)
	}
	var headers map[string]string
	if err := json.Unmarshal([]byte(argValue(args, "--headers")), &headers); err != nil {
		t.Fatalf("headers are not valid JSON: %v", err)
	}
	if headers["Authorization"] != `Token a"b` {
		t.Fatalf("unexpected authorization header %q", headers["Authorization"])
	}
}

func TestConvertFailsWithoutMarkdown(t *testing.T) {
	opts := testOptions(t)
	client := newClient(t, opts, &stubExecutor{files: map[string]string{"doc.json": "{}"}})

	_, err := client.Convert(context.Background(), docling.Request{DocumentID: 5, SourceURL: "http://x/download/"})
	if !errors.Is(err, services.ErrConversion) {
		t.Fatalf("expected conversion error, got %v", err)
	}
	if !strings.Contains(err.Error(), "no markdown file generated") {
		t.Fatalf("unexpected error message: %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(opts.ScratchDir, "run-1")); !os.IsNotExist(statErr) {
		t.Fatalf("expected scratch directory removed, got %v", statErr)
	}
}

func TestConvertToolFailureCarriesStderrTail(t *testing.T) {
	opts := testOptions(t)
	exec := &stubExecutor{stderr: []string{"loading model", "CUDA out of memory"}, err: errors.New("exit status 1")}
	client := newClient(t, opts, exec)

	_, err := client.Convert(context.Background(), docling.Request{DocumentID: 5, SourceURL: "http://x/download/"})
	if !errors.Is(err, services.ErrConversion) {
		t.Fatalf("expected conversion error, got %v", err)
	}
	if !strings.Contains(err.Error(), "CUDA out of memory") {
		t.Fatalf("expected stderr tail in error, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(opts.ScratchDir, "run-1")); !os.IsNotExist(statErr) {
		t.Fatalf("expected scratch directory removed, got %v", statErr)
	}
}

func TestConvertTimeout(t *testing.T) {
	opts := testOptions(t)
	opts.Timeout = 20 * time.Millisecond
	client := newClient(t, opts, &stubExecutor{wait: 5 * time.Second})

	_, err := client.Convert(context.Background(), docling.Request{DocumentID: 5, SourceURL: "http://x/download/"})
	if !errors.Is(err, services.ErrConversion) || !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected conversion timeout, got %v", err)
	}
}

func TestConvertRequiresSourceURL(t *testing.T) {
	exec := &stubExecutor{}
	client := newClient(t, testOptions(t), exec)
	if _, err := client.Convert(context.Background(), docling.Request{DocumentID: 5}); err == nil {
		t.Fatal("expected error for missing source url")
	}
	if exec.calls != 0 {
		t.Fatalf("executor should not run, got %d calls", exec.calls)
	}
}

func TestNewRequiresBinaryAndScratch(t *testing.T) {
	if _, err := docling.New(docling.Options{ScratchDir: "/tmp"}); err == nil {
		t.Fatal("expected error for missing binary")
	}
	if _, err := docling.New(docling.Options{Binary: "docling"}); err == nil {
		t.Fatal("expected error for missing scratch dir")
	}
}
