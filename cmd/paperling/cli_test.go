package main

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"paperling/internal/api"
	"paperling/internal/attempts"
	"paperling/internal/logs"
	"paperling/internal/services/docling"
	"paperling/internal/services/paperless"
)

func TestStatusCommandRendersWorkflow(t *testing.T) {
	env := setupCLITestEnv(t)
	env.start(t)
	waitFor(t, 5*time.Second, func() bool { return env.manager.Status().TagID != nil })

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== Workflow ==")
	requireContains(t, out, "Queue length:")
	requireContains(t, out, "docling (id 7)")
	requireContains(t, out, "Pipeline:")
	requireContains(t, out, "empty")
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("output to a buffer must not be colourised: %q", out)
	}
}

func TestStatusCommandJSON(t *testing.T) {
	env := setupCLITestEnv(t)
	env.start(t)
	waitFor(t, 5*time.Second, func() bool { return env.manager.Status().TagID != nil })

	out, _, err := runCLI(t, []string{"status", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decode status json: %v\n%s", err, out)
	}
	for _, key := range []string{"queueLength", "isProcessing", "inFlight", "configuration", "processingQueue", "workflow"} {
		if _, ok := payload[key]; !ok {
			t.Fatalf("missing %q in %s", key, out)
		}
	}
	cfg := payload["configuration"].(map[string]any)
	if cfg["tagId"] != float64(7) {
		t.Fatalf("expected tagId 7, got %v", cfg["tagId"])
	}
}

func TestQueueCommandListsPendingDocuments(t *testing.T) {
	env := setupCLITestEnv(t)
	env.fake.AddDocument(paperless.Document{ID: 1, Title: "Invoice", Tags: []int64{7}})
	env.fake.AddDocument(paperless.Document{ID: 2, Title: "Receipt", Tags: []int64{7}})

	release := make(chan struct{})
	env.converter.SetHook(func(ctx context.Context, req docling.Request) {
		select {
		case <-release:
		case <-ctx.Done():
		}
	})
	t.Cleanup(func() { close(release) })

	env.start(t)
	waitFor(t, 5*time.Second, func() bool {
		s := env.manager.Status()
		return s.InFlight != nil && s.QueueLength == 1
	})

	out, _, err := runCLI(t, []string{"queue"}, env.configPath)
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	requireContains(t, out, "Receipt")
	if strings.Contains(out, "Invoice") {
		t.Fatalf("in-flight document must not be listed as pending: %q", out)
	}

	out, _, err = runCLI(t, []string{"queue", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("queue --json: %v", err)
	}
	var resp api.QueueResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode queue json: %v", err)
	}
	if len(resp.Queue) != 1 || resp.Queue[0].ID != 2 {
		t.Fatalf("unexpected queue payload: %+v", resp)
	}

	out, _, err = runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "#1 Invoice")
	requireContains(t, out, "Processing:")
}

func TestStatusCommandDaemonDown(t *testing.T) {
	env := setupCLITestEnv(t)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	env.cfg.Paths.APIBind = listener.Addr().String()
	_ = listener.Close()
	env.writeConfig(t)

	_, _, err = runCLI(t, []string{"status"}, env.configPath)
	if err == nil {
		t.Fatal("expected error when daemon is not running")
	}
	requireContains(t, err.Error(), "paperling daemon")
}

func TestAttemptsListAndReset(t *testing.T) {
	env := setupCLITestEnv(t)
	env.writeConfig(t)

	ctx := context.Background()
	for _, f := range []attempts.Failure{
		{DocumentID: 5, Title: "Lease agreement", Message: "docling exited with status 1", Kind: "conversion", At: time.Now()},
		{DocumentID: 6, Title: "Tax return", Message: "no markdown file generated", Kind: "conversion", At: time.Now()},
	} {
		if _, err := env.ledger.RecordFailure(ctx, f); err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
	}

	out, _, err := runCLI(t, []string{"attempts", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("attempts list: %v", err)
	}
	requireContains(t, out, "Lease agreement")
	requireContains(t, out, "Tax return")

	out, _, err = runCLI(t, []string{"attempts", "list", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("attempts list --json: %v", err)
	}
	var resp api.AttemptsResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode attempts json: %v", err)
	}
	if len(resp.Attempts) != 2 {
		t.Fatalf("expected 2 records, got %+v", resp.Attempts)
	}

	if _, _, err := runCLI(t, []string{"attempts", "reset"}, env.configPath); err == nil {
		t.Fatal("reset without ids or --all should fail")
	}
	if _, _, err := runCLI(t, []string{"attempts", "reset", "abc"}, env.configPath); err == nil {
		t.Fatal("reset with invalid id should fail")
	}

	out, _, err = runCLI(t, []string{"attempts", "reset", "5"}, env.configPath)
	if err != nil {
		t.Fatalf("attempts reset 5: %v", err)
	}
	requireContains(t, out, "Reset 1 record")
	if _, ok, _ := env.ledger.Get(ctx, 5); ok {
		t.Fatal("record 5 should be gone")
	}

	out, _, err = runCLI(t, []string{"attempts", "reset", "--all"}, env.configPath)
	if err != nil {
		t.Fatalf("attempts reset --all: %v", err)
	}
	requireContains(t, out, "Reset 1 record")

	out, _, err = runCLI(t, []string{"attempts", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("attempts list: %v", err)
	}
	requireContains(t, out, "No recorded failures")
}

func TestCheckCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	env.writeConfig(t)

	out, _, err := runCLI(t, []string{"check"}, env.configPath)
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	requireContains(t, out, "== Preflight ==")
	requireContains(t, out, "resolves to id 7")

	env.fake.SetDown(true)
	out, _, err = runCLI(t, []string{"check"}, env.configPath)
	if err == nil {
		t.Fatalf("expected check to fail while Paperless is down:\n%s", out)
	}
	requireContains(t, out, "[ERROR]")
}

func TestConfigInitShowValidate(t *testing.T) {
	env := setupCLITestEnv(t)
	env.writeConfig(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	out, _, err = runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "<redacted>")
	if strings.Contains(out, testAuth) {
		t.Fatalf("config show leaked the credential: %q", out)
	}

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected error when config already exists")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestParseDocumentIDs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    []int64
		wantErr bool
	}{
		{name: "single", args: []string{"5"}, want: []int64{5}},
		{name: "several", args: []string{"5", " 9 "}, want: []int64{5, 9}},
		{name: "not a number", args: []string{"x"}, wantErr: true},
		{name: "zero", args: []string{"0"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDocumentIDs(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v want %v", got, tt.want)
				}
			}
		})
	}
}

func TestRenderStatusUnresolvedTag(t *testing.T) {
	out := renderStatus(api.StatusResponse{
		Configuration: api.Configuration{TagName: "docling"},
		Workflow:      api.WorkflowStatus{State: "idle"},
	}, false)
	requireContains(t, out, "docling (unresolved)")
	requireContains(t, out, "never")
	requireContains(t, out, "unlimited")
	requireContains(t, out, "none")
}

func TestRenderStatusShowsExtraArgsVerbatim(t *testing.T) {
	out := renderStatus(api.StatusResponse{
		Configuration: api.Configuration{TagName: "docling", DoclingExtraArgs: `--ocr-lang "en de"`},
		Workflow:      api.WorkflowStatus{State: "idle"},
	}, false)
	requireContains(t, out, `--ocr-lang "en de"`)
}

func TestLogsCommandShowsTrailingLines(t *testing.T) {
	env := setupCLITestEnv(t)
	env.writeConfig(t)

	out, _, err := runCLI(t, []string{"logs"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "No log entries available")

	path := logs.CurrentPath(env.cfg.Paths.LogDir)
	if err := os.WriteFile(path, []byte("first\nsecond\nthird\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	out, _, err = runCLI(t, []string{"logs", "-n", "2"}, env.configPath)
	if err != nil {
		t.Fatalf("logs -n 2: %v", err)
	}
	if out != "second\nthird\n" {
		t.Fatalf("unexpected logs output %q", out)
	}
}

func TestTestNotifyCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	env.writeConfig(t)

	out, _, err := runCLI(t, []string{"test-notify"}, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Notifications disabled")

	bodies := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		bodies <- string(body)
	}))
	t.Cleanup(server.Close)
	env.cfg.Notifications.NtfyTopic = server.URL
	env.writeConfig(t)

	out, _, err = runCLI(t, []string{"test-notify"}, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Test notification sent")
	requireContains(t, <-bodies, "Notification system test")
}
