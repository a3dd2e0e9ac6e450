package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"paperling/internal/api"
	"paperling/internal/attempts"
	"paperling/internal/queue"
	"paperling/internal/testsupport"
	"paperling/internal/workflow"
)

type workflowStub struct {
	mu       sync.Mutex
	summary  workflow.StatusSummary
	startErr error
	started  int
	stopped  int
}

func (w *workflowStub) Start(context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.startErr != nil {
		return w.startErr
	}
	w.started++
	return nil
}

func (w *workflowStub) Stop() {
	w.mu.Lock()
	w.stopped++
	w.mu.Unlock()
}

func (w *workflowStub) Status() workflow.StatusSummary {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.summary
}

type ledgerStub struct {
	records []attempts.Record
	err     error
}

func (l ledgerStub) List(context.Context) ([]attempts.Record, error) {
	return l.records, l.err
}

func newTestServer(t *testing.T, token string, wf *workflowStub, ledger AttemptLister) http.Handler {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIToken = token
	d, err := New(cfg, wf, ledger, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	d.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return d.api.routes(token)
}

func TestAPIServerHandleStatus(t *testing.T) {
	tagID := int64(7)
	wf := &workflowStub{summary: workflow.StatusSummary{
		Running:     true,
		State:       workflow.StateProcessing,
		TagName:     "docling",
		TagID:       &tagID,
		QueueLength: 1,
		InFlight:    &queue.Entry{ID: 1, Title: "Invoice"},
		Pending:     []queue.Entry{{ID: 2, Title: "Receipt"}},
	}}
	handler := newTestServer(t, "", wf, nil)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
	var resp api.StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.QueueLength != 1 || !resp.IsProcessing {
		t.Fatalf("unexpected status: %+v", resp)
	}
	if resp.InFlight == nil || resp.InFlight.ID != 1 {
		t.Fatalf("expected in-flight document 1, got %+v", resp.InFlight)
	}
	if resp.Configuration.TagID == nil || *resp.Configuration.TagID != 7 {
		t.Fatalf("expected tag id 7, got %+v", resp.Configuration.TagID)
	}
	if len(resp.ProcessingQueue) != 1 || resp.ProcessingQueue[0].Title != "Receipt" {
		t.Fatalf("unexpected processing queue: %+v", resp.ProcessingQueue)
	}
}

func TestAPIServerHandleQueue(t *testing.T) {
	wf := &workflowStub{summary: workflow.StatusSummary{
		Pending: []queue.Entry{{ID: 3, Title: "A"}, {ID: 4, Title: "B"}},
	}}
	handler := newTestServer(t, "", wf, nil)

	req := httptest.NewRequest(http.MethodGet, "/queue", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var resp api.QueueResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Queue) != 2 || resp.Queue[0].ID != 3 || resp.Queue[1].ID != 4 {
		t.Fatalf("unexpected queue order: %+v", resp.Queue)
	}
}

func TestAPIServerEmptyQueueEncodesArray(t *testing.T) {
	handler := newTestServer(t, "", &workflowStub{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/queue", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if got := w.Body.String(); got != "{\"queue\":[]}\n" {
		t.Fatalf("unexpected body %q", got)
	}
}

func TestAPIServerHandleAttempts(t *testing.T) {
	ledger := ledgerStub{records: []attempts.Record{
		{DocumentID: 9, Title: "Scan", Failures: 2, LastError: "boom", LastFailedAt: time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)},
	}}
	handler := newTestServer(t, "", &workflowStub{}, ledger)

	req := httptest.NewRequest(http.MethodGet, "/attempts", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var resp api.AttemptsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Attempts) != 1 || resp.Attempts[0].DocumentID != 9 || resp.Attempts[0].Verdict != "eligible" {
		t.Fatalf("unexpected attempts: %+v", resp.Attempts)
	}
}

func TestAPIServerAttemptsLedgerError(t *testing.T) {
	handler := newTestServer(t, "", &workflowStub{}, ledgerStub{err: errors.New("database is locked")})

	req := httptest.NewRequest(http.MethodGet, "/attempts", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestAPIServerRejectsNonGet(t *testing.T) {
	handler := newTestServer(t, "", &workflowStub{}, nil)

	for _, path := range []string{"/status", "/queue", "/attempts"} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s: expected 405, got %d", path, w.Code)
		}
		var resp api.ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Error == "" {
			t.Fatalf("%s: expected JSON error body, got %q", path, w.Body.String())
		}
	}
}

func TestAPIServerUnknownPath(t *testing.T) {
	handler := newTestServer(t, "", &workflowStub{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	handler := newTestServer(t, "secret", &workflowStub{}, nil)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing", header: "", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Token secret", want: http.StatusUnauthorized},
		{name: "wrong token", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "valid", header: "Bearer secret", want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/status", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestAuthMiddlewareDisabledWithoutToken(t *testing.T) {
	called := false
	h := authMiddleware("", func(http.ResponseWriter, *http.Request) { called = true })
	h(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/status", nil))
	if !called {
		t.Fatal("expected handler to run when no token configured")
	}
}
