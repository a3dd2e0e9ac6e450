package testsupport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"testing"

	"paperling/internal/services/paperless"
)

// Patch captures one PATCH request received by FakePaperless.
type Patch struct {
	DocumentID int64
	Body       map[string]any
}

// FakePaperless is an in-memory Paperless-ngx API served over httptest.
type FakePaperless struct {
	server *httptest.Server
	auth   string

	mu       sync.Mutex
	tags     []paperless.Tag
	docs     map[int64]*paperless.Document
	patches  []Patch
	lists    int
	down     bool
	failPath map[string]int
	pageSize int
}

// NewFakePaperless starts a fake server that requires auth on every request.
func NewFakePaperless(t testing.TB, auth string) *FakePaperless {
	t.Helper()
	fake := &FakePaperless{
		auth:     auth,
		docs:     make(map[int64]*paperless.Document),
		failPath: make(map[string]int),
		pageSize: 25,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/tags/{$}", fake.handleTags)
	mux.HandleFunc("GET /api/documents/{$}", fake.handleDocuments)
	mux.HandleFunc("GET /api/documents/{id}/{$}", fake.handleDocument)
	mux.HandleFunc("PATCH /api/documents/{id}/{$}", fake.handlePatch)
	fake.server = httptest.NewServer(fake.guard(mux))
	t.Cleanup(fake.server.Close)
	return fake
}

// URL returns the API root, including the /api suffix.
func (f *FakePaperless) URL() string {
	return f.server.URL + "/api"
}

// Client returns a paperless client bound to the fake server.
func (f *FakePaperless) Client(t testing.TB) *paperless.Client {
	t.Helper()
	client, err := paperless.New(paperless.Config{
		BaseURL:           f.URL(),
		Auth:              f.auth,
		HTTPClient:        f.server.Client(),
		RequestsPerSecond: -1,
	})
	if err != nil {
		t.Fatalf("paperless.New: %v", err)
	}
	return client
}

// AddTag registers a tag.
func (f *FakePaperless) AddTag(id int64, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tags = append(f.tags, paperless.Tag{ID: id, Name: name})
}

// AddDocument registers or replaces a document.
func (f *FakePaperless) AddDocument(doc paperless.Document) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copyDoc := doc
	copyDoc.Tags = append([]int64(nil), doc.Tags...)
	f.docs[doc.ID] = &copyDoc
}

// Document returns the current server-side state of a document.
func (f *FakePaperless) Document(id int64) (paperless.Document, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return paperless.Document{}, false
	}
	out := *doc
	out.Tags = append([]int64(nil), doc.Tags...)
	return out, true
}

// Patches returns every PATCH received so far.
func (f *FakePaperless) Patches() []Patch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Patch(nil), f.patches...)
}

// DocumentLists returns how many document listings were served.
func (f *FakePaperless) DocumentLists() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists
}

// SetDown makes every request fail with 503 while down is true.
func (f *FakePaperless) SetDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = down
}

// FailPath makes requests for path (e.g. "PATCH /api/documents/5/") return
// status. A zero status clears the failure.
func (f *FakePaperless) FailPath(methodAndPath string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if status == 0 {
		delete(f.failPath, methodAndPath)
		return
	}
	f.failPath[methodAndPath] = status
}

// SetPageSize changes the default page size so pagination can be exercised.
func (f *FakePaperless) SetPageSize(size int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if size > 0 {
		f.pageSize = size
	}
}

func (f *FakePaperless) guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != f.auth {
			writeFakeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid token."})
			return
		}
		f.mu.Lock()
		down := f.down
		status := f.failPath[r.Method+" "+r.URL.Path]
		f.mu.Unlock()
		if down {
			writeFakeJSON(w, http.StatusServiceUnavailable, map[string]string{"detail": "unavailable"})
			return
		}
		if status != 0 {
			writeFakeJSON(w, status, map[string]string{"detail": "injected failure"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *FakePaperless) handleTags(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	tags := append([]paperless.Tag(nil), f.tags...)
	f.mu.Unlock()
	f.writePage(w, r, tags)
}

func (f *FakePaperless) handleDocuments(w http.ResponseWriter, r *http.Request) {
	tagFilter := int64(0)
	if raw := r.URL.Query().Get("tags__id__all"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeFakeJSON(w, http.StatusBadRequest, map[string]string{"detail": "bad tag id"})
			return
		}
		tagFilter = parsed
	}

	f.mu.Lock()
	f.lists++
	ids := make([]int64, 0, len(f.docs))
	for id := range f.docs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	docs := make([]paperless.Document, 0, len(ids))
	for _, id := range ids {
		doc := *f.docs[id]
		if tagFilter != 0 && !doc.HasTag(tagFilter) {
			continue
		}
		doc.Tags = append([]int64(nil), doc.Tags...)
		docs = append(docs, doc)
	}
	f.mu.Unlock()
	f.writePage(w, r, docs)
}

func (f *FakePaperless) handleDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	doc, found := f.Document(id)
	if !found {
		writeFakeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}
	writeFakeJSON(w, http.StatusOK, doc)
}

func (f *FakePaperless) handlePatch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeFakeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		return
	}

	f.mu.Lock()
	doc, found := f.docs[id]
	if !found {
		f.mu.Unlock()
		writeFakeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}
	f.patches = append(f.patches, Patch{DocumentID: id, Body: body})
	if content, ok := body["content"].(string); ok {
		doc.Content = content
	}
	if mime, ok := body["mime_type"].(string); ok {
		doc.MimeType = mime
	}
	if rawTags, ok := body["tags"].([]any); ok {
		tags := make([]int64, 0, len(rawTags))
		for _, raw := range rawTags {
			if n, ok := raw.(float64); ok {
				tags = append(tags, int64(n))
			}
		}
		doc.Tags = tags
	}
	out := *doc
	f.mu.Unlock()
	writeFakeJSON(w, http.StatusOK, out)
}

func (f *FakePaperless) writePage(w http.ResponseWriter, r *http.Request, items any) {
	f.mu.Lock()
	size := f.pageSize
	f.mu.Unlock()
	if raw := r.URL.Query().Get("page_size"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			size = n
		}
	}
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			page = n
		}
	}

	var all []any
	data, _ := json.Marshal(items)
	_ = json.Unmarshal(data, &all)

	start := (page - 1) * size
	if start > len(all) {
		start = len(all)
	}
	end := start + size
	if end > len(all) {
		end = len(all)
	}
	var next *string
	if end < len(all) {
		query := r.URL.Query()
		query.Set("page", strconv.Itoa(page+1))
		link := (&url.URL{Scheme: "http", Host: r.Host, Path: r.URL.Path, RawQuery: query.Encode()}).String()
		next = &link
	}
	results := all[start:end]
	if results == nil {
		results = []any{}
	}
	writeFakeJSON(w, http.StatusOK, map[string]any{
		"count":   len(all),
		"next":    next,
		"results": results,
	})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeFakeJSON(w, http.StatusBadRequest, map[string]string{"detail": fmt.Sprintf("bad id %q", r.PathValue("id"))})
		return 0, false
	}
	return id, true
}

func writeFakeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
