package paperless

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"paperling/internal/config"
)

const (
	acceptHeader       = "application/json; version=2"
	defaultHTTPTimeout = 30 * time.Second
	defaultRate        = 5
	maxErrorBody       = 4096
	maxPages           = 10000
)

// HTTPDoer describes the HTTP client used by the Paperless client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config describes the Paperless client configuration.
type Config struct {
	// BaseURL is the API root, e.g. http://paperless:8000/api.
	BaseURL string
	// Auth is sent verbatim as the Authorization header ("Token ...", "Basic ...").
	Auth              string
	HTTPClient        HTTPDoer
	Timeout           time.Duration
	RequestsPerSecond float64
}

// Client talks to the Paperless-ngx REST API.
type Client struct {
	baseURL string
	auth    string
	http    HTTPDoer
	limiter *rate.Limiter
}

// Tag is a Paperless label.
type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Document is the subset of a Paperless document paperling reads.
type Document struct {
	ID               int64   `json:"id"`
	Title            string  `json:"title"`
	Content          string  `json:"content"`
	Tags             []int64 `json:"tags"`
	MimeType         string  `json:"mime_type,omitempty"`
	OriginalFileName string  `json:"original_file_name,omitempty"`
}

// HasTag reports whether the document carries tagID.
func (d Document) HasTag(tagID int64) bool {
	for _, id := range d.Tags {
		if id == tagID {
			return true
		}
	}
	return false
}

// DocumentPatch is a partial document update. Nil fields are not sent; a
// non-nil empty Tags slice clears all tags.
type DocumentPatch struct {
	Content  *string  `json:"content,omitempty"`
	MimeType string   `json:"mime_type,omitempty"`
	Tags     *[]int64 `json:"tags,omitempty"`
}

// StatusError reports a non-2xx response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("paperless: %s %s returned %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("paperless: %s %s returned %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// IsNotFound reports whether err is a 404 from Paperless.
func IsNotFound(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound
}

// New creates a Client from the supplied configuration.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("paperless: base url is required")
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("paperless: parse base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("paperless: unsupported url scheme %q", parsed.Scheme)
	}
	auth := strings.TrimSpace(cfg.Auth)
	if auth == "" {
		return nil, errors.New("paperless: auth is required")
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultHTTPTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	rps := cfg.RequestsPerSecond
	if rps == 0 {
		rps = defaultRate
	}
	limit := rate.Limit(rps)
	burst := int(rps)
	if rps < 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &Client{
		baseURL: base,
		auth:    auth,
		http:    client,
		limiter: rate.NewLimiter(limit, burst),
	}, nil
}

// NewFromConfig creates a Client from the paperless configuration section.
func NewFromConfig(cfg *config.Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("paperless: config is required")
	}
	return New(Config{
		BaseURL:           cfg.Paperless.URL,
		Auth:              cfg.Paperless.Auth,
		Timeout:           time.Duration(cfg.Paperless.RequestTimeout) * time.Second,
		RequestsPerSecond: cfg.Paperless.RequestsPerSecond,
	})
}

// BaseURL returns the normalized API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListTags returns every tag, following pagination.
func (c *Client) ListTags(ctx context.Context) ([]Tag, error) {
	return listAll[Tag](ctx, c, c.baseURL+"/tags/")
}

// ListDocumentsWithTag returns every document carrying tagID, following pagination.
func (c *Client) ListDocumentsWithTag(ctx context.Context, tagID int64) ([]Document, error) {
	query := url.Values{}
	query.Set("tags__id__all", strconv.FormatInt(tagID, 10))
	return listAll[Document](ctx, c, c.baseURL+"/documents/?"+query.Encode())
}

// GetDocument fetches a single document.
func (c *Client) GetDocument(ctx context.Context, id int64) (Document, error) {
	var doc Document
	if err := c.doJSON(ctx, http.MethodGet, c.documentURL(id), nil, &doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// PatchDocument applies a partial update to the document.
func (c *Client) PatchDocument(ctx context.Context, id int64, patch DocumentPatch) error {
	payload, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("paperless: encode document patch: %w", err)
	}
	return c.doJSON(ctx, http.MethodPatch, c.documentURL(id), payload, nil)
}

// DownloadURL is the URL docling fetches the original file from.
func (c *Client) DownloadURL(id int64) string {
	return fmt.Sprintf("%s/documents/%d/download/", c.baseURL, id)
}

// Ping verifies the API is reachable and the credential is accepted.
func (c *Client) Ping(ctx context.Context) error {
	var page pageResponse[Tag]
	return c.doJSON(ctx, http.MethodGet, c.baseURL+"/tags/?page_size=1", nil, &page)
}

func (c *Client) documentURL(id int64) string {
	return fmt.Sprintf("%s/documents/%d/", c.baseURL, id)
}

type pageResponse[T any] struct {
	Count   int     `json:"count"`
	Next    *string `json:"next"`
	Results []T     `json:"results"`
}

func listAll[T any](ctx context.Context, c *Client, first string) ([]T, error) {
	var all []T
	seen := map[string]struct{}{}
	next := first
	for pages := 0; next != ""; pages++ {
		if pages >= maxPages {
			return nil, fmt.Errorf("paperless: pagination exceeded %d pages", maxPages)
		}
		if _, ok := seen[next]; ok {
			return nil, fmt.Errorf("paperless: pagination loop at %s", next)
		}
		seen[next] = struct{}{}

		var page pageResponse[T]
		if err := c.doJSON(ctx, http.MethodGet, next, nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Results...)
		next = ""
		if page.Next != nil {
			next = strings.TrimSpace(*page.Next)
		}
	}
	return all, nil
}

func (c *Client) doJSON(ctx context.Context, method, target string, body []byte, out any) error {
	if c == nil {
		return errors.New("paperless: client is nil")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("paperless: rate limit wait: %w", err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("paperless: build %s request: %w", method, err)
	}
	req.Header.Set("Authorization", c.auth)
	req.Header.Set("Accept", acceptHeader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("paperless: %s %s: %w", method, pathOf(target), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Method:     method,
			Path:       pathOf(target),
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("paperless: decode %s %s response: %w", method, pathOf(target), err)
	}
	return nil
}

func pathOf(target string) string {
	parsed, err := url.Parse(target)
	if err != nil {
		return target
	}
	return parsed.Path
}
