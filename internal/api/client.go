package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrDaemonUnavailable is returned when the status API cannot be reached.
var ErrDaemonUnavailable = errors.New("paperling daemon is not reachable")

// Client reads the daemon's HTTP status surface.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// NewClient builds a client for baseURL. token is sent as a bearer credential when set.
func NewClient(baseURL, token string) (*Client, error) {
	raw := strings.TrimSpace(baseURL)
	if raw == "" {
		return nil, errors.New("api base url is empty")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""
	return &Client{
		base:  base,
		token: strings.TrimSpace(token),
		http:  &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// Status fetches GET /status.
func (c *Client) Status(ctx context.Context) (StatusResponse, error) {
	var payload StatusResponse
	err := c.get(ctx, "/status", &payload)
	return payload, err
}

// Queue fetches GET /queue.
func (c *Client) Queue(ctx context.Context) (QueueResponse, error) {
	var payload QueueResponse
	err := c.get(ctx, "/queue", &payload)
	return payload, err
}

// Attempts fetches GET /attempts.
func (c *Client) Attempts(ctx context.Context) (AttemptsResponse, error) {
	var payload AttemptsResponse
	err := c.get(ctx, "/attempts", &payload)
	return payload, err
}

// Raw fetches path and returns the response body undecoded.
func (c *Client) Raw(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.do(ctx, path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, path string) (*http.Response, error) {
	if c == nil {
		return nil, ErrDaemonUnavailable
	}
	endpoint := c.base.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w at %s: %w", ErrDaemonUnavailable, c.base.Host, err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		var apiErr ErrorResponse
		if decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("api %s returned status %d: %s", path, resp.StatusCode, apiErr.Error)
		}
		return nil, fmt.Errorf("api %s returned status %d", path, resp.StatusCode)
	}
	return resp, nil
}
