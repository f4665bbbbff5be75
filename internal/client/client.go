// Package client provides an HTTP client for the paydesk admin endpoints
// of a running server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"
)

// AdminClient talks to /api/admin/* on one server. The admin routes sit
// behind the session gate, so SignIn must succeed first unless the server
// runs in demo mode.
type AdminClient struct {
	base string
	http *http.Client
}

// New creates an AdminClient for the server at baseURL with a 5-second
// timeout and a cookie jar holding the session.
func New(baseURL string) *AdminClient {
	jar, _ := cookiejar.New(nil)
	return &AdminClient{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: 5 * time.Second, Jar: jar},
	}
}

// SignIn starts a session with the given credentials.
func (c *AdminClient) SignIn(ctx context.Context, email, password string) error {
	_, err := c.do(ctx, http.MethodPost, "/api/auth/signin", map[string]string{
		"email":    email,
		"password": password,
	}, http.StatusOK)
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	return nil
}

// Health checks GET /api/admin/health. Returns (ok, response body or error message).
func (c *AdminClient) Health(ctx context.Context) (bool, string) {
	body, err := c.do(ctx, http.MethodGet, "/api/admin/health", nil, http.StatusOK)
	if err != nil {
		return false, err.Error()
	}
	return true, strings.TrimSpace(string(body))
}

// WebhookStatus is the body of GET /api/admin/webhooks.
type WebhookStatus struct {
	URL        string            `json:"url"`
	Queued     []json.RawMessage `json:"queued"`
	Deliveries []struct {
		EventID    string    `json:"event_id"`
		EventType  string    `json:"event_type"`
		StatusCode int       `json:"status_code"`
		Error      string    `json:"error,omitempty"`
		Attempt    int       `json:"attempt"`
		Timestamp  time.Time `json:"timestamp"`
	} `json:"deliveries"`
}

// Webhooks fetches the webhook delivery state.
func (c *AdminClient) Webhooks(ctx context.Context) (WebhookStatus, error) {
	var st WebhookStatus
	body, err := c.do(ctx, http.MethodGet, "/api/admin/webhooks", nil, http.StatusOK)
	if err != nil {
		return st, err
	}
	if err := json.Unmarshal(body, &st); err != nil {
		return st, fmt.Errorf("decoding webhooks: %w", err)
	}
	return st, nil
}

// FlushWebhooks calls POST /api/admin/webhooks/flush.
func (c *AdminClient) FlushWebhooks(ctx context.Context) (string, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/admin/webhooks/flush", nil, http.StatusOK)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

// UpdateConfig calls PATCH /api/admin/config.
func (c *AdminClient) UpdateConfig(ctx context.Context, updates map[string]any) (string, error) {
	body, err := c.do(ctx, http.MethodPatch, "/api/admin/config", updates, http.StatusOK)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

func (c *AdminClient) do(ctx context.Context, method, path string, payload any, want int) ([]byte, error) {
	var r io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, r)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != want {
		return nil, fmt.Errorf("%s %s returned status %d: %s", method, path, resp.StatusCode, errorText(body))
	}
	return body, nil
}

// errorText extracts the "error" field of a JSON error body.
func errorText(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}
