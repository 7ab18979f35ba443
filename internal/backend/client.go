// Package backend holds the HTTP clients for the hosted backend platform:
// table-style REST reads/writes and serverless function invocations. All
// persistence and authorization live on the other side of these calls.
package backend

import (
	"bytes"
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

const defaultTimeout = 15 * time.Second

// Options configures a Client.
type Options struct {
	BaseURL    string
	AnonKey    string
	HTTPClient *http.Client
}

// Client talks to the backend's table REST endpoints. Rows are addressed by
// table name with simple equality filters; the caller's bearer token scopes
// what the backend lets it see.
type Client struct {
	baseURL string
	anonKey string
	client  *http.Client
}

// Filters maps column names to exact-match values.
type Filters map[string]string

// APIError carries a non-2xx backend response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend status %d: %s", e.Status, e.Message)
}

// StatusOf extracts the HTTP status from an error chain, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

func New(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		return nil, errors.New("backend base url is required")
	}
	if strings.TrimSpace(opts.AnonKey) == "" {
		return nil, errors.New("backend anon key is required")
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{baseURL: baseURL, anonKey: strings.TrimSpace(opts.AnonKey), client: client}, nil
}

// Select reads rows from a table into dest (a pointer to a slice). columns
// may be "" for all columns.
func (c *Client) Select(ctx context.Context, token, table, columns string, filters Filters, dest any) error {
	q := url.Values{}
	if columns != "" {
		q.Set("select", columns)
	}
	for col, val := range filters {
		q.Set(col, "eq."+val)
	}
	endpoint := fmt.Sprintf("%s/rest/v1/%s?%s", c.baseURL, url.PathEscape(table), q.Encode())
	return c.do(ctx, http.MethodGet, endpoint, token, nil, dest, "")
}

// Insert writes one row. When dest is non-nil the created row is decoded back
// into it.
func (c *Client) Insert(ctx context.Context, token, table string, payload, dest any) error {
	endpoint := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, url.PathEscape(table))
	prefer := "return=minimal"
	if dest != nil {
		prefer = "return=representation"
	}
	return c.do(ctx, http.MethodPost, endpoint, token, payload, dest, prefer)
}

// Update patches the rows matched by filters.
func (c *Client) Update(ctx context.Context, token, table string, filters Filters, payload any) error {
	q := url.Values{}
	for col, val := range filters {
		q.Set(col, "eq."+val)
	}
	endpoint := fmt.Sprintf("%s/rest/v1/%s?%s", c.baseURL, url.PathEscape(table), q.Encode())
	return c.do(ctx, http.MethodPatch, endpoint, token, payload, nil, "return=minimal")
}

// Upsert inserts rows, merging on conflict with the table's primary key.
func (c *Client) Upsert(ctx context.Context, token, table string, payload any) error {
	endpoint := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, url.PathEscape(table))
	return c.do(ctx, http.MethodPost, endpoint, token, payload, nil, "resolution=merge-duplicates,return=minimal")
}

func (c *Client) do(ctx context.Context, method, endpoint, token string, payload, dest any, prefer string) error {
	var body io.Reader
	if payload != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(payload); err != nil {
			return fmt.Errorf("backend: encode payload: %w", err)
		}
		body = &buf
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("backend: build request: %w", err)
	}
	c.setHeaders(req, token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("backend: %s %s: %w", method, endpoint, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}
	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("backend: decode response: %w", err)
	}
	return nil
}

// setHeaders applies the anon key plus the caller's bearer token; without a
// caller token the anon key doubles as the bearer, as the backend expects.
func (c *Client) setHeaders(req *http.Request, token string) {
	req.Header.Set("apikey", c.anonKey)
	if token == "" {
		token = c.anonKey
	}
	req.Header.Set("Authorization", "Bearer "+token)
}

func readErrorMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(raw) == 0 {
		return "no response body"
	}
	var payload struct {
		Message string `json:"message"`
		Msg     string `json:"msg"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		for _, m := range []string{payload.Message, payload.Msg, payload.Error} {
			if m != "" {
				return m
			}
		}
	}
	return strings.TrimSpace(string(raw))
}
