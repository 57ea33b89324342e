// Package supabase implements the backend interfaces against a hosted
// Supabase project over its REST endpoints.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/thislinkplease/midterm-cross-platform/internal/backend"
)

// Client holds the project URL, the API key sent as `apikey` and the HTTP
// transport shared by the service clients.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.SugaredLogger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient builds a client for the project at baseURL. apiKey is the anon
// key for end-user clients or the service-role key for server code.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     zap.NewNop().Sugar(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL returns the project URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

type request struct {
	method string
	path   string // includes query string
	bearer string // defaults to the API key
	header http.Header
	body   io.Reader
	json   any
}

// do sends the request and decodes a 2xx JSON body into out. Non-2xx
// responses become *backend.APIError.
func (c *Client) do(ctx context.Context, r request, out any) error {
	body := r.body
	if r.json != nil {
		buf, err := json.Marshal(r.json)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, vs := range r.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if r.json != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	bearer := r.bearer
	if bearer == "" {
		bearer = c.apiKey
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+bearer)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", r.method, pathOnly(r.path), err)
	}
	defer resp.Body.Close()
	c.logger.Debugw("platform request",
		"method", r.method,
		"path", pathOnly(r.path),
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeError understands the error shapes of auth (`msg`,
// `error_description`), PostgREST (`message`, `code`), storage (`message`,
// `error`) and functions (`error`).
func decodeError(status int, data []byte) error {
	var body struct {
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		ErrorDescription string `json:"error_description"`
		Error            any    `json:"error"`
		Code             any    `json:"code"`
		ErrorCode        string `json:"error_code"`
	}
	apiErr := &backend.APIError{Status: status}
	if err := json.Unmarshal(data, &body); err != nil {
		apiErr.Message = strings.TrimSpace(string(data))
		return apiErr
	}
	errText, _ := body.Error.(string)
	for _, m := range []string{body.Msg, body.Message, body.ErrorDescription, errText} {
		if m != "" {
			apiErr.Message = m
			break
		}
	}
	switch code := body.Code.(type) {
	case string:
		apiErr.Code = code
	case float64:
		apiErr.Code = fmt.Sprintf("%d", int(code))
	}
	if apiErr.Code == "" {
		apiErr.Code = body.ErrorCode
	}
	return apiErr
}

func pathOnly(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		return p[:i]
	}
	return p
}
