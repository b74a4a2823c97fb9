package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrTooLarge is returned when a response body exceeds the configured cap.
var ErrTooLarge = errors.New("response body too large")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code   int
	Status string
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return e.Status
	}
	return e.Status + ": " + e.Body
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Client performs single-attempt HTTP calls with a per-call timeout and a
// response size cap. Nothing is retried.
type Client struct {
	client    *http.Client
	timeout   time.Duration
	maxBytes  int64
	userAgent string
}

// New builds a client. A zero timeout means 10s; a negative timeout leaves
// the deadline to the caller's context.
func New(timeout time.Duration, maxBytes int64, userAgent string) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	if maxBytes <= 0 {
		maxBytes = 20 << 20
	}
	return &Client{client: &http.Client{}, timeout: timeout, maxBytes: maxBytes, userAgent: userAgent}
}

// Timeout reports the per-call timeout.
func (c *Client) Timeout() time.Duration { return c.timeout }

// Do issues one request and reads the whole body. Non-2xx responses are
// returned together with a *StatusError so callers can still inspect the body.
func (c *Client) Do(ctx context.Context, method, url string, headers map[string]string, body io.Reader) (*Response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(b)) > c.maxBytes {
		return nil, ErrTooLarge
	}
	out := &Response{StatusCode: resp.StatusCode, ContentType: resp.Header.Get("Content-Type"), Body: b}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := b
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		return out, &StatusError{Code: resp.StatusCode, Status: resp.Status, Body: string(snippet)}
	}
	return out, nil
}

// Get is Do with GET and no body.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, url, nil, nil)
}

// DoJSON marshals body (when non-nil), sends it and decodes a JSON response
// into out (when non-nil).
func (c *Client) DoJSON(ctx context.Context, method, url string, headers map[string]string, body any, out any) error {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(b)
		if headers == nil {
			headers = map[string]string{}
		}
		if _, ok := headers["Content-Type"]; !ok {
			headers["Content-Type"] = "application/json"
		}
	}
	resp, err := c.Do(ctx, method, url, headers, bodyReader)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil
	}
	return json.Unmarshal(resp.Body, out)
}
