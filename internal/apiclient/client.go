// Package apiclient is the outbound HTTP helper used to talk to the marketplace REST backend.
//
// It normalises three things every caller would otherwise repeat: URL building
// (base + optional prefix + path), error bodies (always an *Error for non-2xx),
// and success envelopes ({"data": ...} is unwrapped).
package apiclient

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

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultTimeout bounds a single request when Config.Timeout is zero.
const DefaultTimeout = 15 * time.Second

// RequestIDHeader is set on every outbound request that does not already carry one.
const RequestIDHeader = "X-Request-ID"

// Config configures a Client.
type Config struct {
	// BaseURL is scheme + host (+ optional path), e.g. "https://api.example.com".
	BaseURL string
	// Prefix is inserted between BaseURL and the request path, e.g. "/api/v1".
	// A 404 on a prefixed URL is retried once without it.
	Prefix  string
	Timeout time.Duration
	// Headers are sent with every request; per-request headers win.
	Headers map[string]string

	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client issues JSON requests against one backend.
type Client struct {
	base    *url.URL
	prefix  string
	headers map[string]string
	http    *http.Client
	log     *zap.Logger
}

// RequestOptions describes one call. The zero value is a GET with no body.
type RequestOptions struct {
	Method  string
	Body    any
	Query   url.Values
	Headers map[string]string
	// RawBody sends Body as is ([]byte, string or io.Reader) instead of JSON-encoding it.
	RawBody bool
}

// New validates cfg and returns a Client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("apiclient: base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("apiclient: parse base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("apiclient: base URL %q must include scheme and host", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		base:    base,
		prefix:  normalizePrefix(cfg.Prefix),
		headers: cfg.Headers,
		http:    httpClient,
		log:     logger.Named("apiclient"),
	}, nil
}

// Request performs the call and returns the parsed body, with any {"data": ...}
// envelope removed. Non-2xx responses return *Error; transport failures wrap ErrTransport.
func (c *Client) Request(ctx context.Context, path string, opts RequestOptions) (json.RawMessage, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	body, contentType, err := encodeBody(opts)
	if err != nil {
		return nil, err
	}

	target := c.buildURL(c.prefix, path, opts.Query)
	raw, err := c.do(ctx, method, target, body, contentType, opts.Headers)

	var apiErr *Error
	if c.prefix != "" && errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		fallback := c.buildURL("", path, opts.Query)
		c.log.Warn("prefixed route not found, retrying without prefix",
			zap.String("method", method),
			zap.String("url", target),
			zap.String("fallback", fallback))
		raw, err = c.do(ctx, method, fallback, body, contentType, opts.Headers)
	}
	if err != nil {
		return nil, err
	}
	return unwrapEnvelope(raw), nil
}

// Do is Request followed by decoding the result into out. A nil out discards the body.
func (c *Client) Do(ctx context.Context, path string, opts RequestOptions, out any) error {
	raw, err := c.Request(ctx, path, opts)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("apiclient: decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, target string, body []byte, contentType string, headers map[string]string) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("apiclient: build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get(RequestIDHeader) == "" {
		req.Header.Set(RequestIDHeader, uuid.NewString())
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("request failed", zap.String("method", method), zap.String("url", target), zap.Error(err))
		return nil, fmt.Errorf("%w: %s %s: %w", ErrTransport, method, target, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s %s: %w", ErrTransport, method, target, err)
	}

	c.log.Debug("request completed",
		zap.String("method", method),
		zap.String("url", target),
		zap.Int("status", resp.StatusCode),
		zap.String("request_id", req.Header.Get(RequestIDHeader)),
		zap.Duration("took", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseError(resp.StatusCode, payload)
	}
	return parseBody(payload), nil
}

func (c *Client) buildURL(prefix, path string, query url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + prefix + "/" + strings.TrimLeft(path, "/")
	u.RawPath = ""
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func normalizePrefix(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return ""
	}
	return "/" + p
}

func encodeBody(opts RequestOptions) ([]byte, string, error) {
	if opts.Body == nil {
		return nil, "", nil
	}
	if !opts.RawBody {
		b, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, "", fmt.Errorf("apiclient: encode body: %w", err)
		}
		return b, "application/json", nil
	}
	switch v := opts.Body.(type) {
	case []byte:
		return v, "", nil
	case string:
		return []byte(v), "", nil
	case io.Reader:
		// Buffered so the prefix fallback can resend it.
		b, err := io.ReadAll(v)
		if err != nil {
			return nil, "", fmt.Errorf("apiclient: read raw body: %w", err)
		}
		return b, "", nil
	default:
		return nil, "", fmt.Errorf("apiclient: unsupported raw body type %T", opts.Body)
	}
}

// parseBody returns JSON as is; a non-JSON body comes back as a JSON string.
func parseBody(payload []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil
	}
	if json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	quoted, _ := json.Marshal(string(trimmed))
	return quoted
}

func unwrapEnvelope(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || raw[0] != '{' {
		return raw
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return raw
	}
	if data, ok := envelope["data"]; ok {
		return data
	}
	return raw
}
