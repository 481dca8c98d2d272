package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	maxErrorBody       = 8 << 10
)

// ErrUnauthorized indicates the panel API rejected the bearer token.
var ErrUnauthorized = errors.New("client: unauthorized")

// CurrentAddressFunc reports the current panel address, if one is selected.
type CurrentAddressFunc func() (string, bool)

// Logger receives diagnostic messages.
type Logger interface {
	Printf(format string, v ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithCurrentAddress sets the source consulted by ReinitializeBaseURL.
func WithCurrentAddress(fn CurrentAddressFunc) Option {
	return func(c *HTTPClient) {
		c.current = fn
	}
}

// WithUnauthorizedHandler sets a hook run whenever the API answers 401.
// The panel UI uses it to drop the stored token and return to login.
func WithUnauthorizedHandler(fn func()) Option {
	return func(c *HTTPClient) {
		c.onUnauthorized = fn
	}
}

// WithLogger sets a logger for base URL changes.
func WithLogger(logger Logger) Option {
	return func(c *HTTPClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) {
		if d > 0 {
			c.client.Timeout = d
		}
	}
}

// HTTPClient wraps HTTP interactions with the panel API. Its base URL
// follows the current panel address and falls back to the compiled-in
// default origin when none is selected.
type HTTPClient struct {
	client         *http.Client
	defaultBaseURL string
	current        CurrentAddressFunc
	onUnauthorized func()
	logger         Logger

	mu      sync.RWMutex
	baseURL string
	token   string
}

// NewHTTPClient builds an HTTP client with optional custom transport.
func NewHTTPClient(defaultBaseURL, token string, transport http.RoundTripper, opts ...Option) *HTTPClient {
	httpClient := &http.Client{Timeout: defaultHTTPTimeout}
	if transport != nil {
		httpClient.Transport = transport
	}

	c := &HTTPClient{
		client:         httpClient,
		defaultBaseURL: strings.TrimRight(defaultBaseURL, "/"),
		token:          strings.TrimSpace(token),
		logger:         nopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.ReinitializeBaseURL()
	return c
}

// ReinitializeBaseURL re-reads the current panel address and retargets the
// client. Without a current address the default origin is used.
func (c *HTTPClient) ReinitializeBaseURL() {
	next := c.defaultBaseURL
	if c.current != nil {
		if addr, ok := c.current(); ok && strings.TrimSpace(addr) != "" {
			next = strings.TrimRight(strings.TrimSpace(addr), "/")
		}
	}

	c.mu.Lock()
	prev := c.baseURL
	c.baseURL = next
	c.mu.Unlock()

	if prev != "" && prev != next {
		c.logger.Printf("[Client] base URL changed %s -> %s", prev, next)
	}
}

// BaseURL returns the base HTTP URL.
func (c *HTTPClient) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// DefaultBaseURL returns the fallback origin.
func (c *HTTPClient) DefaultBaseURL() string {
	return c.defaultBaseURL
}

// Token returns the configured bearer token.
func (c *HTTPClient) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken replaces the bearer token, e.g. after login.
func (c *HTTPClient) SetToken(token string) {
	c.mu.Lock()
	c.token = strings.TrimSpace(token)
	c.mu.Unlock()
}

// GetJSON issues a GET against path and decodes the JSON response into out.
func (c *HTTPClient) GetJSON(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// PostJSON posts in as JSON to path and decodes the JSON response into out.
func (c *HTTPClient) PostJSON(ctx context.Context, path string, in, out any) error {
	return c.do(ctx, http.MethodPost, path, in, out)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	body := io.Reader(http.NoBody)
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("client: encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL()+"/"+strings.TrimLeft(path, "/"), body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	c.attachToken(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return fmt.Errorf("%s %s: %w: %w", method, path, ErrUnauthorized, readAPIError(resp))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: %w", method, path, readAPIError(resp))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("client: decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *HTTPClient) attachToken(req *http.Request) {
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func readAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if len(body) == 0 {
		return errors.New(resp.Status)
	}
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "{") {
		var payload struct {
			Error string `json:"error"`
			Msg   string `json:"msg"`
		}
		if err := json.Unmarshal([]byte(trimmed), &payload); err == nil {
			if msg := strings.TrimSpace(payload.Error); msg != "" {
				return errors.New(msg)
			}
			if msg := strings.TrimSpace(payload.Msg); msg != "" {
				return errors.New(msg)
			}
		}
		// Fall back to returning the raw payload for diagnostics when parsing fails
		// or the server response omits the error fields.
	}
	return errors.New(trimmed)
}
