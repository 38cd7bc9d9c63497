// Package httpclient provides the context-aware HTTP client used to reach
// the detection feed, with default timeouts, connection pooling and
// observability hooks.
package httpclient

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"
)

const (
	// DefaultTimeout is applied when the request context has no deadline.
	DefaultTimeout = 5 * time.Second

	defaultMaxIdleConns          = 16
	defaultMaxIdleConnsPerHost   = 4
	defaultIdleConnTimeout       = 90 * time.Second
	defaultResponseHeaderTimeout = 5 * time.Second
	defaultDialTimeout           = 5 * time.Second
	defaultDialKeepAlive         = 30 * time.Second

	defaultUserAgent = "campusfit"
)

// Client wraps http.Client with per-request timeouts and hooks.
// Thread-safe for concurrent use.
type Client struct {
	client         *http.Client
	defaultTimeout time.Duration
	userAgent      string

	hookMu        sync.RWMutex
	beforeRequest func(*http.Request)
	afterResponse func(*http.Request, *http.Response, error, time.Duration)
}

// Config holds configuration for creating an HTTP client.
type Config struct {
	// DefaultTimeout is the timeout applied if request context has no deadline
	DefaultTimeout time.Duration

	// UserAgent is added to all requests
	UserAgent string

	MaxIdleConnsPerHost   int
	ResponseHeaderTimeout time.Duration

	// Transport overrides the pooled transport, e.g. with an httpmock.MockTransport
	Transport http.RoundTripper
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		DefaultTimeout:        DefaultTimeout,
		UserAgent:             defaultUserAgent,
		MaxIdleConnsPerHost:   defaultMaxIdleConnsPerHost,
		ResponseHeaderTimeout: defaultResponseHeaderTimeout,
	}
}

// New creates a client. A nil cfg uses DefaultConfig; zero fields get defaults.
func New(cfg *Config) *Client {
	c := DefaultConfig()
	if cfg != nil {
		if cfg.DefaultTimeout > 0 {
			c.DefaultTimeout = cfg.DefaultTimeout
		}
		if cfg.UserAgent != "" {
			c.UserAgent = cfg.UserAgent
		}
		if cfg.MaxIdleConnsPerHost > 0 {
			c.MaxIdleConnsPerHost = cfg.MaxIdleConnsPerHost
		}
		if cfg.ResponseHeaderTimeout > 0 {
			c.ResponseHeaderTimeout = cfg.ResponseHeaderTimeout
		}
		c.Transport = cfg.Transport
	}

	transport := c.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   defaultDialTimeout,
				KeepAlive: defaultDialKeepAlive,
			}).DialContext,
			MaxIdleConns:          defaultMaxIdleConns,
			MaxIdleConnsPerHost:   c.MaxIdleConnsPerHost,
			IdleConnTimeout:       defaultIdleConnTimeout,
			ResponseHeaderTimeout: c.ResponseHeaderTimeout,
		}
	}

	return &Client{
		client:         &http.Client{Transport: transport},
		defaultTimeout: c.DefaultTimeout,
		userAgent:      c.UserAgent,
	}
}

// Do executes req under ctx. When ctx has no deadline the default timeout is
// applied. The response body must be closed by the caller if err is nil.
//
// The timeout context is tied to the returned body; cancel runs when the
// caller closes it.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cancel := context.CancelFunc(func() {})
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && c.defaultTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.defaultTimeout)
	}
	req = req.WithContext(ctx)

	if req.Header.Get("User-Agent") == "" && c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	c.hookMu.RLock()
	before, after := c.beforeRequest, c.afterResponse
	c.hookMu.RUnlock()

	if before != nil {
		before(req)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if after != nil {
		after(req, resp, err, time.Since(start))
	}
	if err != nil {
		cancel()
		return nil, err
	}

	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// Get performs a GET request with context.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create GET request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return c.Do(ctx, req)
}

// SetBeforeRequestHook sets a function called before each request.
func (c *Client) SetBeforeRequestHook(fn func(*http.Request)) {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	c.beforeRequest = fn
}

// SetAfterResponseHook sets a function called after each request with the
// elapsed round-trip time.
func (c *Client) SetAfterResponseHook(fn func(*http.Request, *http.Response, error, time.Duration)) {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	c.afterResponse = fn
}

// Close closes idle connections in the connection pool.
func (c *Client) Close() {
	c.client.CloseIdleConnections()
}
