package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const defaultTimeout = 15 * time.Second

// Config defines the setup for the HTTP client shared by the search and
// scrape layers.
type Config struct {
	Timeout      time.Duration
	MaxRedirects int
	// Headers are applied to every request that does not already set them.
	Headers map[string]string
	// Transport overrides the default transport, mainly for tests.
	Transport http.RoundTripper
}

// Client wraps http.Client with a bounded redirect policy and default
// header injection. All requests go through Do, which requires a context.
type Client struct {
	http    *http.Client
	headers map[string]string
}

// New creates a client from cfg. A zero Timeout falls back to 15s; a zero
// MaxRedirects falls back to 5.
func New(cfg Config) (*Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = 5
	}

	hc := &http.Client{
		Timeout: cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= cfg.MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", cfg.MaxRedirects)
			}
			return nil
		},
	}
	if cfg.Transport != nil {
		hc.Transport = cfg.Transport
	}

	return &Client{http: hc, headers: cfg.Headers}, nil
}

// Do executes the request under ctx, applying the client's default headers
// to any header the request leaves unset.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if ctx == nil {
		return nil, errors.New("nil context")
	}

	req = req.Clone(ctx)
	for k, v := range c.headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http do: %w", err)
	}
	return resp, nil
}

// Get is a convenience wrapper issuing a GET to rawURL.
func (c *Client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	return c.Do(ctx, req)
}

// Head issues a HEAD request to rawURL with its own timeout, independent of
// the client's default. Used for cheap existence probes.
func (c *Client) Head(ctx context.Context, rawURL string, timeout time.Duration) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	// HEAD responses carry no body worth keeping open.
	resp.Body.Close()
	return resp, nil
}
