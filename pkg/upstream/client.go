// Package upstream provides the HTTP client abstraction the fetch pipeline
// uses to reach proxied targets. The pipeline depends only on the Doer
// interface, so tests can substitute scripted upstreams.
package upstream

import (
	"context"
	"io"
	"net/http"
	"time"
)

// Request describes one upstream call.
type Request struct {
	// Method is the HTTP method.
	Method string

	// URL is the absolute target URL.
	URL string

	// Header is the outbound header map. May be nil.
	Header http.Header

	// Body is the request body. Nil for bodiless requests.
	Body io.Reader
}

// Response is an upstream response. The caller owns Body and must close it.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// Doer performs upstream HTTP requests.
type Doer interface {
	Do(ctx context.Context, req Request) (*Response, error)
}

// Client is the production Doer backed by net/http with connection pooling.
type Client struct {
	client *http.Client
}

// Options configures a Client.
type Options struct {
	// Timeout is the per-request timeout. Zero means no timeout.
	Timeout time.Duration

	// MaxIdleConns is the connection pool size.
	MaxIdleConns int

	// MaxIdleConnsPerHost is the per-host pool size.
	MaxIdleConnsPerHost int

	// IdleConnTimeout is how long idle connections are kept.
	IdleConnTimeout time.Duration
}

// NewClient creates a Client with a pooled transport.
func NewClient(opts Options) *Client {
	transport := &http.Transport{
		MaxIdleConns:        opts.MaxIdleConns,
		MaxIdleConnsPerHost: opts.MaxIdleConnsPerHost,
		IdleConnTimeout:     opts.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}

	return &Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
	}
}

// Do performs the request. Redirects are followed by the underlying client;
// transport-level failures are returned as errors, HTTP error statuses are
// returned as responses.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, req.Body)
	if err != nil {
		return nil, err
	}

	for key, values := range req.Header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, err
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
	}, nil
}
