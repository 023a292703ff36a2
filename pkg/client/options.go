package client

import (
	"net/http"
	"time"
)

// Option tunes a Client at construction.
type Option func(*Client)

// WithHTTPClient makes requests go through httpClient. Its own Timeout then
// applies and WithTimeout is ignored.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithLogger routes request tracing to logger. Nil keeps the silent default.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTimeout bounds each request, retries excluded. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetryMax caps the retries of idempotent calls. Zero disables retrying.
func WithRetryMax(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.retryMax = n
		}
	}
}

// WithRetryWait sets the backoff bounds between retries. The upper bound is
// kept only when it is not below the lower one.
func WithRetryWait(lo, hi time.Duration) Option {
	return func(c *Client) {
		if lo <= 0 {
			return
		}
		c.retryWaitMin = lo
		if hi >= lo {
			c.retryWaitMax = hi
		}
	}
}

// WithUserAgent replaces the kinkeep-go-sdk/<version> agent string.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithHeader adds a header to every request, for example a token expected
// by a proxy in front of the server. Later calls for the same key win.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		if key == "" {
			return
		}
		if c.headers == nil {
			c.headers = make(map[string]string)
		}
		c.headers[key] = value
	}
}
