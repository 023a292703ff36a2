// Package client is the Go SDK for the KinKeep HTTP API.
//
//	c, err := client.NewClient("http://localhost:8080")
//	res, err := c.Members().List(ctx, &client.ListOptions{Term: "smith"})
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/turtacn/KinKeep/pkg/errors"
)

const Version = "0.1.0"

const apiPrefix = "/api/v1"

// Logger defines the logging interface used by the Client
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type noopLogger struct{}

func (noopLogger) Debugf(format string, args ...interface{}) {}
func (noopLogger) Infof(format string, args ...interface{})  {}
func (noopLogger) Errorf(format string, args ...interface{}) {}

// Client is the KinKeep SDK client. It is safe for concurrent use.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	userAgent    string
	logger       Logger
	timeout      time.Duration
	retryMax     int
	retryWaitMin time.Duration
	retryWaitMax time.Duration
	headers      map[string]string

	rest *resty.Client

	members     *MembersClient
	membersOnce sync.Once
	stories     *StoriesClient
	storiesOnce sync.Once
}

// APIError represents an error response from the API
type APIError struct {
	StatusCode int    `json:"status_code"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	RequestID  string `json:"request_id"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("kinkeep: %s (HTTP %d): %s [request_id=%s]", e.Code, e.StatusCode, e.Message, e.RequestID)
}

func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// envelope is the response wrapper every JSON endpoint returns.
type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     *errorBody      `json:"error"`
	RequestID string          `json:"request_id"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

// NewClient creates a client for the API served at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.InvalidParam("base URL is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeBadRequest, "invalid base URL")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, errors.InvalidParam("base URL scheme must be http or https").WithDetail(baseURL)
	}

	c := &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		userAgent:    fmt.Sprintf("kinkeep-go-sdk/%s", Version),
		logger:       noopLogger{},
		timeout:      30 * time.Second,
		retryMax:     3,
		retryWaitMin: 500 * time.Millisecond,
		retryWaitMax: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient != nil {
		c.rest = resty.NewWithClient(c.httpClient)
	} else {
		c.rest = resty.New().SetTimeout(c.timeout)
	}
	c.rest.
		SetBaseURL(c.baseURL).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", c.userAgent).
		SetRetryCount(c.retryMax).
		SetRetryWaitTime(c.retryWaitMin).
		SetRetryMaxWaitTime(c.retryWaitMax).
		SetHeaders(c.headers).
		AddRetryCondition(shouldRetry).
		OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
			if r.Header.Get("X-Request-ID") == "" {
				r.SetHeader("X-Request-ID", uuid.NewString())
			}
			return nil
		})

	return c, nil
}

// shouldRetry retries idempotent requests on transport errors, 429 and 5xx.
// Story import costs a model call and is never repeated.
func shouldRetry(resp *resty.Response, err error) bool {
	if resp == nil || resp.Request == nil {
		return err != nil
	}
	switch resp.Request.Method {
	case http.MethodGet, http.MethodPut, http.MethodDelete:
	default:
		return false
	}
	if err != nil {
		return true
	}
	code := resp.StatusCode()
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// Members returns the members sub-client (lazy initialization, thread-safe)
func (c *Client) Members() *MembersClient {
	c.membersOnce.Do(func() {
		c.members = &MembersClient{client: c}
	})
	return c.members
}

// Stories returns the import and export sub-client (lazy initialization, thread-safe)
func (c *Client) Stories() *StoriesClient {
	c.storiesOnce.Do(func() {
		c.stories = &StoriesClient{client: c}
	})
	return c.stories
}

// Ready calls the readiness probe and returns nil when the server and its
// storage are up.
func (c *Client) Ready(ctx context.Context) error {
	resp, err := c.rest.R().SetContext(ctx).Get("/readyz")
	if err != nil {
		return fmt.Errorf("kinkeep: readiness probe: %w", err)
	}
	if resp.IsError() {
		return &APIError{
			StatusCode: resp.StatusCode(),
			Code:       "NOT_READY",
			Message:    strings.TrimSpace(resp.String()),
			RequestID:  resp.Header().Get("X-Request-ID"),
		}
	}
	return nil
}

// do sends a JSON request and decodes the data field of the reply into out.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	var ok, failure envelope
	req := c.rest.R().
		SetContext(ctx).
		SetResult(&ok).
		SetError(&failure)
	if query != nil {
		req.SetQueryParamsFromValues(query)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	c.logger.Debugf("%s %s", method, path)
	resp, err := req.Execute(method, apiPrefix+path)
	if err != nil {
		c.logger.Errorf("%s %s failed: %v", method, path, err)
		return fmt.Errorf("kinkeep: %s %s: %w", method, path, err)
	}
	if resp.IsError() {
		return newAPIError(resp, &failure)
	}
	if out == nil || len(ok.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(ok.Data, out); err != nil {
		return fmt.Errorf("kinkeep: decode %s %s: %w", method, path, err)
	}
	return nil
}

func newAPIError(resp *resty.Response, env *envelope) *APIError {
	apiErr := &APIError{
		StatusCode: resp.StatusCode(),
		Code:       fmt.Sprintf("HTTP_%d", resp.StatusCode()),
		Message:    http.StatusText(resp.StatusCode()),
		RequestID:  resp.Header().Get("X-Request-ID"),
	}
	if env.Error != nil {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
		apiErr.Detail = env.Error.Detail
	}
	if env.RequestID != "" {
		apiErr.RequestID = env.RequestID
	}
	return apiErr
}
