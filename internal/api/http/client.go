// Package http wraps resty with the retry and logging policy used for every
// call against the site's REST backend.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client is a thin retrying HTTP client for the backend gateway
type Client struct {
	resty   *resty.Client
	timeout time.Duration
	logger  *slog.Logger
}

// ClientConfig holds configuration for the HTTP client
type ClientConfig struct {
	Timeout    time.Duration
	MaxRetries int
	UserAgent  string
	AuthToken  string
	Debug      bool
	Logger     *slog.Logger
}

// NewClient creates a new HTTP client with the given configuration
func NewClient(config ClientConfig) *Client {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.UserAgent == "" {
		config.UserAgent = "aniview/1.0"
	}

	restyClient := resty.New().
		SetTimeout(config.Timeout).
		SetRetryCount(config.MaxRetries).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("User-Agent", config.UserAgent).
		SetHeader("Accept", "application/json")

	if config.AuthToken != "" {
		restyClient.SetAuthToken(config.AuthToken)
	}

	// Retry on transport errors, 5xx and rate limiting; 4xx responses carry
	// meaning for the watcher endpoints and must come back untouched
	restyClient.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return r.StatusCode() >= 500 || r.StatusCode() == 429
	})

	client := &Client{
		resty:   restyClient,
		timeout: config.Timeout,
		logger:  config.Logger,
	}

	if config.Debug && config.Logger != nil {
		restyClient.OnAfterResponse(func(c *resty.Client, r *resty.Response) error {
			client.logger.Debug("backend response",
				"method", r.Request.Method,
				"url", r.Request.URL,
				"status", r.StatusCode(),
				"time", r.Time(),
			)
			return nil
		})
	}

	return client
}

// Get performs a GET request. Responses with status >= 400 are returned
// alongside a nil error so callers can interpret them.
func (c *Client) Get(ctx context.Context, url string, params map[string]string) (*resty.Response, error) {
	req := c.resty.R().SetContext(ctx)
	if len(params) > 0 {
		req.SetQueryParams(params)
	}

	resp, err := req.Get(url)
	if err != nil {
		return nil, fmt.Errorf("GET request failed for %s: %w", url, err)
	}
	return resp, nil
}

// Put performs a PUT request with a JSON body
func (c *Client) Put(ctx context.Context, url string, body interface{}) (*resty.Response, error) {
	resp, err := c.resty.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Put(url)
	if err != nil {
		return nil, fmt.Errorf("PUT request failed for %s: %w", url, err)
	}
	return resp, nil
}

// Timeout returns the configured per-request timeout
func (c *Client) Timeout() time.Duration {
	return c.timeout
}
