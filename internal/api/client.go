// Package api is the client for the remote filer HTTP API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"strings"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/spacefiler/spacefiler/internal/config"
	"github.com/spacefiler/spacefiler/internal/constants"
	"github.com/spacefiler/spacefiler/internal/http"
	"github.com/spacefiler/spacefiler/internal/logging"
	"github.com/spacefiler/spacefiler/internal/ratelimit"
	"github.com/spacefiler/spacefiler/internal/version"
)

// retryLogger implements the retryablehttp.LeveledLogger interface on top of zerolog
type retryLogger struct {
	logger *logging.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {
	// Only log errors and warnings, not all info
}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}

// Client represents the filer API client
type Client struct {
	// httpClient retries idempotent GETs when max_retries > 0
	httpClient *nethttp.Client
	// plainClient is used for POSTs and uploads, which are never retried
	plainClient *nethttp.Client
	baseURL     string
	// limiter is nil unless client.rate_limit is set
	limiter *ratelimit.RateLimiter
	logger  *logging.Logger
}

// NewClient creates a new filer API client. The cookie jar carries the
// sign-in session across calls; pass nil for an anonymous client.
func NewClient(cfg *config.Config, jar nethttp.CookieJar, logger *logging.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("filer base URL is empty: set filer.base_url or pass --server")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.Component("api")

	httpClient, err := http.NewFilerHTTPClient(cfg, jar, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = httpClient
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = constants.RetryWaitMin
	retryClient.RetryWaitMax = constants.RetryWaitMax
	retryClient.Logger = &retryLogger{logger: logger}
	// Hand non-2xx responses back to the caller instead of a "giving up" error
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	var limiter *ratelimit.RateLimiter
	if cfg.RateLimit > 0 {
		limiter = ratelimit.NewRateLimiter(cfg.RateLimit, float64(cfg.RateBurst), logger)
	}

	// The jar lives on the inner client only, or cookies would be sent twice.
	return &Client{
		httpClient:  retryClient.StandardClient(),
		plainClient: httpClient,
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		limiter:     limiter,
		logger:      logger,
	}, nil
}

// BaseURL returns the filer root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// doRequest performs a JSON request. GETs go through the retrying client.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) (*nethttp.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := nethttp.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	client := c.plainClient
	if method == nethttp.MethodGet {
		client = c.httpClient
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	c.logger.Debug().Str("method", method).Str("path", path).Msg("API call")

	resp, err := client.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("method", method).Str("path", path).Msg("API call failed")
		return nil, fmt.Errorf("request failed: %w", err)
	}
	c.observe(resp)
	return resp, nil
}

// observe empties the bucket when the server pushes back.
func (c *Client) observe(resp *nethttp.Response) {
	if resp.StatusCode == nethttp.StatusTooManyRequests {
		c.limiter.Drain()
	}
}

// doJSON performs a request and decodes a 2xx JSON response into out (if non-nil).
func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	resp, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(method, path, resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
