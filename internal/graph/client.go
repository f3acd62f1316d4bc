package graph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"
)

// Retry and backoff constants.
const (
	maxRetries     = 5
	baseBackoff    = 1 * time.Second
	maxBackoff     = 60 * time.Second
	backoffFactor  = 2.0
	jitterFraction = 0.25
	userAgent      = "dealsync/0.1"
)

// TokenSource provides OAuth2 bearer tokens. Defined at the consumer per Go
// convention "accept interfaces, return structs"; the oauth package provides
// the real implementation.
type TokenSource interface {
	Token() (string, error)
}

// Client is an HTTP client for the Graph-style file API. It handles request
// construction, authentication, retry with exponential backoff, and error
// classification.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      TokenSource
	logger     *slog.Logger

	// retryCap is the maximum number of retries per request. Defaults to
	// maxRetries; zero disables transport-level retry entirely.
	retryCap int

	// sleepFunc is called to wait between retries. Defaults to timeSleep.
	// Tests override this to avoid real delays.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewClient creates a Graph API client.
// baseURL is typically "https://graph.microsoft.com/v1.0".
func NewClient(baseURL string, httpClient *http.Client, token TokenSource, logger *slog.Logger) *Client {
	if token == nil {
		panic("graph: NewClient requires a TokenSource")
	}

	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		token:      token,
		logger:     logger,
		retryCap:   maxRetries,
		sleepFunc:  timeSleep,
	}
}

// WithoutRetry returns a copy of the client that sends each request exactly
// once. Callers that run their own retry budget (the rewrite strategy's
// upload) use it so attempts do not multiply across layers.
func (c *Client) WithoutRetry() *Client {
	clone := *c
	clone.retryCap = 0

	return &clone
}

// Do executes an HTTP request against the API. The path is appended to the
// client's base URL. For non-nil bodies, Content-Type is set to
// application/json. The caller is responsible for closing the response body
// on success.
func (c *Client) Do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	return c.doRetry(ctx, method, path, body, "", nil)
}

// DoWithHeaders is Do with additional request headers, used for
// Workbook-Session-Id and similar per-call headers.
func (c *Client) DoWithHeaders(
	ctx context.Context, method, path string, body io.Reader, extra http.Header,
) (*http.Response, error) {
	return c.doRetry(ctx, method, path, body, "", extra)
}

// DoRaw executes a raw content request (file download/upload). The JSON
// content type is omitted; contentType, if non-empty, is sent instead.
func (c *Client) DoRaw(
	ctx context.Context, method, path, contentType string, body io.Reader,
) (*http.Response, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return c.doRetry(ctx, method, path, body, contentType, nil)
}

// doRetry executes the request with retry on network errors and retryable
// HTTP statuses. contentType overrides the default application/json for
// non-nil bodies.
func (c *Client) doRetry(
	ctx context.Context, method, path string, body io.Reader, contentType string, extra http.Header,
) (*http.Response, error) {
	url := c.baseURL + path

	var attempt int
	for {
		if attempt > 0 {
			if err := rewindBody(body); err != nil {
				return nil, err
			}
		}

		resp, err := c.doOnce(ctx, method, url, body, contentType, extra)
		if err != nil {
			// Context cancellation is not retryable.
			if ctx.Err() != nil {
				return nil, fmt.Errorf("graph: request canceled: %w", ctx.Err())
			}

			// Token acquisition failures are auth failures, not transport
			// failures: retrying would replay the same rejected credential
			// exchange against the token endpoint.
			var tokErr *tokenError
			if errors.As(err, &tokErr) {
				return nil, err
			}

			// Network errors are retryable.
			if attempt < c.retryCap {
				backoff := c.calcBackoff(attempt)
				c.logger.Warn("retrying after network error",
					slog.String("method", method),
					slog.String("path", path),
					slog.Int("attempt", attempt+1),
					slog.Duration("backoff", backoff),
					slog.String("error", err.Error()),
				)

				if sleepErr := c.sleepFunc(ctx, backoff); sleepErr != nil {
					return nil, fmt.Errorf("graph: request canceled: %w", sleepErr)
				}

				attempt++

				continue
			}

			return nil, fmt.Errorf("graph: %s %s failed after %d retries: %w", method, path, c.retryCap, err)
		}

		// 2xx — success.
		if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
			c.logger.Debug("request succeeded",
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("status", resp.StatusCode),
			)

			return resp, nil
		}

		// Read and close body for error responses.
		errBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if readErr != nil {
			errBody = []byte("(failed to read response body)")
		}

		reqID := resp.Header.Get("request-id")

		if isRetryable(resp.StatusCode) && attempt < c.retryCap {
			backoff := c.retryBackoff(resp, attempt)
			c.logger.Warn("retrying after HTTP error",
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("status", resp.StatusCode),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff),
			)

			if err := c.sleepFunc(ctx, backoff); err != nil {
				return nil, fmt.Errorf("graph: request canceled: %w", err)
			}

			attempt++

			continue
		}

		sentinel := classifyStatus(resp.StatusCode)
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			RequestID:  reqID,
			Message:    string(errBody),
			Err:        sentinel,
		}

		if attempt > 0 {
			c.logger.Error("request failed after retries",
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("status", resp.StatusCode),
				slog.Int("attempts", attempt+1),
			)
		}

		return nil, apiErr
	}
}

// doOnce executes a single HTTP request (no retry).
func (c *Client) doOnce(
	ctx context.Context, method, url string, body io.Reader, contentType string, extra http.Header,
) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	tok, err := c.token.Token()
	if err != nil {
		return nil, &tokenError{err: err}
	}

	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("User-Agent", userAgent)

	if body != nil {
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		} else {
			req.Header.Set("Content-Type", "application/json")
		}
	}

	for key, values := range extra {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	return c.httpClient.Do(req)
}

// rewindBody seeks a request body back to the start so a retry attempt sends
// the full payload. Nil bodies are a no-op; non-seekable bodies abort the
// retry rather than silently sending an empty body.
func rewindBody(body io.Reader) error {
	if body == nil {
		return nil
	}

	seeker, ok := body.(io.Seeker)
	if !ok {
		return fmt.Errorf("graph: request body is not seekable, cannot retry")
	}

	if _, err := seeker.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("graph: rewinding request body for retry: %w", err)
	}

	return nil
}

// retryBackoff returns the backoff duration for a retryable response.
// For 429 responses with a Retry-After header, that value is used.
func (c *Client) retryBackoff(resp *http.Response, attempt int) time.Duration {
	if resp.StatusCode == http.StatusTooManyRequests {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
				return time.Duration(seconds) * time.Second
			}
		}
	}

	return c.calcBackoff(attempt)
}

// calcBackoff computes exponential backoff with ±25% jitter.
func (c *Client) calcBackoff(attempt int) time.Duration {
	backoff := float64(baseBackoff) * math.Pow(backoffFactor, float64(attempt))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}

	// Apply ±25% jitter.
	jitter := backoff * jitterFraction * (rand.Float64()*2 - 1) //nolint:gosec // jitter does not need crypto rand
	backoff += jitter

	return time.Duration(backoff)
}

// timeSleep waits for the given duration or until the context is canceled.
// It is the default sleepFunc for Client.
func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
