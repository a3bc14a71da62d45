package netatmo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the Netatmo API host. OAuth2 endpoints live under the
// same host.
const DefaultBaseURL = "https://api.netatmo.com"

// Retry and backoff constants.
const (
	maxRetries       = 3
	baseBackoff      = 1 * time.Second
	maxBackoff       = 30 * time.Second
	backoffFactor    = 2.0
	jitterFraction   = 0.25
	defaultUserAgent = "netatmo-go/0.1"
)

// TokenSource provides bearer tokens. *auth.Manager satisfies it.
//
// A source may return a token together with an error when it could not
// renew an expiring token; the client then proceeds with that token.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client is an HTTP client for the Netatmo API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      TokenSource
	logger     *slog.Logger
	userAgent  string

	// sleepFunc waits between retries. Tests override it to avoid delays.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewClient creates a Netatmo API client. baseURL is typically DefaultBaseURL.
func NewClient(baseURL string, httpClient *http.Client, token TokenSource, logger *slog.Logger, userAgent string) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		token:      token,
		logger:     logger,
		userAgent:  userAgent,
		sleepFunc:  timeSleep,
	}
}

// Do executes a request. GET sends params as the query string, POST as an
// URL-encoded body. Network errors and 408/429/5xx are retried with backoff;
// token errors are not. The caller closes the response body on success.
func (c *Client) Do(ctx context.Context, method, path string, params url.Values) (*http.Response, error) {
	var attempt int

	for {
		tok, err := c.bearer(ctx)
		if err != nil {
			return nil, err
		}

		resp, err := c.doOnce(ctx, method, path, params, tok)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("netatmo: request canceled: %w", ctx.Err())
			}

			if attempt < maxRetries {
				backoff := c.calcBackoff(attempt)
				c.logger.Warn("retrying after network error",
					slog.String("method", method),
					slog.String("path", path),
					slog.Int("attempt", attempt+1),
					slog.Duration("backoff", backoff),
					slog.String("error", err.Error()),
				)

				if sleepErr := c.sleepFunc(ctx, backoff); sleepErr != nil {
					return nil, fmt.Errorf("netatmo: request canceled: %w", sleepErr)
				}

				attempt++

				continue
			}

			return nil, fmt.Errorf("netatmo: %s %s failed after %d retries: %w", method, path, maxRetries, err)
		}

		if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
			c.logger.Debug("request succeeded",
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("status", resp.StatusCode),
			)

			return resp, nil
		}

		errBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if readErr != nil {
			errBody = []byte("(failed to read response body)")
		}

		if isRetryable(resp.StatusCode) && attempt < maxRetries {
			backoff := c.retryBackoff(resp, attempt)
			c.logger.Warn("retrying after HTTP error",
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("status", resp.StatusCode),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff),
			)

			if err := c.sleepFunc(ctx, backoff); err != nil {
				return nil, fmt.Errorf("netatmo: request canceled: %w", err)
			}

			attempt++

			continue
		}

		return nil, newAPIError(resp.StatusCode, errBody)
	}
}

// bearer obtains a token. A token returned alongside an error is used
// optimistically; the error is logged.
func (c *Client) bearer(ctx context.Context) (string, error) {
	tok, err := c.token.Token(ctx)
	if err != nil {
		if tok == "" {
			return "", fmt.Errorf("netatmo: obtaining token: %w", err)
		}

		c.logger.Warn("proceeding with cached token after token error",
			slog.String("error", err.Error()),
		)
	}

	return tok, nil
}

// doOnce executes a single HTTP request (no retry).
func (c *Client) doOnce(ctx context.Context, method, path string, params url.Values, tok string) (*http.Response, error) {
	target := c.baseURL + path

	var body io.Reader

	if method == http.MethodGet {
		if len(params) > 0 {
			target += "?" + params.Encode()
		}
	} else if params != nil {
		body = strings.NewReader(params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=UTF-8")
	}

	return c.httpClient.Do(req)
}

// envelope is the success wrapper around every API response body.
type envelope struct {
	Body       json.RawMessage `json:"body"`
	Status     string          `json:"status"`
	TimeServer int64           `json:"time_server"`
}

// call performs a request and decodes the envelope's body into out.
// out may be nil for endpoints that only report status.
func (c *Client) call(ctx context.Context, method, path string, params url.Values, out any) error {
	resp, err := c.Do(ctx, method, path, params)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("netatmo: decoding %s response: %w", path, err)
	}

	if env.Status != "ok" {
		return fmt.Errorf("%w: %s returned status %q", ErrUnexpected, path, env.Status)
	}

	if out == nil {
		return nil
	}

	if len(env.Body) == 0 {
		return fmt.Errorf("%w: %s response has no body", ErrUnexpected, path)
	}

	if err := json.Unmarshal(env.Body, out); err != nil {
		return fmt.Errorf("netatmo: decoding %s body: %w", path, err)
	}

	return nil
}

// retryBackoff returns the backoff for a retryable response, honoring
// Retry-After on 429.
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

	jitter := backoff * jitterFraction * (rand.Float64()*2 - 1) //nolint:gosec // jitter does not need crypto rand
	backoff += jitter

	return time.Duration(backoff)
}

// timeSleep waits for d or until ctx is canceled.
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
