package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the function root of a locally served deployment.
	DefaultBaseURL = "http://localhost:8888/.netlify/functions"
	// DefaultTimeout is the per-attempt HTTP timeout.
	DefaultTimeout = 30 * time.Second

	maxErrorBody = 64 << 10
)

// Config configures a Client.
type Config struct {
	// BaseURL is the function root. Endpoint names are appended to it.
	BaseURL string
	// Token is the bearer token of the signed-in user.
	Token string
	// HTTPClient defaults to a client with DefaultTimeout.
	HTTPClient *http.Client
	// Retry defaults to DefaultRetryConfig().
	Retry *RetryConfig
	// Logger defaults to a discarding logger.
	Logger *logrus.Logger
	// RateLimit caps outgoing requests per second, retries included.
	// Zero means unlimited.
	RateLimit float64
	// RateBurst is the limiter's bucket size. Default: 1
	RateBurst int
}

// Client is the HTTP client for the key registry and message endpoints.
// It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retry      *RetryConfig
	log        *logrus.Entry
	limiter    *rate.Limiter

	mu    sync.RWMutex
	token string
}

// NewClient creates a client from cfg.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, ErrMissingToken
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", cfg.BaseURL)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	if cfg.Retry == nil {
		cfg.Retry = DefaultRetryConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
		cfg.Logger.SetOutput(io.Discard)
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: cfg.HTTPClient,
		retry:      cfg.Retry,
		log:        cfg.Logger.WithField("component", "api"),
		token:      cfg.Token,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return c, nil
}

// SetToken replaces the bearer token, e.g. after the identity provider
// refreshed it.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Do sends a JSON request to endpoint and decodes the JSON response into
// result, which may be nil. Transient failures are retried according to the
// client's RetryConfig.
func (c *Client) Do(ctx context.Context, method, endpoint string, query url.Values, body, result interface{}) error {
	return c.do(ctx, c.retry, method, endpoint, query, body, result)
}

func (c *Client) do(ctx context.Context, retry *RetryConfig, method, endpoint string, query url.Values, body, result interface{}) error {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		payload = data
	}

	target := c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	log := c.log.WithField("endpoint", endpoint).WithField("method", method)

	for attempt := 0; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				return err
			}
		}

		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.bearer())
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if !retry.ShouldRetry(attempt, 0) {
				return &NetworkError{Err: err, URL: target, Attempt: attempt + 1}
			}
			log.WithError(err).WithField("attempt", attempt+1).Debug("request failed, retrying")
			if err := Wait(ctx, retry.Delay(attempt)); err != nil {
				return err
			}
			continue
		}

		if resp.StatusCode >= 400 && retry.ShouldRetry(attempt, resp.StatusCode) {
			delay := retry.DelayFor(attempt, resp)
			drain(resp)
			log.WithField("status", resp.StatusCode).WithField("attempt", attempt+1).Debug("retryable status")
			if err := Wait(ctx, delay); err != nil {
				return err
			}
			continue
		}

		log.WithField("status", resp.StatusCode).Debug("request completed")
		return decodeResponse(resp, endpoint, result)
	}
}

func decodeResponse(resp *http.Response, endpoint string, result interface{}) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return parseErrorResponse(resp, endpoint)
	}
	if result == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("empty response from %s", endpoint)
		}
		return fmt.Errorf("failed to decode response from %s: %w", endpoint, err)
	}
	return nil
}

// parseErrorResponse reads an error body, which the server sends either as
// plain text or as {"error": "..."}.
func parseErrorResponse(resp *http.Response, endpoint string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var errResp struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		msg = errResp.Error
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    msg,
		Endpoint:   strings.TrimLeft(endpoint, "/"),
	}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
}
