package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/lamim/uxie/internal/config"
	"github.com/lamim/uxie/internal/metrics"
)

const (
	// DefaultHTTPTimeout is the default timeout for a model call, retries included
	DefaultHTTPTimeout = 120 * time.Second
	// DefaultMaxRetries is the default maximum number of retry attempts
	DefaultMaxRetries = 3
	// DefaultBaseRetryDelay is the base delay for exponential backoff
	DefaultBaseRetryDelay = 2 * time.Second
	// DefaultMaxBackoffDuration caps a single backoff sleep
	DefaultMaxBackoffDuration = 120 * time.Second
	// RateLimitBackoffMultiplier is the multiplier for rate limit backoff (3^n)
	RateLimitBackoffMultiplier = 3
)

// Client handles HTTP requests to OpenAI-compatible API endpoints
type Client struct {
	httpClient           *http.Client
	rateLimiterPool      *RateLimiterPool
	logger               *slog.Logger
	metrics              *metrics.Collector
	maxRetries           int
	baseRetryDelay       time.Duration
	providerRateLimits   map[string]int
	providerBurstPercent int
}

// NewClient creates a new API client. Deadlines come from the per-model
// timeout on the request context, so the http.Client itself has none and
// long streaming responses are not cut off.
func NewClient(logger *slog.Logger) *Client {
	return &Client{
		httpClient:           &http.Client{},
		rateLimiterPool:      NewRateLimiterPool(),
		logger:               logger,
		maxRetries:           DefaultMaxRetries,
		baseRetryDelay:       DefaultBaseRetryDelay,
		providerBurstPercent: 15,
	}
}

// SetProviderRateLimits configures account-level limits keyed by provider name
func (c *Client) SetProviderRateLimits(limits map[string]int, burstPercent int) {
	c.providerRateLimits = limits
	if burstPercent > 0 {
		c.providerBurstPercent = burstPercent
	}
}

// SetMetrics attaches a metrics collector
func (c *Client) SetMetrics(m *metrics.Collector) {
	c.metrics = m
}

// ChatCompletion sends a plain chat completion request to the specified model
func (c *Client) ChatCompletion(
	ctx context.Context,
	modelCfg config.ModelConfig,
	apiKey string,
	messages []Message,
) (*ChatCompletionResponse, error) {
	return c.StructuredCompletion(ctx, modelCfg, apiKey, messages, nil)
}

// StructuredCompletion sends a chat completion request with an optional
// response format. Models configured with use_streaming are routed through
// the SSE path.
func (c *Client) StructuredCompletion(
	ctx context.Context,
	modelCfg config.ModelConfig,
	apiKey string,
	messages []Message,
	format *ResponseFormat,
) (*ChatCompletionResponse, error) {
	if modelCfg.UseStreaming {
		return c.ChatCompletionStreaming(ctx, modelCfg, apiKey, messages, format, nil)
	}

	req := buildRequest(modelCfg, messages, format)

	var resp *ChatCompletionResponse
	err := c.execute(ctx, modelCfg, func(ctx context.Context) error {
		var out ChatCompletionResponse
		if err := c.postJSON(ctx, endpointURL(modelCfg.BaseURL, "chat/completions"), apiKey, req, &out); err != nil {
			return err
		}
		if len(out.Choices) == 0 {
			return fmt.Errorf("no choices returned in response")
		}
		resp = &out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func buildRequest(modelCfg config.ModelConfig, messages []Message, format *ResponseFormat) ChatCompletionRequest {
	return ChatCompletionRequest{
		Model:          modelCfg.ModelName,
		Messages:       messages,
		Temperature:    modelCfg.Temperature,
		TopP:           modelCfg.TopP,
		MaxTokens:      modelCfg.MaxOutputTokens,
		N:              1,
		ResponseFormat: format,
	}
}

// execute runs attempt under the model's timeout, rate limits and retry policy.
// Retryable failures back off exponentially (3^n for 429s) with ±10% jitter.
func (c *Client) execute(
	ctx context.Context,
	modelCfg config.ModelConfig,
	attempt func(ctx context.Context) error,
) error {
	requestStart := time.Now()

	timeout := time.Duration(modelCfg.HTTPTimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = DefaultHTTPTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Generate a unique model ID for rate limiting
	modelID := fmt.Sprintf("%s:%s", modelCfg.BaseURL, modelCfg.ModelName)
	providerName := config.GetProviderName(modelCfg.BaseURL)
	providerRPM := c.providerRateLimits[providerName]

	rateLimitStart := time.Now()
	if err := c.rateLimiterPool.Wait(ctx, modelID, modelCfg.RateLimitPerMinute, providerName, providerRPM, c.providerBurstPercent); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}
	rateLimitWait := time.Since(rateLimitStart)
	c.metrics.RecordRateLimiterWait(modelCfg.ModelName, rateLimitWait)

	maxAttempts := modelCfg.MaxRetries
	if maxAttempts == 0 {
		maxAttempts = c.maxRetries
	}

	var lastErr error
	for n := 0; maxAttempts < 0 || n <= maxAttempts; n++ {
		if n > 0 {
			sleepDuration := c.backoff(n, lastErr, modelCfg.MaxBackoffSeconds)

			c.logger.Warn("Retrying API request",
				"attempt", n,
				"max_retries", maxAttempts,
				"backoff", sleepDuration,
				"model", modelCfg.ModelName,
				"is_rate_limit", isRateLimitError(lastErr))

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(sleepDuration):
			}
		}

		callStart := time.Now()
		err := attempt(ctx)
		c.metrics.RecordAPIRequest(modelCfg.ModelName, time.Since(callStart), err == nil)
		if err == nil {
			c.logger.Debug("API request completed",
				"model", modelCfg.ModelName,
				"attempts", n+1,
				"rate_limit_wait_ms", rateLimitWait.Milliseconds(),
				"total_ms", time.Since(requestStart).Milliseconds())
			return nil
		}

		lastErr = err
		if !isRetryable(err) {
			return err
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) backoff(attempt int, lastErr error, maxBackoffSeconds int) time.Duration {
	backoff := time.Duration(math.Pow(2, float64(attempt-1))) * c.baseRetryDelay

	// Rate limits get longer delays (3^n: 6s, 18s, 54s)
	if isRateLimitError(lastErr) {
		backoff = time.Duration(math.Pow(RateLimitBackoffMultiplier, float64(attempt))) * c.baseRetryDelay
	}

	maxBackoff := DefaultMaxBackoffDuration
	if maxBackoffSeconds > 0 {
		maxBackoff = time.Duration(maxBackoffSeconds) * time.Second
	}
	if backoff > maxBackoff {
		backoff = maxBackoff
	}

	jitter := time.Duration(float64(backoff) * 0.1 * (2*float64(time.Now().UnixNano()%100)/100 - 1))
	return backoff + jitter
}

// postJSON sends body to endpoint and decodes a 200 response into out
func (c *Client) postJSON(ctx context.Context, endpoint, apiKey string, body, out any) error {
	httpReq, release, err := newJSONRequest(ctx, endpoint, apiKey, body)
	if err != nil {
		return err
	}
	defer release()
	if apiKey == "" {
		c.logger.Debug("API request without key", "endpoint", endpoint)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// A cancelled or expired context is final, anything else is a transport blip
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &APIError{
			Message:   fmt.Sprintf("request failed: %v", err),
			Retryable: true,
		}
	}
	defer func() {
		if err := httpResp.Body.Close(); err != nil {
			c.logger.Warn("Failed to close response body", "error", err)
		}
	}()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return newAPIError(httpResp.StatusCode, respBody)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func newAPIError(statusCode int, body []byte) *APIError {
	retryable := isStatusCodeRetryable(statusCode)

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		return &APIError{
			Message:    errResp.Error.Message,
			StatusCode: statusCode,
			Type:       errResp.Error.Type,
			Code:       errResp.Error.Code,
			Retryable:  retryable,
		}
	}

	return &APIError{
		Message:    fmt.Sprintf("API request failed with status %d: %s", statusCode, string(body)),
		StatusCode: statusCode,
		Retryable:  retryable,
	}
}

func endpointURL(baseURL, path string) string {
	return strings.TrimRight(baseURL, "/") + "/" + path
}

func isRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable
	}
	return false
}

func isRateLimitError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests
	}
	return false
}

func isStatusCodeRetryable(statusCode int) bool {
	// Retry on rate limits and server errors
	return statusCode == http.StatusTooManyRequests ||
		statusCode == http.StatusInternalServerError ||
		statusCode == http.StatusBadGateway ||
		statusCode == http.StatusServiceUnavailable ||
		statusCode == http.StatusGatewayTimeout
}

// APIError represents an error returned by the API
type APIError struct {
	Message    string
	StatusCode int
	Type       string
	Code       string
	Retryable  bool
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error: %s", e.Message)
}
