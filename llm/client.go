// Package llm provides a provider-agnostic chat-completion client with
// endpoint fallback, plus the strategies used to pull JSON out of free-form
// model output.
package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/c360studio/rolefit/model"
	"github.com/google/uuid"
)

// maxResponseSize limits the provider response body.
const maxResponseSize = 4 * 1024 * 1024 // 4MB

// Completer is the behavior generators depend on. *Client implements it.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Client sends completion requests to the endpoints a model.Registry resolves.
type Client struct {
	registry    *model.Registry
	httpClient  *http.Client
	retryConfig RetryConfig
	logger      *slog.Logger
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`    // "system", "user", or "assistant"
	Content string `json:"content"` // Message content
}

// Request defines a completion request.
type Request struct {
	// Capability selects the endpoints through the registry.
	Capability model.Capability

	// Messages is the chat history to send.
	Messages []Message

	// Temperature controls randomness. nil uses the endpoint default.
	Temperature *float64

	// MaxTokens limits response length. 0 uses the endpoint default.
	MaxTokens int
}

// TokenUsage represents token consumption for a call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response contains the completion result.
type Response struct {
	// RequestID identifies the call in logs.
	RequestID string

	// Content is the generated text, untrusted as to format.
	Content string

	// Model is the model that answered.
	Model string

	// Usage contains token consumption when the provider reports it.
	Usage TokenUsage

	// FinishReason indicates why generation stopped.
	FinishReason string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithRetryConfig sets the retry configuration.
func WithRetryConfig(cfg RetryConfig) ClientOption {
	return func(client *Client) {
		client.retryConfig = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(client *Client) {
		if logger != nil {
			client.logger = logger
		}
	}
}

// NewClient creates a client over the given registry.
func NewClient(registry *model.Registry, opts ...ClientOption) *Client {
	c := &Client{
		registry:    registry,
		retryConfig: DefaultRetryConfig(),
		httpClient: &http.Client{
			Timeout: 90 * time.Second,
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Complete sends a completion request, walking the capability's fallback chain.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	if req.Capability == "" {
		return nil, NewFatalError(errors.New("capability is required"))
	}
	if len(req.Messages) == 0 {
		return nil, NewFatalError(errors.New("at least one message is required"))
	}

	requestID := uuid.New().String()
	startedAt := time.Now()
	log := c.logger.With("request_id", requestID, "capability", req.Capability)

	chain := c.registry.GetAvailableFallbackChain(req.Capability)
	if len(chain) == 0 {
		return nil, NewFatalError(fmt.Errorf("no models configured for capability %s", req.Capability))
	}

	var lastErr error
	for _, name := range chain {
		endpoint := c.registry.GetEndpoint(name)
		if endpoint == nil {
			log.Debug("No endpoint for model, skipping", "model", name)
			continue
		}

		resp, err := c.tryEndpoint(ctx, log, endpoint, name, req)
		if err == nil {
			resp.RequestID = requestID
			log.Debug("Completion succeeded",
				"model", resp.Model,
				"duration", time.Since(startedAt),
				"total_tokens", resp.Usage.TotalTokens)
			return resp, nil
		}

		lastErr = err
		log.Warn("Endpoint failed",
			"model", name,
			"provider", endpoint.Provider,
			"error", err)

		if IsFatal(err) || ctx.Err() != nil {
			return nil, err
		}
	}

	if lastErr == nil {
		return nil, NewFatalError(fmt.Errorf("no usable endpoint for capability %s", req.Capability))
	}
	return nil, fmt.Errorf("all endpoints failed for capability %s: %w", req.Capability, lastErr)
}

// tryEndpoint attempts a request up to MaxAttempts times, backing off between
// transient failures.
func (c *Client) tryEndpoint(ctx context.Context, log *slog.Logger, ep *model.EndpointConfig, name string, req Request) (*Response, error) {
	attempts := max(c.retryConfig.MaxAttempts, 1)
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := c.doRequest(ctx, ep, req)
		if err == nil {
			c.registry.MarkEndpointSuccess(name)
			return resp, nil
		}

		lastErr = err
		if IsFatal(err) {
			return nil, err
		}

		if attempt < attempts {
			backoff := c.calculateBackoff(attempt)
			log.Debug("Request failed, retrying",
				"attempt", attempt,
				"max_attempts", attempts,
				"backoff", backoff,
				"error", err)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	c.registry.MarkEndpointFailure(name)
	return nil, lastErr
}

// calculateBackoff computes exponential backoff with +/- 25% jitter.
func (c *Client) calculateBackoff(attempt int) time.Duration {
	multiplier := 1.0
	for i := 1; i < attempt; i++ {
		multiplier *= c.retryConfig.BackoffMultiplier
	}

	backoff := time.Duration(float64(c.retryConfig.BackoffBase) * multiplier)
	if backoff > c.retryConfig.MaxBackoff {
		backoff = c.retryConfig.MaxBackoff
	}

	jitter := float64(backoff) * 0.25 * (rand.Float64()*2 - 1)
	return backoff + time.Duration(jitter)
}

// doRequest executes a single HTTP request to an endpoint.
func (c *Client) doRequest(ctx context.Context, ep *model.EndpointConfig, req Request) (*Response, error) {
	provider := GetProvider(ep.Provider)
	if provider == nil {
		return nil, NewFatalError(fmt.Errorf("unknown provider: %s", ep.Provider))
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = ep.MaxTokens
	}

	body, err := provider.BuildRequestBody(ep.Model, req.Messages, req.Temperature, maxTokens)
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("build request body: %w", err))
	}

	url := provider.BuildURL(ep.URL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("create HTTP request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	provider.SetHeaders(httpReq)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("HTTP request: %w", ctx.Err())
		}
		return nil, NewTransientError(fmt.Errorf("HTTP request failed: %w", err))
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("read response body: %w", err))
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, classifyHTTPError(httpResp.StatusCode, respBody)
	}

	resp, err := provider.ParseResponse(respBody, ep.Model)
	if err != nil {
		return nil, NewFatalError(err)
	}
	return resp, nil
}

// classifyHTTPError determines if an HTTP error is transient or fatal.
func classifyHTTPError(statusCode int, body []byte) error {
	bodyStr := string(body)
	if len(bodyStr) > 200 {
		bodyStr = bodyStr[:200] + "..."
	}

	err := &StatusError{StatusCode: statusCode, Body: bodyStr}

	switch {
	case statusCode == http.StatusTooManyRequests, statusCode >= 500:
		return NewTransientError(err)
	default:
		// 4xx and anything unexpected will not improve on retry.
		return NewFatalError(err)
	}
}
