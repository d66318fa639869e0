// Package llm is a small client for OpenAI-compatible chat completion
// endpoints with retry and backoff.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultBaseURL is the OpenAI API root.
const DefaultBaseURL = "https://api.openai.com/v1"

const maxResponseSize = 4 * 1024 * 1024

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a completion request. A nil Temperature uses the endpoint default.
type Request struct {
	Messages    []Message
	Temperature *float64
	MaxTokens   int
	JSONMode    bool
}

// Usage reports token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the first choice of a completion.
type Response struct {
	RequestID    string
	Content      string
	Model        string
	FinishReason string
	Usage        Usage
	Attempts     int
}

// Completer is implemented by Client and by test doubles.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Client talks to one endpoint with one model.
type Client struct {
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
	retry      RetryConfig
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL sets the API root, e.g. http://localhost:11434/v1.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithAPIKey sets the bearer token.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRetryConfig sets the retry policy.
func WithRetryConfig(cfg RetryConfig) ClientOption {
	return func(c *Client) {
		c.retry = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client for model.
func NewClient(model string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		retry:  DefaultRetryConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.MaxAttempts < 1 {
		c.retry.MaxAttempts = 1
	}
	return c
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Complete sends req, retrying transient failures with exponential backoff.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	if len(req.Messages) == 0 {
		return nil, NewFatalError(fmt.Errorf("at least one message is required"))
	}

	body, err := c.buildBody(req)
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("build request body: %w", err))
	}

	requestID := uuid.NewString()
	started := time.Now()

	var lastErr error
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		resp, err := c.do(ctx, requestID, body)
		if err == nil {
			resp.RequestID = requestID
			resp.Attempts = attempt
			c.logger.Debug("llm completion",
				"request_id", requestID,
				"model", resp.Model,
				"attempts", attempt,
				"tokens", resp.Usage.TotalTokens,
				"duration", time.Since(started))
			return resp, nil
		}
		lastErr = err

		if IsFatal(err) || ctx.Err() != nil {
			break
		}
		if attempt < c.retry.MaxAttempts {
			wait := c.backoff(attempt)
			c.logger.Warn("llm request failed, retrying",
				"request_id", requestID,
				"attempt", attempt,
				"backoff", wait,
				"error", err)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}
	}

	return nil, fmt.Errorf("completion %s: %w", requestID, lastErr)
}

func (c *Client) backoff(attempt int) time.Duration {
	d := float64(c.retry.BackoffBase)
	for i := 1; i < attempt; i++ {
		d *= c.retry.BackoffMultiplier
	}
	if ceiling := float64(c.retry.MaxBackoff); ceiling > 0 && d > ceiling {
		d = ceiling
	}
	// +/- 20% jitter
	d += d * 0.2 * (rand.Float64()*2 - 1)
	return time.Duration(d)
}

func (c *Client) endpoint() string {
	u := strings.TrimSuffix(c.baseURL, "/")
	if strings.HasSuffix(u, "/chat/completions") {
		return u
	}
	return u + "/chat/completions"
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

func (c *Client) buildBody(req Request) ([]byte, error) {
	cr := chatRequest{
		Model:       c.model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.JSONMode {
		cr.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	return json.Marshal(cr)
}

func (c *Client) do(ctx context.Context, requestID string, body []byte) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("http request: %w", err))
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("read response: %w", err))
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, statusError(httpResp.StatusCode, data)
	}

	var cr chatResponse
	if err := json.Unmarshal(data, &cr); err != nil {
		return nil, NewFatalError(fmt.Errorf("decode response: %w", err))
	}
	if len(cr.Choices) == 0 {
		return nil, NewTransientError(fmt.Errorf("response has no choices"))
	}

	return &Response{
		Content:      cr.Choices[0].Message.Content,
		Model:        cr.Model,
		FinishReason: cr.Choices[0].FinishReason,
		Usage:        cr.Usage,
	}, nil
}

// statusError maps rate limits and 5xx to transient errors, everything else to fatal.
func statusError(code int, body []byte) error {
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	err := fmt.Errorf("api status %d: %s", code, text)

	if code == http.StatusTooManyRequests || code >= 500 {
		return NewTransientError(err)
	}
	return NewFatalError(err)
}
