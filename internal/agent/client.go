package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"cardiovision/internal/observability/metrics"
	"cardiovision/pkg/logging"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1/chat/completions"
	defaultModel   = "deepseek/deepseek-chat"

	temperature = 0.7
	maxTokens   = 1000

	maxErrorBody = 2048
)

// Config describes the chat completion endpoint.
type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// Client is a stateless chat completion adapter. Every call is independent.
type Client struct {
	cfg        Config
	httpClient *http.Client
	metrics    *metrics.ConsultationMetrics
	logger     *logging.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the transport. The client's own Timeout is kept as is.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithMetrics(m *metrics.ConsultationMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithLogger(l *logging.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Millisecond
	}
	c := &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.Default()
	}
	return c
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.cfg.APIKey != ""
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// StatusError is a non-2xx reply from the endpoint.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("chat completion returned status %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("chat completion returned status %d %s: %s", e.Code, http.StatusText(e.Code), e.Body)
}

// Transient reports whether a retry might succeed.
func (e *StatusError) Transient() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// ErrMalformedResponse is returned when the reply lacks choices[0].message.content.
var ErrMalformedResponse = errors.New("malformed chat completion response")

// Complete sends one system+user exchange and returns the first choice's
// content. Failures are reported in the returned Completion, never panicked
// or dropped.
func (c *Client) Complete(ctx context.Context, prompt, system string) Completion {
	if !c.Configured() {
		return notConfigured()
	}

	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return failed(fmt.Errorf("encode request: %w", err))
	}

	var reply string
	backoff := retry.WithMaxRetries(uint64(c.cfg.MaxRetries), retry.NewConstant(c.cfg.RetryBackoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		text, err := c.send(ctx, body)
		if err == nil {
			c.metrics.ObserveAIAttempt("ok")
			reply = text
			return nil
		}
		if isTransient(ctx, err) {
			c.metrics.ObserveAIAttempt("retryable_error")
			c.logger.Warn("chat completion attempt failed, will retry", "error", err)
			return retry.RetryableError(err)
		}
		c.metrics.ObserveAIAttempt("error")
		return err
	})
	if err != nil {
		c.logger.Error("chat completion failed", "error", err, "model", c.cfg.Model)
		return failed(err)
	}
	return ok(reply)
}

func (c *Client) send(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", ErrMalformedResponse)
	}
	content := decoded.Choices[0].Message.Content
	if content == nil {
		return "", fmt.Errorf("%w: missing message content", ErrMalformedResponse)
	}
	if strings.TrimSpace(*content) == "" {
		return "", fmt.Errorf("%w: empty message content", ErrMalformedResponse)
	}
	return *content, nil
}

func isTransient(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Transient()
	}
	if errors.Is(err, ErrMalformedResponse) {
		return false
	}
	// Anything else came from the transport.
	return true
}
