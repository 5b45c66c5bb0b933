package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/phrazzld/essaymark/internal/config"
	"github.com/phrazzld/essaymark/internal/generation"
	"github.com/phrazzld/essaymark/internal/platform/logger"
	"github.com/phrazzld/essaymark/internal/redact"
)

// maxErrorBody caps how much of a failed response body is kept in errors.
const maxErrorBody = 512

// Client calls a chat-completions endpoint.
type Client struct {
	httpClient  *http.Client
	endpoint    string
	apiKey      string
	model       string
	temperature float32
	retry       generation.RetryPolicy
	logger      *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRetryPolicy replaces the retry policy derived from the configuration.
func WithRetryPolicy(p generation.RetryPolicy) Option {
	return func(c *Client) {
		c.retry = p
	}
}

// NewClient creates a chat-completions client from the inference configuration.
func NewClient(log *slog.Logger, cfg config.InferenceConfig, opts ...Option) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("%w: endpoint cannot be empty", generation.ErrInvalidConfig)
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: API key cannot be empty", generation.ErrInvalidConfig)
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("%w: model cannot be empty", generation.ErrInvalidConfig)
	}

	c := &Client{
		// Attempts are bounded by the retry policy's per-attempt context.
		httpClient:  &http.Client{},
		endpoint:    cfg.Endpoint,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		retry:       generation.NewRetryPolicy(cfg),
		logger:      log.With("component", "openai_client"),
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.retry.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// buildRequest assembles one user message: the instruction, then each image.
func (c *Client) buildRequest(req generation.Request) chatRequest {
	parts := make([]contentPart, 0, len(req.Images)+1)
	parts = append(parts, contentPart{Type: "text", Text: req.Instruction})
	for _, img := range req.Images {
		parts = append(parts, contentPart{
			Type:     "image_url",
			ImageURL: &imageURL{URL: img.DataURL()},
		})
	}

	return chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: parts}},
		Temperature: c.temperature,
	}
}

// Infer implements generation.Inferencer.
func (c *Client) Infer(ctx context.Context, req generation.Request) (generation.Result, error) {
	body, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return generation.Result{}, fmt.Errorf("%w: encode request: %v", generation.ErrInvalidConfig, err)
	}

	return c.retry.Do(ctx, func(attemptCtx context.Context) (string, error) {
		return c.send(attemptCtx, body)
	})
}

// send performs one POST and parses the first choice.
func (c *Client) send(ctx context.Context, body []byte) (string, error) {
	log := logger.FromContextOrDefault(ctx, c.logger)
	reqID := uuid.New().String()
	start := time.Now()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", generation.ErrNonRetryable, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	log.DebugContext(ctx, "inference.http.request",
		"req_id", reqID,
		"model", c.model,
		"content_length", len(body))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.WarnContext(ctx, "inference.http.send_error",
			"req_id", reqID,
			"error", redact.Error(err),
			"elapsed_ms", time.Since(start).Milliseconds())
		return "", err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			log.WarnContext(ctx, "inference.http.response_body_close_error", "req_id", reqID, "error", cerr)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}

	log.DebugContext(ctx, "inference.http.response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds())

	if resp.StatusCode != http.StatusOK {
		return "", &generation.StatusError{
			StatusCode: resp.StatusCode,
			Body:       redact.String(truncate(string(raw), maxErrorBody)),
		}
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("%w: %v", generation.ErrInvalidResponse, err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == nil {
		return "", nil
	}
	return *parsed.Choices[0].Message.Content, nil
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
