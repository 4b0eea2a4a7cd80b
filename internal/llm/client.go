// Package llm implements the generation capability against an
// OpenAI-compatible chat-completions endpoint.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/parallaxlabs/deepresearch/internal/metrics"
)

// Config holds the generation endpoint settings.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// Client calls a chat-completions endpoint. Safe for concurrent use.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// NewClient builds a generation client with a bounded request timeout.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Complete sends an optional system prompt plus a user prompt and returns
// the model's text. Callers are expected to tolerate errors with their own
// fallbacks.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: user})

	body, err := json.Marshal(map[string]interface{}{
		"model":       c.cfg.Model,
		"temperature": c.cfg.Temperature,
		"messages":    messages,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.cfg.BaseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	metrics.LLMCalls.Inc()
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.LLMErrors.Inc()
		return "", fmt.Errorf("generation request failed: %w", err)
	}
	defer resp.Body.Close()
	metrics.LLMLatency.Observe(time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.LLMErrors.Inc()
		return "", fmt.Errorf("HTTP %d from generation endpoint", resp.StatusCode)
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		metrics.LLMErrors.Inc()
		return "", fmt.Errorf("failed to decode generation response: %w", err)
	}
	if len(out.Choices) == 0 {
		metrics.LLMErrors.Inc()
		return "", fmt.Errorf("generation response contained no choices")
	}
	return out.Choices[0].Message.Content, nil
}
