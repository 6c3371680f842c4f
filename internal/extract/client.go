// Package extract turns filtered emails into structured candidate
// travel records via an OpenAI-compatible chat API. Batching, body
// truncation, retry state, and rate-limit pacing all live here.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// ClientConfig holds chat API configuration.
type ClientConfig struct {
	Endpoint    string // full chat-completions URL
	Model       string
	APIKey      string
	TimeoutSecs int // per-request timeout (default 60)
}

// Validate checks the configuration is usable.
func (c ClientConfig) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.APIKey == "" {
		return fmt.Errorf("API key is required (set OPENAI_API_KEY or the config file)")
	}
	return nil
}

// Completer is the extraction capability boundary: prompt text in,
// response text out, with transient and permanent failures
// distinguishable by error type.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Client talks to an OpenAI-compatible chat completions API.
type Client struct {
	cfg  ClientConfig
	http *http.Client
}

// NewClient creates a chat client with the configured timeout.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.TimeoutSecs
	if timeout <= 0 {
		timeout = 60
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: time.Duration(timeout) * time.Second},
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends one prompt and returns the assistant's text.
// HTTP 429 and 5xx map to TransientAPIError; 4xx to PermanentAPIError.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	req := chatRequest{
		Model:       c.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 0.1,
		MaxTokens:   1500,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		// Only a dead parent context propagates raw; a per-request
		// timeout also reports context.DeadlineExceeded but is a
		// network-level failure and must stay retryable.
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &TransientAPIError{Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransientAPIError{Message: fmt.Sprintf("reading response: %v", err)}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", &TransientAPIError{
			StatusCode: resp.StatusCode,
			Message:    truncateForError(respBody),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	default:
		return "", &PermanentAPIError{StatusCode: resp.StatusCode, Message: truncateForError(respBody)}
	}

	var chat chatResponse
	if err := json.Unmarshal(respBody, &chat); err != nil {
		return "", fmt.Errorf("parsing response JSON: %w", err)
	}
	if len(chat.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return chat.Choices[0].Message.Content, nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func truncateForError(body []byte) string {
	const limit = 300
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
