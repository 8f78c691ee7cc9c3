// internal/assistant/client.go
package assistant

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	apperrors "whatsapp-sales-workers/internal/common/errors"
	commonhttp "whatsapp-sales-workers/internal/common/http"
)

const (
	DefaultBaseURL = "https://api.mistral.ai"
	DefaultModel   = "mistral-small-latest"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options tune a single completion.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// Completer returns the model's answer to a conversation.
type Completer interface {
	Complete(ctx context.Context, messages []Message, opts Options) (string, error)
}

type ClientConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client calls the Mistral chat completions API.
type Client struct {
	cfg  ClientConfig
	http *commonhttp.Client
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, http: commonhttp.NewClient(cfg.Timeout, 1)}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

func (c *Client) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	if c.cfg.APIKey == "" {
		return "", apperrors.NewConfigurationError("apis.genai.api_key", "Mistral API key is not configured")
	}

	req := chatRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}

	var resp chatResponse
	if err := c.http.DoJSON(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/chat/completions", headers, req, &resp); err != nil {
		return "", mapError(err)
	}
	if len(resp.Choices) == 0 {
		return "", apperrors.NewLLMGenerationError(errors.New("empty choices"))
	}
	return resp.Choices[0].Message.Content, nil
}

func mapError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewLLMTimeoutError(err)
	}
	var statusErr *commonhttp.StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusUnauthorized:
			return apperrors.NewLLMGenerationError(errors.New("invalid or expired Mistral API key"))
		case http.StatusTooManyRequests:
			return apperrors.NewLLMGenerationError(errors.New("Mistral rate limit reached"))
		}
	}
	return apperrors.NewLLMGenerationError(err)
}
