package llm

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"PostTranslator/internal/domain"
	"PostTranslator/internal/parser"
	"PostTranslator/internal/ports"
)

const (
	completionsPath = "/v1/chat/completions"
	logBodyLimit    = 4000
	defaultTimeout  = 60 * time.Second
)

// Client implements ports.ChatCompleter for OpenAI-compatible APIs.
type Client struct {
	http   *resty.Client
	logger *slog.Logger
}

var _ ports.ChatCompleter = (*Client)(nil)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

// NewClient builds a client with a finite request timeout.
func NewClient(timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		http:   resty.New().SetTimeout(timeout),
		logger: logger,
	}
}

// Complete posts a single user message and decodes the completion envelope.
// Non-2xx answers are mapped to modeled provider errors; transport failures
// surface as network errors.
func (c *Client) Complete(ctx context.Context, req domain.ChatRequest) (domain.ChatCompletion, error) {
	if c == nil || c.http == nil {
		return domain.ChatCompletion{}, domain.NewError(domain.KindConfig, "chat client is nil")
	}
	if req.APIKey == "" || req.BaseURL == "" || req.Model == "" {
		return domain.ChatCompletion{}, domain.NewError(domain.KindConfig, "chat client misconfigured")
	}

	body := chatRequest{
		Model:       req.Model,
		Messages:    []chatMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+req.APIKey).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(Endpoint(req.BaseURL))
	if err != nil {
		return domain.ChatCompletion{}, domain.WrapError(domain.KindNetwork, "Network error", err)
	}

	c.logger.Debug("provider response",
		"status", resp.StatusCode(),
		"model", req.Model,
		"body", parser.Truncate(resp.String(), logBodyLimit),
	)

	if !resp.IsSuccess() {
		return domain.ChatCompletion{}, parser.StatusError(resp.StatusCode(), resp.Body())
	}

	completion, err := parser.ParseCompletion(resp.Body())
	if err != nil {
		c.logger.Warn("provider returned an invalid payload",
			"status", resp.StatusCode(),
			"body", parser.Truncate(resp.String(), logBodyLimit),
		)
		return domain.ChatCompletion{}, err
	}
	if completion.Model == "" {
		completion.Model = req.Model
	}
	return completion, nil
}

// Endpoint joins the provider base URL with the chat completions path.
func Endpoint(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + completionsPath
}
