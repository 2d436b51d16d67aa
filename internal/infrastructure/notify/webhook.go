package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"PostTranslator/internal/ports"
)

// Webhook forwards notifications to the host's message bus endpoint.
type Webhook struct {
	url   string
	token string
	http  *resty.Client
}

var _ ports.Notifier = (*Webhook)(nil)

type webhookBody struct {
	Channel string `json:"channel"`
	Payload any    `json:"payload"`
}

// NewWebhook registers the target URL and an optional bearer token.
func NewWebhook(url, token string, timeout time.Duration) *Webhook {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Webhook{
		url:   strings.TrimSpace(url),
		token: token,
		http:  resty.New().SetTimeout(timeout),
	}
}

// Publish posts {channel, payload} as JSON.
func (w *Webhook) Publish(ctx context.Context, channel string, payload any) error {
	if w.url == "" || w.http == nil {
		return fmt.Errorf("webhook notifier misconfigured")
	}

	req := w.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(webhookBody{Channel: channel, Payload: payload})
	if w.token != "" {
		req.SetAuthToken(w.token)
	}

	resp, err := req.Post(w.url)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("webhook error: %s", resp.Status())
	}
	return nil
}
