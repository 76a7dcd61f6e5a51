// Package notify delivers operator error reports to a Discord-compatible
// webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultURLEnv is the environment variable holding the webhook URL.
const DefaultURLEnv = "DISCORD_ERROR_WEBHOOK"

const defaultTimeout = 5 * time.Second

// ErrNoWebhookURL is returned when no webhook URL is configured at send time.
var ErrNoWebhookURL = errors.New("notify: webhook url not configured")

// Webhook posts messages as {"content": "..."}.
type Webhook struct {
	// URL returns the webhook endpoint. It is consulted on every send so the
	// secret can be rotated without a restart.
	URL func() string
	// Mention, when set, is a Discord user or role ID pinged on every message.
	Mention string

	client *http.Client
}

// NewWebhook returns a Webhook reading its URL from the environment variable
// urlEnv (DefaultURLEnv when empty).
func NewWebhook(urlEnv, mention string, timeout time.Duration) *Webhook {
	if urlEnv == "" {
		urlEnv = DefaultURLEnv
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Webhook{
		URL:     func() string { return os.Getenv(urlEnv) },
		Mention: mention,
		client:  &http.Client{Timeout: timeout},
	}
}

type payload struct {
	Content string `json:"content"`
}

// Notify posts message. Any non-2xx answer is an error.
func (w *Webhook) Notify(ctx context.Context, message string) error {
	ctx, span := otel.Tracer("notify/Webhook").Start(ctx, "Notify",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	if err := w.send(ctx, message); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (w *Webhook) send(ctx context.Context, message string) error {
	var url string
	if w.URL != nil {
		url = w.URL()
	}
	if url == "" {
		return ErrNoWebhookURL
	}

	content := message
	if w.Mention != "" {
		content = fmt.Sprintf("<@%s> %s", w.Mention, message)
	}
	body, err := json.Marshal(payload{Content: content})
	if err != nil {
		return fmt.Errorf("notify: encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := w.client
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notify: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
