package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/retry"

	"reminderdesk/internal/config"
	"reminderdesk/internal/events"
)

const (
	HeaderEvent     = "X-Reminderdesk-Event"
	HeaderDelivery  = "X-Reminderdesk-Delivery"
	HeaderSignature = "X-Reminderdesk-Signature"
)

// Sign returns the hex HMAC-SHA256 of body under secret, prefixed "sha256=".
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Post sends body to url with the delivery headers. Non-2xx responses are
// errors carrying a bounded copy of the response body.
func Post(ctx context.Context, client *http.Client, url, secret, evtType, delivery string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEvent, evtType)
	req.Header.Set(HeaderDelivery, delivery)
	if strings.TrimSpace(secret) != "" {
		req.Header.Set(HeaderSignature, Sign(secret, body))
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}
	return nil
}

type alertPayload struct {
	Type string `json:"type"`
	Alert
}

// WebhookSink posts alert.due deliveries to a configured hook, retrying with
// the hook's strategy. Every attempt carries the same delivery id.
type WebhookSink struct {
	Hook     config.WebhookConfig
	Client   *http.Client
	Strategy retry.Strategy
}

func NewWebhookSink(hook config.WebhookConfig) *WebhookSink {
	return &WebhookSink{
		Hook:     hook,
		Client:   &http.Client{Timeout: HookTimeout(hook)},
		Strategy: hook.Strategy(),
	}
}

// HookTimeout is the per-request timeout for hook, 5s when unset.
func HookTimeout(hook config.WebhookConfig) time.Duration {
	if hook.TimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(hook.TimeoutSeconds) * time.Second
}

// PostWithRetry is Post under strategy. A cancelled ctx stops further attempts.
func PostWithRetry(ctx context.Context, client *http.Client, hook config.WebhookConfig, strategy retry.Strategy, evtType, delivery string, body []byte) error {
	return retry.Do(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return Post(ctx, client, hook.URL, hook.Secret, evtType, delivery, body)
	}, strategy)
}

func (s *WebhookSink) Name() string { return "webhook:" + s.Hook.Key() }

func (s *WebhookSink) Notify(ctx context.Context, a Alert) error {
	if !s.Hook.IsEnabled() || !s.Hook.Accepts(events.AlertDue) {
		return nil
	}
	body, err := json.Marshal(alertPayload{Type: events.AlertDue, Alert: a})
	if err != nil {
		return err
	}
	return PostWithRetry(ctx, s.Client, s.Hook, s.Strategy, events.AlertDue, uuid.NewString(), body)
}

// Sinks builds the configured delivery chain. The log sink is always first.
func Sinks(cfg *config.Config, log Sink) []Sink {
	out := []Sink{log}
	if cfg == nil {
		return out
	}
	if cfg.Notify.Email.Enabled {
		out = append(out, NewMailSink(cfg.Notify.Email))
	}
	for _, hook := range cfg.Notify.Webhooks {
		if hook.IsEnabled() && hook.Accepts(events.AlertDue) {
			out = append(out, NewWebhookSink(hook))
		}
	}
	return out
}
