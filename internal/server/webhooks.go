package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/wb-go/wbf/retry"
	"go.uber.org/zap"

	"reminderdesk/internal/config"
	"reminderdesk/internal/domain"
	"reminderdesk/internal/engine"
	"reminderdesk/internal/notify"
	"reminderdesk/internal/repo"
)

const (
	defaultWebhookInterval = 2 * time.Second
	defaultWebhookBatch    = 100
)

// WebhookDispatcher forwards audit events to configured webhooks. Each hook
// keeps a persisted cursor so restarts neither replay nor skip events. A
// delivery that still fails after the hook's retries holds the cursor at that
// event until the next pass. Retry, when set, overrides each hook's strategy.
type WebhookDispatcher struct {
	Engine   engine.Engine
	Hooks    []config.WebhookConfig
	Interval time.Duration
	Logger   *zap.Logger
	Retry    func(config.WebhookConfig) retry.Strategy
	client   *http.Client
}

func NewWebhookDispatcher(e engine.Engine, logger *zap.Logger) *WebhookDispatcher {
	var hooks []config.WebhookConfig
	if e.Config != nil {
		for _, h := range e.Config.Notify.Webhooks {
			if h.IsEnabled() {
				hooks = append(hooks, h)
			}
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookDispatcher{
		Engine:   e,
		Hooks:    hooks,
		Interval: defaultWebhookInterval,
		Logger:   logger,
		client:   &http.Client{},
	}
}

// Run dispatches until ctx is cancelled. It returns immediately when no hook
// is configured.
func (d *WebhookDispatcher) Run(ctx context.Context) {
	if len(d.Hooks) == 0 {
		return
	}
	interval := d.Interval
	if interval <= 0 {
		interval = defaultWebhookInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		d.DispatchAll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (d *WebhookDispatcher) DispatchAll(ctx context.Context) {
	for _, hook := range d.Hooks {
		if ctx.Err() != nil {
			return
		}
		d.dispatch(ctx, hook)
	}
}

func (d *WebhookDispatcher) dispatch(ctx context.Context, hook config.WebhookConfig) {
	log := d.Logger.With(zap.String("webhook", hook.Key()))
	cursor, err := d.cursorFor(ctx, hook)
	if err != nil {
		log.Warn("webhook cursor unavailable", zap.Error(err))
		return
	}
	evts, err := d.Engine.Repo.EventsAfter(ctx, cursor, defaultWebhookBatch)
	if err != nil {
		log.Warn("webhook fetch events failed", zap.Error(err))
		return
	}
	if len(evts) == 0 {
		return
	}
	last := cursor
	for _, evt := range evts {
		if hook.Accepts(evt.Type) {
			if err := d.post(ctx, hook, evt); err != nil {
				d.Engine.Metrics.NotifyFailure("webhook:" + hook.Key())
				log.Warn("webhook delivery failed", zap.Int64("event", evt.ID), zap.Error(err))
				break
			}
		}
		last = evt.ID
	}
	if last == cursor {
		return
	}
	if err := d.Engine.Repo.SetWebhookCursor(ctx, hook.Key(), last, time.Now()); err != nil {
		log.Warn("webhook cursor save failed", zap.Error(err))
	}
}

// cursorFor starts a hook with no saved cursor at the current head.
func (d *WebhookDispatcher) cursorFor(ctx context.Context, hook config.WebhookConfig) (int64, error) {
	cur, err := d.Engine.Repo.WebhookCursor(ctx, hook.Key())
	if err == nil {
		return cur, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return 0, err
	}
	head, err := d.Engine.Repo.LatestEventID(ctx)
	if err != nil {
		return 0, err
	}
	if err := d.Engine.Repo.SetWebhookCursor(ctx, hook.Key(), head, time.Now()); err != nil {
		return 0, err
	}
	return head, nil
}

type webhookEvent struct {
	ID         int64          `json:"id"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	TS         string         `json:"ts"`
	Payload    map[string]any `json:"payload"`
}

func (d *WebhookDispatcher) post(ctx context.Context, hook config.WebhookConfig, evt domain.Event) error {
	resp := eventResponse(evt)
	data, err := json.Marshal(webhookEvent{
		ID:         resp.ID,
		Type:       resp.Type,
		EntityKind: resp.EntityKind,
		EntityID:   resp.EntityID,
		ActorID:    resp.ActorID,
		TS:         resp.TS,
		Payload:    resp.Payload,
	})
	if err != nil {
		return err
	}
	client := d.client
	if timeout := notify.HookTimeout(hook); client == nil || client.Timeout != timeout {
		client = &http.Client{Timeout: timeout}
	}
	return notify.PostWithRetry(ctx, client, hook, d.strategy(hook), evt.Type, strconv.FormatInt(evt.ID, 10), data)
}

func (d *WebhookDispatcher) strategy(hook config.WebhookConfig) retry.Strategy {
	if d.Retry != nil {
		return d.Retry(hook)
	}
	return hook.Strategy()
}
