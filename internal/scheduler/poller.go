// Package scheduler drives alert evaluation for one viewer session on two
// cadences: a snapshot refresh and an alert check.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"reminderdesk/internal/alert"
	"reminderdesk/internal/domain"
	"reminderdesk/internal/metrics"
	"reminderdesk/internal/notify"
)

const (
	DefaultAlertInterval   = 30 * time.Second
	DefaultRefreshInterval = 10 * time.Second
)

// Source supplies the reminders visible to a viewer.
type Source interface {
	VisibleReminders(ctx context.Context, v domain.Viewer) ([]domain.Reminder, error)
}

// Poller owns a session's snapshot and shown set. Neither is persisted or
// shared with other sessions.
type Poller struct {
	Source          Source
	Viewer          domain.Viewer
	Evaluator       alert.Evaluator
	Sink            notify.Sink
	Logger          *zap.Logger
	Metrics         *metrics.Metrics
	Now             func() time.Time
	AlertInterval   time.Duration
	RefreshInterval time.Duration

	mu       sync.Mutex
	snapshot []domain.Reminder
	shown    alert.ShownSet
}

func (p *Poller) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Poller) log() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}

// Run refreshes and checks once immediately, then on each interval until ctx
// is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	alertEvery := p.AlertInterval
	if alertEvery <= 0 {
		alertEvery = DefaultAlertInterval
	}
	refreshEvery := p.RefreshInterval
	if refreshEvery <= 0 {
		refreshEvery = DefaultRefreshInterval
	}
	p.Refresh(ctx)
	p.Check(ctx)

	alertTick := time.NewTicker(alertEvery)
	defer alertTick.Stop()
	refreshTick := time.NewTicker(refreshEvery)
	defer refreshTick.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-refreshTick.C:
			p.Refresh(ctx)
		case <-alertTick.C:
			p.Check(ctx)
		}
	}
}

// Refresh reloads the snapshot. A failed read leaves an empty snapshot.
func (p *Poller) Refresh(ctx context.Context) {
	list, err := p.Source.VisibleReminders(ctx, p.Viewer)
	if err != nil {
		p.log().Warn("refresh reminders failed", zap.String("viewer", p.Viewer.String()), zap.Error(err))
		list = nil
	}
	p.mu.Lock()
	p.snapshot = list
	p.mu.Unlock()
}

// Check evaluates the snapshot, marks emitted ids as shown and delivers them.
// It returns the emitted alerts.
func (p *Poller) Check(ctx context.Context) []notify.Alert {
	now := p.now()
	p.mu.Lock()
	if p.shown == nil {
		p.shown = alert.NewShownSet()
	}
	ids := p.Evaluator.Evaluate(p.snapshot, p.Viewer, now, p.shown)
	p.shown.Add(ids...)
	byID := make(map[string]domain.Reminder, len(p.snapshot))
	for _, r := range p.snapshot {
		byID[r.ID] = r
	}
	p.mu.Unlock()

	p.Metrics.Evaluated(len(ids))
	alerts := make([]notify.Alert, 0, len(ids))
	for _, id := range ids {
		a := notify.Alert{Reminder: byID[id], Viewer: p.Viewer, At: now}
		alerts = append(alerts, a)
		if p.Sink == nil {
			continue
		}
		if err := p.Sink.Notify(ctx, a); err != nil {
			p.log().Warn("alert notify failed", zap.String("reminder", id), zap.Error(err))
		}
	}
	return alerts
}

// Rearm takes a reminder just written by a snooze: it replaces the snapshot
// copy so the old alert instant cannot fire, and drops the id from the shown
// set so the new instant can.
func (p *Poller) Rearm(r domain.Reminder) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shown != nil {
		p.shown.Forget(r.ID)
	}
	next := make([]domain.Reminder, 0, len(p.snapshot)+1)
	replaced := false
	for _, cur := range p.snapshot {
		if cur.ID == r.ID {
			cur, replaced = r, true
		}
		next = append(next, cur)
	}
	if !replaced {
		next = append(next, r)
	}
	p.snapshot = next
}

func (p *Poller) Shown() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shown.IDs()
}
