// Package notify delivers due-alert notifications to logs, email and webhooks.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"reminderdesk/internal/domain"
	"reminderdesk/internal/metrics"
)

// Alert is one due reminder surfaced to one viewer.
type Alert struct {
	Reminder domain.Reminder `json:"reminder"`
	Viewer   domain.Viewer   `json:"viewer"`
	At       time.Time       `json:"at"`
}

func (a Alert) Subject() string {
	return fmt.Sprintf("[%s] Reminder due: %s", a.Reminder.Priority, a.Reminder.Title)
}

func (a Alert) Body() string {
	r := a.Reminder
	when := r.DueDate
	if r.DueTime != "" {
		when += " " + r.DueTime
	}
	body := fmt.Sprintf("%s\n\nPriority: %s\nDue: %s\nAlert: %s\nCreated by: %s\nStatus: %s\n",
		r.Title, r.Priority, when, r.AlertTime, r.CreatedBy, r.Status)
	if r.Description != "" {
		body += "\n" + r.Description + "\n"
	}
	return body
}

type Sink interface {
	Notify(ctx context.Context, a Alert) error
}

type SinkFunc func(ctx context.Context, a Alert) error

func (f SinkFunc) Notify(ctx context.Context, a Alert) error { return f(ctx, a) }

type namer interface {
	Name() string
}

func sinkName(s Sink) string {
	if n, ok := s.(namer); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", s)
}

// Multi fans an alert out to every sink. A failing sink does not stop the
// others; all failures are joined.
type Multi struct {
	Sinks   []Sink
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

func (m Multi) Notify(ctx context.Context, a Alert) error {
	var errs []error
	for _, s := range m.Sinks {
		if s == nil {
			continue
		}
		if err := s.Notify(ctx, a); err != nil {
			name := sinkName(s)
			m.Metrics.NotifyFailure(name)
			if m.Logger != nil {
				m.Logger.Warn("alert delivery failed", zap.String("sink", name),
					zap.String("reminder", a.Reminder.ID), zap.Error(err))
			}
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// LogSink writes alerts to the structured log.
type LogSink struct {
	Logger *zap.Logger
}

func (LogSink) Name() string { return "log" }

func (s LogSink) Notify(_ context.Context, a Alert) error {
	if s.Logger == nil {
		return nil
	}
	s.Logger.Info("reminder due",
		zap.String("id", a.Reminder.ID),
		zap.String("title", a.Reminder.Title),
		zap.String("priority", string(a.Reminder.Priority)),
		zap.String("alert_time", a.Reminder.AlertTime),
		zap.String("viewer", a.Viewer.String()),
		zap.Time("at", a.At),
	)
	return nil
}
