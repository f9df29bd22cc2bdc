package engine

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"reminderdesk/internal/domain"
	"reminderdesk/internal/events"
)

// CreateInput are parameters for creating a reminder.
type CreateInput struct {
	ID               string
	Title            string
	Description      string
	Priority         string
	DueDate          string
	DueTime          string
	AlertTime        string
	AssignedToRoles  []string
	AssignedToEmails []string `validate:"dive,email"`
	// AssignRoleMembers also addresses every active directory user holding
	// one of the assigned roles.
	AssignRoleMembers bool
}

func (e Engine) Create(ctx context.Context, in CreateInput, creator domain.Viewer) (domain.Reminder, error) {
	rem, err := e.buildReminder(in, creator)
	if err != nil {
		return domain.Reminder{}, err
	}
	if in.AssignRoleMembers {
		extra := []string{}
		for _, role := range rem.AssignedToRoles {
			emails, err := e.Repo.EmailsByRole(ctx, role)
			if err != nil {
				return domain.Reminder{}, e.fail("create", StoreError{Op: "role members", Err: err})
			}
			extra = append(extra, emails...)
		}
		rem.AssignedToEmails = rem.AssignedToEmails.Union(extra...)
		rem.SharedWith = rem.SharedWith.Union(extra...)
	}

	tx, err := e.begin(ctx, "create")
	if err != nil {
		return domain.Reminder{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertReminder(ctx, tx, rem); err != nil {
		return domain.Reminder{}, e.fail("create", StoreError{Op: "insert reminder", Err: err})
	}
	payload := events.Payload{
		"title":              rem.Title,
		"priority":           rem.Priority,
		"due_date":           rem.DueDate,
		"assigned_to_roles":  rem.AssignedToRoles,
		"assigned_to_emails": rem.AssignedToEmails,
	}
	if err := e.events().Append(ctx, tx, events.ReminderCreated, events.KindReminder, rem.ID, creator.Actor(), payload); err != nil {
		return domain.Reminder{}, e.fail("create", StoreError{Op: "append event", Err: err})
	}
	if err := e.commit(tx, "create"); err != nil {
		return domain.Reminder{}, err
	}
	e.Metrics.Transition("create")
	e.log().Info("reminder created", zap.String("id", rem.ID), zap.String("creator", creator.String()),
		zap.Strings("shared_with", rem.SharedWith))
	return rem, nil
}

func (e Engine) buildReminder(in CreateInput, creator domain.Viewer) (domain.Reminder, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return domain.Reminder{}, invalid("title", "is required")
	}
	if strings.TrimSpace(in.DueDate) == "" {
		return domain.Reminder{}, invalid("due_date", "is required")
	}
	due, err := domain.ParseDate(in.DueDate)
	if err != nil {
		return domain.Reminder{}, invalid("due_date", "%v", err)
	}
	if in.DueTime != "" {
		if _, err := domain.ParseTimeOfDay(in.DueTime); err != nil {
			return domain.Reminder{}, invalid("due_time", "%v", err)
		}
	}
	if in.AlertTime != "" {
		if _, err := domain.ParseTimeOfDay(in.AlertTime); err != nil {
			return domain.Reminder{}, invalid("alert_time", "%v", err)
		}
	}
	priority, err := domain.ParsePriority(in.Priority)
	if err != nil {
		return domain.Reminder{}, invalid("priority", "%v", err)
	}
	if !creator.Role.Valid() {
		return domain.Reminder{}, invalid("created_by", "unknown role %q", creator.Role)
	}
	var roles []domain.Role
	for _, raw := range in.AssignedToRoles {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		role, err := domain.ParseRole(raw)
		if err != nil {
			return domain.Reminder{}, invalid("assigned_to_roles", "%v", err)
		}
		roles = append(roles, role)
	}
	in.AssignedToEmails = compact(in.AssignedToEmails)
	if err := validate.Struct(in); err != nil {
		return domain.Reminder{}, fromValidator(err)
	}

	assignedRoles := domain.NewRoleSet(roles...)
	assignedEmails := domain.NewStringSet(in.AssignedToEmails...)
	shared := domain.NewStringSet(assignedRoles.Strings()...).
		Union(assignedEmails...).
		Union(string(creator.Role))

	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}
	return domain.Reminder{
		ID:               id,
		Title:            title,
		Description:      strings.TrimSpace(in.Description),
		Priority:         priority,
		DueDate:          due.Format(domain.DateLayout),
		DueTime:          strings.TrimSpace(in.DueTime),
		AlertTime:        strings.TrimSpace(in.AlertTime),
		CreatedBy:        creator.Role,
		CreatedByEmail:   domain.NormalizeEmail(creator.Email),
		AssignedToRoles:  assignedRoles,
		AssignedToEmails: assignedEmails,
		SharedWith:       shared,
		Status:           domain.StatusPending,
		CreatedAt:        e.stamp(),
	}, nil
}

// mutation changes rem in place. A false changed result skips the write and
// the event.
type mutation func(rem *domain.Reminder) (evtType string, payload events.Payload, changed bool, err error)

func (e Engine) mutate(ctx context.Context, op, id string, actor domain.Viewer, fn mutation) (domain.Reminder, error) {
	tx, err := e.begin(ctx, op)
	if err != nil {
		return domain.Reminder{}, err
	}
	defer tx.Rollback()
	rem, err := e.Repo.GetReminder(ctx, tx, id)
	if err != nil {
		return domain.Reminder{}, e.fail(op, storeErr("read reminder", "reminder", id, err))
	}
	evtType, payload, changed, err := fn(&rem)
	if err != nil {
		return domain.Reminder{}, err
	}
	if !changed {
		return rem, nil
	}
	if err := e.write(ctx, tx, rem, evtType, actor, payload); err != nil {
		return domain.Reminder{}, e.fail(op, err)
	}
	if err := e.commit(tx, op); err != nil {
		return domain.Reminder{}, err
	}
	e.Metrics.Transition(op)
	e.log().Info("reminder "+op, zap.String("id", rem.ID), zap.String("actor", actor.Actor()))
	return rem, nil
}

func (e Engine) write(ctx context.Context, tx *sql.Tx, rem domain.Reminder, evtType string, actor domain.Viewer, payload events.Payload) error {
	if err := e.Repo.UpdateReminder(ctx, tx, rem); err != nil {
		return storeErr("update reminder", "reminder", rem.ID, err)
	}
	if err := e.events().Append(ctx, tx, evtType, events.KindReminder, rem.ID, actor.Actor(), payload); err != nil {
		return StoreError{Op: "append event", Err: err}
	}
	return nil
}

// ensureTransition allows only pending -> approved and pending -> rejected.
func ensureTransition(rem domain.Reminder, to domain.Status) error {
	switch rem.Status {
	case domain.StatusPending:
		if to == domain.StatusApproved || to == domain.StatusRejected {
			return nil
		}
	}
	return InvalidTransitionError{ID: rem.ID, From: rem.Status, To: to}
}

func (e Engine) Approve(ctx context.Context, id string, actor domain.Viewer) (domain.Reminder, error) {
	return e.mutate(ctx, "approve", id, actor, func(rem *domain.Reminder) (string, events.Payload, bool, error) {
		if err := ensureTransition(*rem, domain.StatusApproved); err != nil {
			return "", nil, false, err
		}
		rem.Status = domain.StatusApproved
		rem.UpdatedBy = actor.Actor()
		rem.UpdatedAt = e.stamp()
		return events.ReminderApproved, events.Payload{"from": domain.StatusPending, "title": rem.Title}, true, nil
	})
}

func (e Engine) Reject(ctx context.Context, id string, actor domain.Viewer, reason string) (domain.Reminder, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.Reminder{}, invalid("reason", "a rejection reason is required")
	}
	return e.mutate(ctx, "reject", id, actor, func(rem *domain.Reminder) (string, events.Payload, bool, error) {
		if err := ensureTransition(*rem, domain.StatusRejected); err != nil {
			return "", nil, false, err
		}
		rem.Status = domain.StatusRejected
		rem.RejectionReason = reason
		rem.UpdatedBy = actor.Actor()
		rem.UpdatedAt = e.stamp()
		return events.ReminderRejected, events.Payload{"from": domain.StatusPending, "title": rem.Title, "reason": reason}, true, nil
	})
}

// ToggleStar flips the star in any status.
func (e Engine) ToggleStar(ctx context.Context, id string, actor domain.Viewer) (domain.Reminder, error) {
	return e.mutate(ctx, "star", id, actor, func(rem *domain.Reminder) (string, events.Payload, bool, error) {
		rem.Starred = !rem.Starred
		if !rem.Starred {
			rem.StarredBy, rem.StarredAt = "", ""
			return events.ReminderUnstarred, nil, true, nil
		}
		rem.StarredBy = actor.Actor()
		rem.StarredAt = e.stamp()
		return events.ReminderStarred, nil, true, nil
	})
}

// Dismiss is idempotent: an already dismissed reminder is returned untouched.
func (e Engine) Dismiss(ctx context.Context, id string, actor domain.Viewer) (domain.Reminder, error) {
	return e.mutate(ctx, "dismiss", id, actor, func(rem *domain.Reminder) (string, events.Payload, bool, error) {
		if rem.Dismissed {
			return "", nil, false, nil
		}
		rem.Dismissed = true
		rem.DismissedBy = actor.Actor()
		rem.DismissedAt = e.stamp()
		return events.ReminderDismissed, nil, true, nil
	})
}

// SnoozeResult carries the snoozed reminder and the id the caller must drop
// from its shown set so the alert can fire again.
type SnoozeResult struct {
	Reminder domain.Reminder `json:"reminder"`
	Rearm    string          `json:"rearm"`
}

// Snooze moves the alert instant to now + minutes. Status and dismissed are
// left alone, so resolved or dismissed reminders simply never re-alert.
func (e Engine) Snooze(ctx context.Context, id string, minutes int, actor domain.Viewer) (SnoozeResult, error) {
	maxMinutes := 24 * 60
	if e.Config != nil && e.Config.Snooze.MaxMinutes > 0 {
		maxMinutes = e.Config.Snooze.MaxMinutes
	}
	if minutes < 1 || minutes > maxMinutes {
		return SnoozeResult{}, invalid("minutes", "must be between 1 and %d", maxMinutes)
	}
	rem, err := e.mutate(ctx, "snooze", id, actor, func(rem *domain.Reminder) (string, events.Payload, bool, error) {
		at := e.now().In(e.Location()).Add(time.Duration(minutes) * time.Minute)
		prevDate, prevAlert := rem.DueDate, rem.AlertTime
		rem.DueDate = at.Format(domain.DateLayout)
		rem.AlertTime = at.Format(domain.TimeOfDayLayout)
		rem.SnoozedBy = actor.Actor()
		rem.SnoozedAt = e.stamp()
		return events.ReminderSnoozed, events.Payload{
			"minutes":         minutes,
			"from_due_date":   prevDate,
			"from_alert_time": prevAlert,
			"due_date":        rem.DueDate,
			"alert_time":      rem.AlertTime,
		}, true, nil
	})
	if err != nil {
		return SnoozeResult{}, err
	}
	return SnoozeResult{Reminder: rem, Rearm: rem.ID}, nil
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
