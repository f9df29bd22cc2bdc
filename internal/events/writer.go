package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const (
	ReminderCreated   = "reminder.created"
	ReminderApproved  = "reminder.approved"
	ReminderRejected  = "reminder.rejected"
	ReminderStarred   = "reminder.starred"
	ReminderUnstarred = "reminder.unstarred"
	ReminderDismissed = "reminder.dismissed"
	ReminderSnoozed   = "reminder.snoozed"
	UserCreated       = "user.created"
	UserStatusChanged = "user.status_changed"
	UserUpdated       = "user.updated"
	UserDeleted       = "user.deleted"

	// AlertDue is never stored; it names alert deliveries for webhook filters.
	AlertDue = "alert.due"
)

const (
	KindReminder = "reminder"
	KindUser     = "user"
)

// Writer appends audit events inside the caller's transaction.
type Writer struct {
	Now func() time.Time
}

type Payload map[string]any

func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, entityKind, entityID, actorID string, payload Payload) error {
	now := w.Now
	if now == nil {
		now = time.Now
	}
	if payload == nil {
		payload = Payload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?)`,
		now().UTC().Format(time.RFC3339), evtType, entityKind, nullable(entityID), actorID, string(data))
	if err != nil {
		return fmt.Errorf("append %s event: %w", evtType, err)
	}
	return nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
