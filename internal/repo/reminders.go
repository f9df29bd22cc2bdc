package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"reminderdesk/internal/domain"
)

const reminderColumns = `id,title,description,priority,due_date,due_time,alert_time,created_by,created_by_email,
assigned_roles_json,assigned_emails_json,shared_with_json,status,rejection_reason,
starred,starred_by,starred_at,dismissed,dismissed_by,dismissed_at,
updated_by,updated_at,snoozed_by,snoozed_at,created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReminder(s rowScanner) (domain.Reminder, error) {
	var rem domain.Reminder
	var (
		description, dueTime, alertTime, createdByEmail, rejection sql.NullString
		starredBy, starredAt, dismissedBy, dismissedAt             sql.NullString
		updatedBy, updatedAt, snoozedBy, snoozedAt                 sql.NullString
		priority, createdBy, status                                string
		rolesJSON, emailsJSON, sharedJSON                          string
		starred, dismissed                                         int
	)
	err := s.Scan(&rem.ID, &rem.Title, &description, &priority, &rem.DueDate, &dueTime, &alertTime, &createdBy, &createdByEmail,
		&rolesJSON, &emailsJSON, &sharedJSON, &status, &rejection,
		&starred, &starredBy, &starredAt, &dismissed, &dismissedBy, &dismissedAt,
		&updatedBy, &updatedAt, &snoozedBy, &snoozedAt, &rem.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return rem, ErrNotFound
	}
	if err != nil {
		return rem, err
	}
	rem.Description = description.String
	rem.DueTime = dueTime.String
	rem.AlertTime = alertTime.String
	rem.CreatedBy = domain.Role(createdBy)
	rem.CreatedByEmail = createdByEmail.String
	rem.RejectionReason = rejection.String
	rem.Starred = starred != 0
	rem.StarredBy, rem.StarredAt = starredBy.String, starredAt.String
	rem.Dismissed = dismissed != 0
	rem.DismissedBy, rem.DismissedAt = dismissedBy.String, dismissedAt.String
	rem.UpdatedBy, rem.UpdatedAt = updatedBy.String, updatedAt.String
	rem.SnoozedBy, rem.SnoozedAt = snoozedBy.String, snoozedAt.String

	if rem.Priority, err = domain.ParsePriority(priority); err != nil {
		return rem, fmt.Errorf("reminder %s: %w", rem.ID, err)
	}
	if rem.Status, err = domain.ParseStatus(status); err != nil {
		return rem, fmt.Errorf("reminder %s: %w", rem.ID, err)
	}
	roles, err := decodeList(rolesJSON)
	if err != nil {
		return rem, err
	}
	rs := make([]domain.Role, 0, len(roles))
	for _, r := range roles {
		rs = append(rs, domain.Role(r))
	}
	rem.AssignedToRoles = domain.NewRoleSet(rs...)
	emails, err := decodeList(emailsJSON)
	if err != nil {
		return rem, err
	}
	rem.AssignedToEmails = domain.NewStringSet(emails...)
	shared, err := decodeList(sharedJSON)
	if err != nil {
		return rem, err
	}
	rem.SharedWith = domain.NewStringSet(shared...)
	return rem, nil
}

// InsertReminder stores a new reminder and its share rows.
func (r Repo) InsertReminder(ctx context.Context, tx *sql.Tx, rem domain.Reminder) error {
	roles, err := encodeList(rem.AssignedToRoles)
	if err != nil {
		return err
	}
	emails, err := encodeList(rem.AssignedToEmails)
	if err != nil {
		return err
	}
	shared, err := encodeList(rem.SharedWith)
	if err != nil {
		return err
	}
	q := r.q(tx)
	_, err = q.ExecContext(ctx, `INSERT INTO reminders(`+reminderColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rem.ID, rem.Title, nullable(rem.Description), string(rem.Priority), rem.DueDate, nullable(rem.DueTime), nullable(rem.AlertTime),
		string(rem.CreatedBy), nullable(rem.CreatedByEmail), roles, emails, shared, string(rem.Status), nullable(rem.RejectionReason),
		boolInt(rem.Starred), nullable(rem.StarredBy), nullable(rem.StarredAt),
		boolInt(rem.Dismissed), nullable(rem.DismissedBy), nullable(rem.DismissedAt),
		nullable(rem.UpdatedBy), nullable(rem.UpdatedAt), nullable(rem.SnoozedBy), nullable(rem.SnoozedAt), rem.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return fmt.Errorf("reminder %s: %w", rem.ID, ErrDuplicate)
		}
		return err
	}
	for _, p := range rem.SharedWith {
		if _, err := q.ExecContext(ctx, `INSERT OR IGNORE INTO reminder_shares(reminder_id, principal) VALUES (?,?)`, rem.ID, p); err != nil {
			return fmt.Errorf("insert share %s: %w", p, err)
		}
	}
	return nil
}

// UpdateReminder overwrites the mutable columns. There is no version check:
// the last writer wins.
func (r Repo) UpdateReminder(ctx context.Context, tx *sql.Tx, rem domain.Reminder) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE reminders SET title=?, description=?, priority=?, due_date=?, due_time=?, alert_time=?,
status=?, rejection_reason=?, starred=?, starred_by=?, starred_at=?, dismissed=?, dismissed_by=?, dismissed_at=?,
updated_by=?, updated_at=?, snoozed_by=?, snoozed_at=? WHERE id=?`,
		rem.Title, nullable(rem.Description), string(rem.Priority), rem.DueDate, nullable(rem.DueTime), nullable(rem.AlertTime),
		string(rem.Status), nullable(rem.RejectionReason),
		boolInt(rem.Starred), nullable(rem.StarredBy), nullable(rem.StarredAt),
		boolInt(rem.Dismissed), nullable(rem.DismissedBy), nullable(rem.DismissedAt),
		nullable(rem.UpdatedBy), nullable(rem.UpdatedAt), nullable(rem.SnoozedBy), nullable(rem.SnoozedAt), rem.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetReminder(ctx context.Context, tx *sql.Tx, id string) (domain.Reminder, error) {
	return scanReminder(r.q(tx).QueryRowContext(ctx, `SELECT `+reminderColumns+` FROM reminders WHERE id=?`, id))
}

type ReminderFilter struct {
	// Principals restricts to reminders created by, or shared with, any of
	// these roles or emails.
	Principals []string
	CreatedBy  domain.Role
	Status     domain.Status
	DueDate    string
	Limit      int
	// Cursor over (created_at, id), newest first.
	CursorCreatedAt string
	CursorID        string
}

// ListReminders returns reminders newest first.
func (r Repo) ListReminders(ctx context.Context, f ReminderFilter) ([]domain.Reminder, error) {
	var clauses []string
	var args []any
	if len(f.Principals) > 0 {
		marks := strings.TrimSuffix(strings.Repeat("?,", len(f.Principals)), ",")
		clauses = append(clauses, fmt.Sprintf(`(created_by IN (%[1]s) OR lower(COALESCE(created_by_email,'')) IN (%[1]s)
OR id IN (SELECT reminder_id FROM reminder_shares WHERE principal IN (%[1]s)))`, marks))
		for i := 0; i < 3; i++ {
			for _, p := range f.Principals {
				args = append(args, p)
			}
		}
	}
	if f.CreatedBy != "" {
		clauses = append(clauses, "created_by=?")
		args = append(args, string(f.CreatedBy))
	}
	if f.Status != "" {
		if f.Status == domain.StatusRejected {
			clauses = append(clauses, "status IN ('rejected','reject')")
		} else {
			clauses = append(clauses, "status=?")
			args = append(args, string(f.Status))
		}
	}
	if f.DueDate != "" {
		clauses = append(clauses, "due_date=?")
		args = append(args, f.DueDate)
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + reminderColumns + ` FROM reminders ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rem)
	}
	return res, rows.Err()
}
