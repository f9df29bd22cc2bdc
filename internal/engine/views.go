package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"reminderdesk/internal/domain"
	"reminderdesk/internal/repo"
	"reminderdesk/internal/visibility"
)

const (
	SortPriority = "priority"
	SortNewest   = "newest"
)

type ListOptions struct {
	Scope   visibility.Scope
	Status  domain.Status
	DueDate string
	// Sort is SortPriority (default: priority desc, then due) or SortNewest.
	Sort  string
	Limit int
}

// ReminderView is a reminder as one viewer sees it.
type ReminderView struct {
	domain.Reminder
	ShowStatusBadge bool `json:"show_status_badge"`
}

func principals(v domain.Viewer) []string {
	out := []string{string(v.Role)}
	if v.Email != "" {
		out = append(out, domain.NormalizeEmail(v.Email))
	}
	return out
}

// VisibleReminders returns every reminder relevant to v, newest first.
func (e Engine) VisibleReminders(ctx context.Context, v domain.Viewer) ([]domain.Reminder, error) {
	list, err := e.Repo.ListReminders(ctx, repo.ReminderFilter{Principals: principals(v)})
	if err != nil {
		return nil, e.fail("list", StoreError{Op: "list reminders", Err: err})
	}
	return e.Resolver.Filter(list, v, visibility.ScopeAll), nil
}

func (e Engine) ListForViewer(ctx context.Context, v domain.Viewer, opts ListOptions) ([]ReminderView, error) {
	if opts.DueDate != "" {
		if _, err := domain.ParseDate(opts.DueDate); err != nil {
			return nil, invalid("date", "%v", err)
		}
	}
	list, err := e.Repo.ListReminders(ctx, repo.ReminderFilter{
		Principals: principals(v),
		Status:     opts.Status,
		DueDate:    opts.DueDate,
	})
	if err != nil {
		return nil, e.fail("list", StoreError{Op: "list reminders", Err: err})
	}
	list = e.Resolver.Filter(list, v, opts.Scope)
	switch opts.Sort {
	case "", SortPriority:
		e.sortByPriority(list)
	case SortNewest:
	default:
		return nil, invalid("sort", "unknown sort %q", opts.Sort)
	}
	if opts.Limit > 0 && len(list) > opts.Limit {
		list = list[:opts.Limit]
	}
	out := make([]ReminderView, 0, len(list))
	for _, r := range list {
		out = append(out, ReminderView{Reminder: r, ShowStatusBadge: e.Resolver.ShouldShowStatusBadge(r, v)})
	}
	return out, nil
}

func (e Engine) sortByPriority(list []domain.Reminder) {
	loc := e.Location()
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() > b.Priority.Rank()
		}
		da, _ := a.DueInstant(loc)
		db, _ := b.DueInstant(loc)
		return da.Before(db)
	})
}

// GetForViewer hides reminders the viewer has no business seeing.
func (e Engine) GetForViewer(ctx context.Context, id string, v domain.Viewer) (ReminderView, error) {
	rem, err := e.Get(ctx, id)
	if err != nil {
		return ReminderView{}, err
	}
	if !visibility.IsRelevant(rem, v) {
		return ReminderView{}, NotFoundError{Kind: "reminder", ID: id}
	}
	return ReminderView{Reminder: rem, ShowStatusBadge: e.Resolver.ShouldShowStatusBadge(rem, v)}, nil
}

func (e Engine) Get(ctx context.Context, id string) (domain.Reminder, error) {
	rem, err := e.Repo.GetReminder(ctx, nil, id)
	if err != nil {
		return domain.Reminder{}, e.fail("get", storeErr("read reminder", "reminder", id, err))
	}
	return rem, nil
}

// Stats summarises the reminders a viewer created.
type Stats struct {
	Total    int `json:"total"`
	Urgent   int `json:"urgent"`
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
	Starred  int `json:"starred"`
}

func (e Engine) Stats(ctx context.Context, v domain.Viewer) (Stats, error) {
	list, err := e.Repo.ListReminders(ctx, repo.ReminderFilter{Principals: principals(v)})
	if err != nil {
		return Stats{}, e.fail("stats", StoreError{Op: "list reminders", Err: err})
	}
	var s Stats
	for _, r := range list {
		if !visibility.IsCreator(r, v) {
			continue
		}
		s.Total++
		if r.Priority.Urgent() {
			s.Urgent++
		}
		switch r.Status {
		case domain.StatusPending:
			s.Pending++
		case domain.StatusApproved:
			s.Approved++
		case domain.StatusRejected:
			s.Rejected++
		}
		if r.Starred {
			s.Starred++
		}
	}
	return s, nil
}

// StatusUpdate tells a creator that someone resolved their reminder.
type StatusUpdate struct {
	ReminderID string        `json:"reminder_id"`
	Title      string        `json:"title"`
	Status     domain.Status `json:"status"`
	UpdatedBy  string        `json:"updated_by"`
	UpdatedAt  string        `json:"updated_at" format:"date-time"`
	Reason     string        `json:"reason,omitempty"`
	Message    string        `json:"message"`
	Ago        string        `json:"ago"`
}

// StatusUpdates lists approvals and rejections of the viewer's reminders,
// newest first.
func (e Engine) StatusUpdates(ctx context.Context, v domain.Viewer, limit int) ([]StatusUpdate, error) {
	list, err := e.Repo.ListReminders(ctx, repo.ReminderFilter{Principals: principals(v)})
	if err != nil {
		return nil, e.fail("status updates", StoreError{Op: "list reminders", Err: err})
	}
	now := e.now()
	var out []StatusUpdate
	for _, r := range list {
		if !visibility.IsCreator(r, v) || !r.Status.Terminal() || r.UpdatedBy == "" {
			continue
		}
		verb := "approved"
		if r.Status == domain.StatusRejected {
			verb = "rejected"
		}
		u := StatusUpdate{
			ReminderID: r.ID,
			Title:      r.Title,
			Status:     r.Status,
			UpdatedBy:  r.UpdatedBy,
			UpdatedAt:  r.UpdatedAt,
			Reason:     r.RejectionReason,
			Message:    fmt.Sprintf("%s %s %q", r.UpdatedBy, verb, r.Title),
		}
		if at, err := time.Parse(time.RFC3339, r.UpdatedAt); err == nil {
			u.Ago = Ago(now, at)
		}
		out = append(out, u)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt > out[j].UpdatedAt })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Ago renders a coarse relative time ("just now", "5m ago", "3h ago", "2d ago").
func Ago(now, t time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	default:
		return fmt.Sprintf("%dd ago", int(d/(24*time.Hour)))
	}
}
