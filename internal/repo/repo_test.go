package repo_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reminderdesk/internal/db"
	"reminderdesk/internal/domain"
	"reminderdesk/internal/events"
	"reminderdesk/internal/migrate"
	"reminderdesk/internal/repo"
)

func newRepo(t *testing.T) repo.Repo {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	return repo.Repo{DB: conn}
}

func sampleReminder(id string, createdBy domain.Role, createdAt string, shared ...string) domain.Reminder {
	return domain.Reminder{
		ID:               id,
		Title:            "Reminder " + id,
		Priority:         domain.PriorityHigh,
		DueDate:          "2025-10-20",
		AlertTime:        "09:00",
		CreatedBy:        createdBy,
		AssignedToRoles:  domain.NewRoleSet(domain.RoleCTO),
		AssignedToEmails: domain.NewStringSet("Lee@Example.com"),
		SharedWith:       domain.NewStringSet(shared...),
		Status:           domain.StatusPending,
		CreatedAt:        createdAt,
	}
}

func TestReminderRoundTripAndUpdate(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)

	rem := sampleReminder("r1", domain.RoleHR, "2025-10-01T10:00:00Z", "HR", "CTO", "lee@example.com")
	require.NoError(t, r.InsertReminder(ctx, nil, rem))

	got, err := r.GetReminder(ctx, nil, "r1")
	require.NoError(t, err)
	assert.Equal(t, rem.Title, got.Title)
	assert.Equal(t, domain.PriorityHigh, got.Priority)
	assert.Equal(t, domain.RoleSet{domain.RoleCTO}, got.AssignedToRoles)
	assert.Equal(t, domain.StringSet{"lee@example.com"}, got.AssignedToEmails)
	assert.True(t, got.SharedWith.Has("CTO"))
	assert.Equal(t, "", got.DueTime)

	got.Status = domain.StatusRejected
	got.RejectionReason = "budget"
	got.Dismissed = true
	got.DismissedBy = "CTO"
	require.NoError(t, r.UpdateReminder(ctx, nil, got))

	again, err := r.GetReminder(ctx, nil, "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, again.Status)
	assert.Equal(t, "budget", again.RejectionReason)
	assert.True(t, again.Dismissed)

	_, err = r.GetReminder(ctx, nil, "missing")
	assert.True(t, errors.Is(err, repo.ErrNotFound))
	err = r.UpdateReminder(ctx, nil, domain.Reminder{ID: "missing", Priority: domain.PriorityNormal, Status: domain.StatusPending})
	assert.True(t, errors.Is(err, repo.ErrNotFound))
	assert.True(t, errors.Is(r.InsertReminder(ctx, nil, rem), repo.ErrDuplicate))
}

func TestListRemindersByPrincipal(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	require.NoError(t, r.InsertReminder(ctx, nil, sampleReminder("a", domain.RoleHR, "2025-10-01T10:00:00Z", "HR", "CEO")))
	require.NoError(t, r.InsertReminder(ctx, nil, sampleReminder("b", domain.RoleCTO, "2025-10-02T10:00:00Z", "CTO")))
	c := sampleReminder("c", domain.RoleCEO, "2025-10-03T10:00:00Z", "CEO", "ann@example.com")
	c.DueDate = "2025-11-01"
	require.NoError(t, r.InsertReminder(ctx, nil, c))

	ids := func(list []domain.Reminder) []string {
		var out []string
		for _, rem := range list {
			out = append(out, rem.ID)
		}
		return out
	}

	all, err := r.ListReminders(ctx, repo.ReminderFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, ids(all))

	ceo, err := r.ListReminders(ctx, repo.ReminderFilter{Principals: []string{"CEO"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, ids(ceo))

	ann, err := r.ListReminders(ctx, repo.ReminderFilter{Principals: []string{"HR", "ann@example.com"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, ids(ann))

	byDate, err := r.ListReminders(ctx, repo.ReminderFilter{DueDate: "2025-11-01"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, ids(byDate))

	mine, err := r.ListReminders(ctx, repo.ReminderFilter{CreatedBy: domain.RoleCTO})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(mine))

	page, err := r.ListReminders(ctx, repo.ReminderFilter{Limit: 1, CursorCreatedAt: "2025-10-03T10:00:00Z", CursorID: "c"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(page))
}

func TestUsersDirectory(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	users := []domain.User{
		{ID: "u1", FullName: "Ann", Email: "Ann@Example.com", Role: domain.RoleCEO, Status: domain.UserActive, CreatedAt: "2025-01-01T00:00:00Z"},
		{ID: "u2", FullName: "Bo", Email: "bo@example.com", Role: domain.RoleCEO, Status: domain.UserInactive, CreatedAt: "2025-01-01T00:00:00Z"},
		{ID: "u3", FullName: "Cy", Email: "cy@example.com", Role: domain.RoleHR, Status: domain.UserActive, CreatedAt: "2025-01-01T00:00:00Z"},
	}
	for _, u := range users {
		require.NoError(t, r.InsertUser(ctx, nil, u))
	}
	assert.True(t, errors.Is(r.InsertUser(ctx, nil, users[0]), repo.ErrDuplicate))

	u, err := r.GetUserByEmail(ctx, "ANN@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, "ann@example.com", u.Email)

	emails, err := r.EmailsByRole(ctx, domain.RoleCEO)
	require.NoError(t, err)
	assert.Equal(t, []string{"ann@example.com"}, emails)

	require.NoError(t, r.UpdateUserStatus(ctx, nil, "u2", domain.UserActive))
	emails, err = r.EmailsByRole(ctx, domain.RoleCEO)
	require.NoError(t, err)
	assert.Len(t, emails, 2)
	assert.True(t, errors.Is(r.UpdateUserStatus(ctx, nil, "nope", domain.UserActive), repo.ErrNotFound))

	counts, err := r.CountUsersByRole(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[domain.RoleCEO])
	assert.Equal(t, 1, counts[domain.RoleHR])

	hr, err := r.ListUsers(ctx, repo.UserFilter{Role: domain.RoleHR})
	require.NoError(t, err)
	require.Len(t, hr, 1)
	assert.Equal(t, "Cy", hr[0].FullName)
}

func TestAPIKeyResolvesUser(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	require.NoError(t, r.InsertUser(ctx, nil, domain.User{ID: "u1", FullName: "Ann", Email: "ann@example.com", Role: domain.RoleCTO, Status: domain.UserActive, CreatedAt: "2025-01-01T00:00:00Z"}))
	require.NoError(t, r.InsertAPIKey(ctx, nil, domain.APIKey{ID: "k1", UserID: "u1", KeyHash: repo.HashAPIKey("secret"), CreatedAt: "2025-01-01T00:00:00Z"}))

	u, err := r.UserByAPIKey(ctx, " secret ")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleCTO, u.Role)

	_, err = r.UserByAPIKey(ctx, "other")
	assert.True(t, errors.Is(err, repo.ErrNotFound))

	keys, err := r.ListAPIKeys(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, keys, 1)
	require.NoError(t, r.DeleteAPIKey(ctx, "k1"))
	assert.True(t, errors.Is(r.DeleteAPIKey(ctx, "k1"), repo.ErrNotFound))
}

func TestEventsAndCursors(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	w := events.Writer{Now: func() time.Time { return time.Date(2025, 10, 20, 9, 0, 0, 0, time.UTC) }}
	tx, err := r.DB.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, w.Append(ctx, tx, events.ReminderCreated, events.KindReminder, "r1", "HR", events.Payload{"title": "x"}))
	require.NoError(t, w.Append(ctx, tx, events.ReminderApproved, events.KindReminder, "r1", "CEO", nil))
	require.NoError(t, tx.Commit())

	latest, err := r.ListEvents(ctx, repo.EventFilter{EntityID: "r1"})
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, events.ReminderApproved, latest[0].Type)
	assert.Equal(t, "2025-10-20T09:00:00Z", latest[0].TS)

	after, err := r.EventsAfter(ctx, latest[1].ID, 10)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, latest[0].ID, after[0].ID)

	maxID, err := r.LatestEventID(ctx)
	require.NoError(t, err)
	assert.Equal(t, latest[0].ID, maxID)

	_, err = r.WebhookCursor(ctx, "hook")
	assert.True(t, errors.Is(err, repo.ErrNotFound))
	require.NoError(t, r.SetWebhookCursor(ctx, "hook", 7, time.Now()))
	require.NoError(t, r.SetWebhookCursor(ctx, "hook", 9, time.Now()))
	cur, err := r.WebhookCursor(ctx, "hook")
	require.NoError(t, err)
	assert.Equal(t, int64(9), cur)
}
