package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"reminderdesk/internal/domain"
)

var hr = domain.Viewer{Role: domain.RoleHR}

func pending(id string) domain.Reminder {
	return domain.Reminder{
		ID:              id,
		DueDate:         "2025-10-20",
		AlertTime:       "09:00",
		CreatedBy:       domain.RoleCEO,
		AssignedToRoles: domain.NewRoleSet(domain.RoleHR),
		SharedWith:      domain.NewStringSet("HR", "CEO"),
		Status:          domain.StatusPending,
	}
}

func evaluator() Evaluator { return NewEvaluator(DefaultWindow, time.UTC) }

var nineAM = time.Date(2025, 10, 20, 9, 0, 0, 0, time.UTC)

func TestEmitsInsideWindow(t *testing.T) {
	now := time.Date(2025, 10, 20, 9, 0, 30, 0, time.UTC)
	got := evaluator().Evaluate([]domain.Reminder{pending("r1")}, hr, now, NewShownSet())
	assert.Equal(t, []string{"r1"}, got)
}

func TestWindowBoundaries(t *testing.T) {
	cases := []struct {
		delta time.Duration
		want  bool
	}{
		{60 * time.Second, true},
		{61 * time.Second, false},
		{-300 * time.Second, true},
		{-301 * time.Second, false},
		{0, true},
	}
	for _, tc := range cases {
		now := nineAM.Add(-tc.delta)
		got := evaluator().Evaluate([]domain.Reminder{pending("r1")}, hr, now, nil)
		assert.Equal(t, tc.want, len(got) == 1, "delta %s", tc.delta)
	}
}

func TestSkipsIneligible(t *testing.T) {
	now := nineAM.Add(30 * time.Second)
	approved := pending("approved")
	approved.Status = domain.StatusApproved
	rejected := pending("rejected")
	rejected.Status = domain.StatusRejected
	dismissed := pending("dismissed")
	dismissed.Dismissed = true
	noAlert := pending("no-alert")
	noAlert.AlertTime = ""
	unrelated := pending("unrelated")
	unrelated.SharedWith = domain.NewStringSet("CTO")
	broken := pending("broken")
	broken.DueDate = "20/10/2025"

	got := evaluator().Evaluate([]domain.Reminder{approved, rejected, dismissed, noAlert, unrelated, broken}, hr, now, NewShownSet())
	assert.Empty(t, got)
}

func TestShownSetPreventsRepeats(t *testing.T) {
	now := nineAM
	list := []domain.Reminder{pending("a"), pending("b"), pending("a")}
	shown := NewShownSet()
	first := evaluator().Evaluate(list, hr, now, shown)
	assert.Equal(t, []string{"a", "b"}, first)

	again := evaluator().Evaluate(list, hr, now, shown)
	assert.Equal(t, first, again, "evaluate does not mutate the shown set")

	shown.Add(first...)
	assert.Empty(t, evaluator().Evaluate(list, hr, now, shown))

	shown.Forget("b")
	assert.Equal(t, []string{"b"}, evaluator().Evaluate(list, hr, now, shown))
	assert.Equal(t, []string{"a"}, shown.IDs())
	assert.Equal(t, 1, shown.Len())
}

func TestLocationApplies(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	e := NewEvaluator(DefaultWindow, loc)
	now := time.Date(2025, 10, 20, 6, 0, 0, 0, time.UTC)
	assert.Equal(t, []string{"r1"}, e.Evaluate([]domain.Reminder{pending("r1")}, hr, now, nil))
	assert.Empty(t, evaluator().Evaluate([]domain.Reminder{pending("r1")}, hr, now, nil))
}
