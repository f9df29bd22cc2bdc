package domain

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePriorityOrdering(t *testing.T) {
	for in, want := range map[string]Priority{
		"":          PriorityNormal,
		"normal":    PriorityNormal,
		"High":      PriorityHigh,
		"very high": PriorityVeryHigh,
		"Very_High": PriorityVeryHigh,
		"veryhigh":  PriorityVeryHigh,
	} {
		got, err := ParsePriority(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParsePriority("low")
	assert.Error(t, err)

	assert.Less(t, PriorityNormal.Rank(), PriorityHigh.Rank())
	assert.Less(t, PriorityHigh.Rank(), PriorityVeryHigh.Rank())
	assert.False(t, PriorityNormal.Urgent())
	assert.True(t, PriorityHigh.Urgent())
}

func TestParseStatusAcceptsLegacyReject(t *testing.T) {
	s, err := ParseStatus("reject")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, s)
	assert.True(t, s.Terminal())
	assert.False(t, StatusPending.Terminal())
	_, err = ParseStatus("done")
	assert.Error(t, err)
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("cto")
	require.NoError(t, err)
	assert.Equal(t, RoleCTO, r)
	assert.True(t, r.Valid())
	assert.False(t, Role("cto").Valid())
	_, err = ParseRole("intern")
	assert.Error(t, err)
}

func TestSetsIgnoreOrderAndDuplicates(t *testing.T) {
	a := NewRoleSet(RoleHR, RoleCTO, RoleHR)
	b := NewRoleSet(RoleCTO, RoleHR)
	assert.Len(t, a, 2)
	assert.True(t, a.Equal(b))
	assert.True(t, a.Has(RoleHR))
	assert.False(t, a.Has(RoleCEO))

	s := NewStringSet("HR", "Ann@Example.com ", "ann@example.com")
	assert.Equal(t, StringSet{"HR", "ann@example.com"}, s)
	assert.True(t, s.Has("ANN@example.com"))
	assert.Equal(t, StringSet{"CEO", "HR", "ann@example.com"}, s.Union("CEO", "HR"))
}

func TestAlertInstant(t *testing.T) {
	r := Reminder{DueDate: "2025-10-20", AlertTime: "09:00"}
	at, ok := r.AlertInstant(time.UTC)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 10, 20, 9, 0, 0, 0, time.UTC), at)

	r.AlertTime = ""
	_, ok = r.AlertInstant(time.UTC)
	assert.False(t, ok)

	r.AlertTime = "25:99"
	_, ok = r.AlertInstant(time.UTC)
	assert.False(t, ok)

	due, ok := Reminder{DueDate: "2025-10-20"}.DueInstant(time.UTC)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 10, 20, 0, 0, 0, 0, time.UTC), due)
}

func TestAlertInstantKeepsWallClockAcrossZoneChanges(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	cases := map[string]struct {
		date, alert string
		hour        int
		zone        string
	}{
		"spring forward": {"2025-03-09", "09:00", 9, "EDT"},
		"fall back":      {"2025-11-02", "09:00", 9, "EST"},
		"before switch":  {"2025-03-09", "01:30", 1, "EST"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			at, ok := Reminder{DueDate: tc.date, AlertTime: tc.alert}.AlertInstant(ny)
			require.True(t, ok)
			zone, _ := at.Zone()
			assert.Equal(t, tc.hour, at.Hour())
			assert.Equal(t, 0, at.Minute())
			assert.Equal(t, tc.zone, zone)
			assert.Equal(t, tc.alert, at.Format(TimeOfDayLayout))
		})
	}

	at, err := Combine("2025-03-09", "09:00:30", ny)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 9, 13, 0, 30, 0, time.UTC), at.UTC())
}

func TestParseTimeOfDay(t *testing.T) {
	d, err := ParseTimeOfDay("07:45")
	require.NoError(t, err)
	assert.Equal(t, 7*time.Hour+45*time.Minute, d)

	d, err = ParseTimeOfDay(" 07:45:10 ")
	require.NoError(t, err)
	assert.Equal(t, 7*time.Hour+45*time.Minute+10*time.Second, d)

	_, err = ParseTimeOfDay("7pm")
	assert.Error(t, err)
}

func TestViewerActor(t *testing.T) {
	assert.Equal(t, "HR", Viewer{Role: RoleHR}.Actor())
	assert.Equal(t, "ann@example.com", Viewer{Role: RoleHR, Email: "Ann@example.com"}.Actor())
}
