package visibility

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reminderdesk/internal/config"
	"reminderdesk/internal/domain"
)

func reminder(createdBy domain.Role, roles []domain.Role, emails ...string) domain.Reminder {
	rs := domain.NewRoleSet(roles...)
	es := domain.NewStringSet(emails...)
	shared := domain.NewStringSet(rs.Strings()...).Union(es...).Union(string(createdBy))
	return domain.Reminder{
		ID:               "r",
		CreatedBy:        createdBy,
		AssignedToRoles:  rs,
		AssignedToEmails: es,
		SharedWith:       shared,
		Status:           domain.StatusPending,
	}
}

func TestIsRelevant(t *testing.T) {
	hr := domain.Viewer{Role: domain.RoleHR}
	ceo := domain.Viewer{Role: domain.RoleCEO, Email: "ann@example.com"}
	cto := domain.Viewer{Role: domain.RoleCTO}

	r := reminder(domain.RoleHR, []domain.Role{domain.RoleCEO})
	assert.True(t, IsRelevant(r, hr), "creator")
	assert.True(t, IsRelevant(r, ceo), "shared role")
	assert.False(t, IsRelevant(r, cto))

	direct := reminder(domain.RoleHR, nil, "Ann@Example.com")
	assert.True(t, IsRelevant(direct, ceo), "assigned email")
	assert.False(t, IsRelevant(direct, domain.Viewer{Role: domain.RoleCEO}))

	byEmail := reminder(domain.RoleCEO, nil)
	byEmail.CreatedByEmail = "ann@example.com"
	byEmail.SharedWith = nil
	assert.True(t, IsRelevant(byEmail, domain.Viewer{Role: domain.RoleCTO, Email: "ANN@example.com"}))
}

func TestShouldShowStatusBadge(t *testing.T) {
	res := NewResolver(config.Default())
	hr := domain.Viewer{Role: domain.RoleHR}
	ceo := domain.Viewer{Role: domain.RoleCEO}

	cases := []struct {
		name   string
		rem    domain.Reminder
		viewer domain.Viewer
		want   bool
	}{
		{"self assigned", reminder(domain.RoleHR, []domain.Role{domain.RoleHR}), hr, false},
		{"self plus another role", reminder(domain.RoleHR, []domain.Role{domain.RoleHR, domain.RoleCTO}), hr, true},
		{"personal to-do", reminder(domain.RoleHR, nil), hr, false},
		{"sent to another role", reminder(domain.RoleHR, []domain.Role{domain.RoleCEO}), hr, true},
		{"approval request to approver", reminder(domain.RoleHR, []domain.Role{domain.RoleCEO}), ceo, true},
		{"generic notice to non-approver", reminder(domain.RoleCTO, []domain.Role{domain.RoleHR}), hr, false},
		{"named individual", reminder(domain.RoleHR, []domain.Role{domain.RoleHR}, "lee@example.com"), hr, true},
		{"named individual is viewer", reminder(domain.RoleCTO, []domain.Role{domain.RoleHR}, "me@example.com"), domain.Viewer{Role: domain.RoleHR, Email: "me@example.com"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, res.ShouldShowStatusBadge(tc.rem, tc.viewer))
		})
	}
}

func TestScopes(t *testing.T) {
	res := NewResolver(config.Default())
	hr := domain.Viewer{Role: domain.RoleHR}
	mine := reminder(domain.RoleHR, []domain.Role{domain.RoleHR})
	mine.ID = "mine"
	sent := reminder(domain.RoleHR, []domain.Role{domain.RoleCEO})
	sent.ID = "sent"
	incoming := reminder(domain.RoleCTO, []domain.Role{domain.RoleHR})
	incoming.ID = "incoming"
	other := reminder(domain.RoleCTO, []domain.Role{domain.RoleCEO})
	other.ID = "other"
	all := []domain.Reminder{mine, sent, incoming, other}

	ids := func(list []domain.Reminder) []string {
		var out []string
		for _, r := range list {
			out = append(out, r.ID)
		}
		return out
	}
	assert.Equal(t, []string{"mine", "sent", "incoming"}, ids(res.Filter(all, hr, ScopeAll)))
	assert.Equal(t, []string{"mine", "sent"}, ids(res.Filter(all, hr, ScopeMine)))
	assert.Equal(t, []string{"incoming"}, ids(res.Filter(all, hr, ScopeSharedWithMe)))
	assert.Equal(t, []string{"sent"}, ids(res.Filter(all, hr, ScopeSharedByMe)))
}

func TestParseScope(t *testing.T) {
	s, err := ParseScope("")
	require.NoError(t, err)
	assert.Equal(t, ScopeAll, s)
	s, err = ParseScope("mine")
	require.NoError(t, err)
	assert.Equal(t, ScopeMine, s)
	_, err = ParseScope("everyone")
	assert.Error(t, err)
}
