// Package visibility decides which reminders concern a viewer and whether the
// approval badge is worth showing them.
package visibility

import (
	"fmt"
	"strings"

	"reminderdesk/internal/config"
	"reminderdesk/internal/domain"
)

type Scope string

const (
	ScopeAll          Scope = "all"
	ScopeMine         Scope = "my"
	ScopeSharedWithMe Scope = "shared_with_me"
	ScopeSharedByMe   Scope = "shared_by_me"
)

func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case "", ScopeAll:
		return ScopeAll, nil
	case ScopeMine, "mine":
		return ScopeMine, nil
	case ScopeSharedWithMe:
		return ScopeSharedWithMe, nil
	case ScopeSharedByMe:
		return ScopeSharedByMe, nil
	default:
		return "", fmt.Errorf("unknown scope %q", s)
	}
}

// Resolver carries the set of roles allowed to approve reminders.
type Resolver struct {
	Approvers domain.RoleSet
}

func NewResolver(cfg *config.Config) Resolver {
	if cfg == nil {
		return Resolver{}
	}
	return Resolver{Approvers: cfg.RolesWith(config.PermReminderApprove)}
}

// IsCreator matches on role, or on email when both sides carry one.
func IsCreator(r domain.Reminder, v domain.Viewer) bool {
	if r.CreatedByEmail != "" && v.Email != "" {
		return domain.NormalizeEmail(r.CreatedByEmail) == domain.NormalizeEmail(v.Email)
	}
	return r.CreatedBy == v.Role
}

// IsRelevant reports whether the reminder concerns the viewer at all.
func IsRelevant(r domain.Reminder, v domain.Viewer) bool {
	if r.CreatedBy == v.Role {
		return true
	}
	if v.Email != "" {
		if domain.NormalizeEmail(r.CreatedByEmail) == domain.NormalizeEmail(v.Email) {
			return true
		}
		if r.SharedWith.Has(v.Email) || r.AssignedToEmails.Has(v.Email) {
			return true
		}
	}
	return r.SharedWith.Has(string(v.Role))
}

func (res Resolver) IsRelevant(r domain.Reminder, v domain.Viewer) bool {
	return IsRelevant(r, v)
}

// ShouldShowStatusBadge decides whether the approval status chrome is shown.
func (res Resolver) ShouldShowStatusBadge(r domain.Reminder, v domain.Viewer) bool {
	// Anyone addressed besides the viewer forces the badge.
	if addressesOthers(r, v) {
		return true
	}
	if IsCreator(r, v) {
		return false
	}
	return res.Approvers.Has(v.Role)
}

// InScope applies the dashboard tab rules on top of IsRelevant.
func (res Resolver) InScope(r domain.Reminder, v domain.Viewer, scope Scope) bool {
	switch scope {
	case ScopeMine:
		return IsCreator(r, v)
	case ScopeSharedWithMe:
		return !IsCreator(r, v) && IsRelevant(r, v)
	case ScopeSharedByMe:
		return IsCreator(r, v) && addressesOthers(r, v)
	default:
		return IsRelevant(r, v)
	}
}

// addressesOthers is true when anyone besides the viewer's own role or
// email is assigned.
func addressesOthers(r domain.Reminder, v domain.Viewer) bool {
	if len(r.AssignedToRoles) > 1 {
		return true
	}
	for _, role := range r.AssignedToRoles {
		if role != v.Role {
			return true
		}
	}
	for _, email := range r.AssignedToEmails {
		if v.Email == "" || email != domain.NormalizeEmail(v.Email) {
			return true
		}
	}
	return false
}

// Filter keeps the reminders in scope for v, preserving order.
func (res Resolver) Filter(list []domain.Reminder, v domain.Viewer, scope Scope) []domain.Reminder {
	out := make([]domain.Reminder, 0, len(list))
	for _, r := range list {
		if res.InScope(r, v, scope) {
			out = append(out, r)
		}
	}
	return out
}
