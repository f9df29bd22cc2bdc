package domain

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleAdmin Role = "Admin"
	RoleCEO   Role = "CEO"
	RoleCTO   Role = "CTO"
	RoleHR    Role = "HR"
)

// Roles lists every known role in display order.
var Roles = []Role{RoleAdmin, RoleCEO, RoleCTO, RoleHR}

func ParseRole(s string) (Role, error) {
	s = strings.TrimSpace(s)
	for _, r := range Roles {
		if strings.EqualFold(s, string(r)) {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", s)
}

func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return StatusPending, nil
	case "approved":
		return StatusApproved, nil
	case "rejected", "reject":
		return StatusRejected, nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}

// Terminal reports whether no further status transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

type Priority string

const (
	PriorityNormal   Priority = "Normal"
	PriorityHigh     Priority = "High"
	PriorityVeryHigh Priority = "Very High"
)

func ParsePriority(s string) (Priority, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("_", " ", "-", " ").Replace(key)
	switch key {
	case "", "normal":
		return PriorityNormal, nil
	case "high":
		return PriorityHigh, nil
	case "very high", "veryhigh":
		return PriorityVeryHigh, nil
	default:
		return "", fmt.Errorf("unknown priority %q", s)
	}
}

// Rank orders priorities: Normal < High < Very High.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 1
	case PriorityVeryHigh:
		return 2
	default:
		return 0
	}
}

func (p Priority) Urgent() bool { return p.Rank() >= PriorityHigh.Rank() }
