package server

import (
	"encoding/json"

	"reminderdesk/internal/domain"
	"reminderdesk/internal/engine"
)

// Request payloads

type CreateReminderRequest struct {
	ID                string   `json:"id,omitempty"`
	Title             string   `json:"title"`
	Description       string   `json:"description,omitempty"`
	Priority          string   `json:"priority,omitempty" example:"High"`
	DueDate           string   `json:"due_date" example:"2024-03-04"`
	DueTime           string   `json:"due_time,omitempty" example:"10:00"`
	AlertTime         string   `json:"alert_time,omitempty" example:"09:45"`
	AssignedToRoles   []string `json:"assigned_to_roles,omitempty"`
	AssignedToEmails  []string `json:"assigned_to_emails,omitempty"`
	AssignRoleMembers bool     `json:"assign_role_members,omitempty"`
}

type RejectRequest struct {
	Reason string `json:"reason"`
}

type SnoozeRequest struct {
	Minutes int `json:"minutes" example:"15"`
}

type EvaluateAlertsRequest struct {
	// Shown is the caller's already-alerted ids for this session.
	Shown []string `json:"shown,omitempty"`
	// Now overrides the evaluation instant (RFC 3339).
	Now string `json:"now,omitempty" format:"date-time"`
}

type CreateUserRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Role     string `json:"role" enum:"Admin,CEO,CTO,HR"`
	Status   string `json:"status,omitempty" enum:"active,inactive"`
}

// UpdateUserRequest edits a user; omitted fields are left unchanged.
type UpdateUserRequest struct {
	FullName string `json:"full_name,omitempty"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty" enum:"Admin,CEO,CTO,HR"`
	Status   string `json:"status,omitempty" enum:"active,inactive"`
}

type SetUserStatusRequest struct {
	Status string `json:"status" enum:"active,inactive"`
}

type DevTokenRequest struct {
	Role       string `json:"role" enum:"Admin,CEO,CTO,HR"`
	Email      string `json:"email,omitempty"`
	Subject    string `json:"subject,omitempty"`
	TTLSeconds int    `json:"ttl_seconds,omitempty"`
}

// Response payloads

type MeResponse struct {
	Role        domain.Role `json:"role"`
	Email       string      `json:"email,omitempty"`
	Subject     string      `json:"subject,omitempty"`
	Source      string      `json:"source"`
	Permissions []string    `json:"permissions"`
}

type ReminderList struct {
	Items []engine.ReminderView `json:"items"`
}

type EvaluateAlertsResponse struct {
	Due    []string              `json:"due"`
	Alerts []engine.ReminderView `json:"alerts"`
	Shown  []string              `json:"shown"`
}

type NotificationList struct {
	Items []engine.StatusUpdate `json:"items"`
}

type UserList struct {
	Items  []domain.User  `json:"items"`
	Counts map[string]int `json:"counts_by_role"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

type DevTokenResponse struct {
	Token string `json:"token"`
}

func eventResponse(e domain.Event) EventResponse {
	payload := map[string]any{}
	if e.Payload != "" {
		_ = json.Unmarshal([]byte(e.Payload), &payload)
	}
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    payload,
	}
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
