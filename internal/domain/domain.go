package domain

import "strings"

type Reminder struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description,omitempty"`
	Priority         Priority  `json:"priority" enum:"Normal,High,Very High"`
	DueDate          string    `json:"due_date" format:"date"`
	DueTime          string    `json:"due_time,omitempty"`
	AlertTime        string    `json:"alert_time,omitempty"`
	CreatedBy        Role      `json:"created_by"`
	CreatedByEmail   string    `json:"created_by_email,omitempty"`
	AssignedToRoles  RoleSet   `json:"assigned_to_roles"`
	AssignedToEmails StringSet `json:"assigned_to_emails"`
	SharedWith       StringSet `json:"shared_with"`
	Status           Status    `json:"status" enum:"pending,approved,rejected"`
	RejectionReason  string    `json:"rejection_reason,omitempty"`
	Starred          bool      `json:"starred"`
	StarredBy        string    `json:"starred_by,omitempty"`
	StarredAt        string    `json:"starred_at,omitempty"`
	Dismissed        bool      `json:"dismissed"`
	DismissedBy      string    `json:"dismissed_by,omitempty"`
	DismissedAt      string    `json:"dismissed_at,omitempty"`
	UpdatedBy        string    `json:"updated_by,omitempty"`
	UpdatedAt        string    `json:"updated_at,omitempty"`
	SnoozedBy        string    `json:"snoozed_by,omitempty"`
	SnoozedAt        string    `json:"snoozed_at,omitempty"`
	CreatedAt        string    `json:"created_at" format:"date-time"`
}

// Viewer is the acting identity for a single call. It is never persisted.
type Viewer struct {
	Role  Role   `json:"role"`
	Email string `json:"email,omitempty"`
}

// Actor is the identifier written into updatedBy, dismissedBy and friends.
func (v Viewer) Actor() string {
	if v.Email != "" {
		return NormalizeEmail(v.Email)
	}
	return string(v.Role)
}

func (v Viewer) String() string {
	if v.Email == "" {
		return string(v.Role)
	}
	return string(v.Role) + " <" + v.Email + ">"
}

const (
	UserActive   = "active"
	UserInactive = "inactive"
)

type User struct {
	ID        string `json:"id"`
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	Status    string `json:"status" enum:"active,inactive"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

func (u User) Active() bool { return u.Status != UserInactive }

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// APIKey binds a hashed key to a directory user; the user's role and email
// become the viewer.
type APIKey struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"-"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
