package reminderdesksdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Reminderdesk HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	// Role and Email are sent as dev headers when no credential is set.
	Role       string
	Email      string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Reminder is a reminder as the calling viewer sees it.
type Reminder struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Description      string   `json:"description,omitempty"`
	Priority         string   `json:"priority"`
	DueDate          string   `json:"due_date"`
	DueTime          string   `json:"due_time,omitempty"`
	AlertTime        string   `json:"alert_time,omitempty"`
	CreatedBy        string   `json:"created_by"`
	CreatedByEmail   string   `json:"created_by_email,omitempty"`
	AssignedToRoles  []string `json:"assigned_to_roles"`
	AssignedToEmails []string `json:"assigned_to_emails"`
	SharedWith       []string `json:"shared_with"`
	Status           string   `json:"status"`
	RejectionReason  string   `json:"rejection_reason,omitempty"`
	Starred          bool     `json:"starred"`
	Dismissed        bool     `json:"dismissed"`
	UpdatedBy        string   `json:"updated_by,omitempty"`
	UpdatedAt        string   `json:"updated_at,omitempty"`
	CreatedAt        string   `json:"created_at"`
	ShowStatusBadge  bool     `json:"show_status_badge"`
}

// CreateReminder are the fields accepted when creating a reminder.
type CreateReminder struct {
	Title             string   `json:"title"`
	Description       string   `json:"description,omitempty"`
	Priority          string   `json:"priority,omitempty"`
	DueDate           string   `json:"due_date"`
	DueTime           string   `json:"due_time,omitempty"`
	AlertTime         string   `json:"alert_time,omitempty"`
	AssignedToRoles   []string `json:"assigned_to_roles,omitempty"`
	AssignedToEmails  []string `json:"assigned_to_emails,omitempty"`
	AssignRoleMembers bool     `json:"assign_role_members,omitempty"`
}

// ListOptions filter ListReminders. Zero values are omitted.
type ListOptions struct {
	Scope  string
	Status string
	Date   string
	Sort   string
	Limit  int
}

// SnoozeResult names the id to drop from the caller's shown set.
type SnoozeResult struct {
	Reminder Reminder `json:"reminder"`
	Rearm    string   `json:"rearm"`
}

// Alerts is the outcome of one evaluation pass.
type Alerts struct {
	Due    []string   `json:"due"`
	Alerts []Reminder `json:"alerts"`
	Shown  []string   `json:"shown"`
}

type Stats struct {
	Total    int `json:"total"`
	Urgent   int `json:"urgent"`
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
	Starred  int `json:"starred"`
}

// Notification is a status update on one of the caller's reminders.
type Notification struct {
	ReminderID string `json:"reminder_id"`
	Title      string `json:"title"`
	Status     string `json:"status"`
	UpdatedBy  string `json:"updated_by"`
	UpdatedAt  string `json:"updated_at"`
	Reason     string `json:"reason,omitempty"`
	Message    string `json:"message"`
	Ago        string `json:"ago"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

func (c *Client) CreateReminder(ctx context.Context, in CreateReminder) (Reminder, error) {
	var resp Reminder
	err := c.do(ctx, http.MethodPost, "reminders", in, &resp)
	return resp, err
}

func (c *Client) ListReminders(ctx context.Context, opts ListOptions) ([]Reminder, error) {
	q := url.Values{}
	setQuery(q, "scope", opts.Scope)
	setQuery(q, "status", opts.Status)
	setQuery(q, "date", opts.Date)
	setQuery(q, "sort", opts.Sort)
	if opts.Limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}
	endpoint := "reminders"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp struct {
		Items []Reminder `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

func (c *Client) GetReminder(ctx context.Context, id string) (Reminder, error) {
	var resp Reminder
	err := c.do(ctx, http.MethodGet, reminderPath(id, ""), nil, &resp)
	return resp, err
}

func (c *Client) Approve(ctx context.Context, id string) (Reminder, error) {
	var resp Reminder
	err := c.do(ctx, http.MethodPost, reminderPath(id, "approve"), nil, &resp)
	return resp, err
}

func (c *Client) Reject(ctx context.Context, id, reason string) (Reminder, error) {
	var resp Reminder
	err := c.do(ctx, http.MethodPost, reminderPath(id, "reject"), map[string]any{"reason": reason}, &resp)
	return resp, err
}

// ToggleStar flips the shared starred flag.
func (c *Client) ToggleStar(ctx context.Context, id string) (Reminder, error) {
	var resp Reminder
	err := c.do(ctx, http.MethodPost, reminderPath(id, "star"), nil, &resp)
	return resp, err
}

func (c *Client) Dismiss(ctx context.Context, id string) (Reminder, error) {
	var resp Reminder
	err := c.do(ctx, http.MethodPost, reminderPath(id, "dismiss"), nil, &resp)
	return resp, err
}

func (c *Client) Snooze(ctx context.Context, id string, minutes int) (SnoozeResult, error) {
	var resp SnoozeResult
	err := c.do(ctx, http.MethodPost, reminderPath(id, "snooze"), map[string]any{"minutes": minutes}, &resp)
	return resp, err
}

// EvaluateAlerts sends the caller's shown set and returns the due alerts and
// the updated set. A zero now lets the server use its clock.
func (c *Client) EvaluateAlerts(ctx context.Context, shown []string, now time.Time) (Alerts, error) {
	body := map[string]any{}
	if len(shown) > 0 {
		body["shown"] = shown
	}
	if !now.IsZero() {
		body["now"] = now.Format(time.RFC3339)
	}
	var resp Alerts
	err := c.do(ctx, http.MethodPost, "alerts/evaluate", body, &resp)
	return resp, err
}

func (c *Client) Stats(ctx context.Context) (Stats, error) {
	var resp Stats
	err := c.do(ctx, http.MethodGet, "stats", nil, &resp)
	return resp, err
}

func (c *Client) Notifications(ctx context.Context, limit int) ([]Notification, error) {
	endpoint := "notifications"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp struct {
		Items []Notification `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	setQuery(q, "cursor", cursor)
	endpoint := "events"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/v0/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	case c.Role != "":
		req.Header.Set("X-Viewer-Role", c.Role)
		if c.Email != "" {
			req.Header.Set("X-Viewer-Email", c.Email)
		}
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func reminderPath(id, verb string) string {
	p := "reminders/" + url.PathEscape(id)
	if verb != "" {
		p += "/" + verb
	}
	return p
}

func setQuery(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
