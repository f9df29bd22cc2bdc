package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"go.uber.org/zap"

	"reminderdesk/internal/alert"
	"reminderdesk/internal/config"
	"reminderdesk/internal/domain"
	"reminderdesk/internal/engine"
	"reminderdesk/internal/visibility"
)

var mutationErrors = []int{
	http.StatusBadRequest,
	http.StatusForbidden,
	http.StatusNotFound,
	http.StatusConflict,
	http.StatusInternalServerError,
}

type reminderPath struct {
	ID string `path:"id"`
}

type reminderBody struct {
	Body engine.ReminderView `json:"body"`
}

func registerReminders(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-reminder",
		Method:        http.MethodPost,
		Path:          "/reminders",
		Summary:       "Create reminder",
		DefaultStatus: http.StatusCreated,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateReminderRequest `json:"body"`
	}) (*reminderBody, error) {
		v, authErr := requireViewer(ctx, e, config.PermReminderCreate)
		if authErr != nil {
			return nil, authErr
		}
		b := input.Body
		rem, err := e.Create(ctx, engine.CreateInput{
			ID:                b.ID,
			Title:             b.Title,
			Description:       b.Description,
			Priority:          b.Priority,
			DueDate:           b.DueDate,
			DueTime:           b.DueTime,
			AlertTime:         b.AlertTime,
			AssignedToRoles:   b.AssignedToRoles,
			AssignedToEmails:  b.AssignedToEmails,
			AssignRoleMembers: b.AssignRoleMembers,
		}, v)
		if err != nil {
			return nil, handleError(err)
		}
		return &reminderBody{Body: view(e, rem, v)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-reminders",
		Method:      http.MethodGet,
		Path:        "/reminders",
		Summary:     "List reminders visible to the caller",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Scope  string `query:"scope" enum:"all,my,shared_with_me,shared_by_me" default:"all"`
		Status string `query:"status" enum:"pending,approved,rejected"`
		Date   string `query:"date" doc:"Due date filter, YYYY-MM-DD"`
		Sort   string `query:"sort" enum:"priority,newest" default:"priority"`
		Limit  int    `query:"limit"`
	}) (*struct {
		Body ReminderList `json:"body"`
	}, error) {
		v, authErr := requireViewer(ctx, e, config.PermReminderRead)
		if authErr != nil {
			return nil, authErr
		}
		scope, err := visibility.ParseScope(input.Scope)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
		}
		opts := engine.ListOptions{Scope: scope, DueDate: input.Date, Sort: input.Sort, Limit: input.Limit}
		if input.Status != "" {
			if opts.Status, err = domain.ParseStatus(input.Status); err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
			}
		}
		items, err := e.ListForViewer(ctx, v, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ReminderList `json:"body"`
		}{Body: ReminderList{Items: nonNilSlice(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-reminder",
		Method:      http.MethodGet,
		Path:        "/reminders/{id}",
		Summary:     "Get reminder",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *reminderPath) (*reminderBody, error) {
		v, authErr := requireViewer(ctx, e, config.PermReminderRead)
		if authErr != nil {
			return nil, authErr
		}
		rv, err := e.GetForViewer(ctx, input.ID, v)
		if err != nil {
			return nil, handleError(err)
		}
		return &reminderBody{Body: rv}, nil
	})

	registerAction(api, e, "approve-reminder", "approve", "Approve reminder", config.PermReminderApprove,
		func(ctx context.Context, id string, v domain.Viewer) (domain.Reminder, error) {
			return e.Approve(ctx, id, v)
		})
	registerAction(api, e, "star-reminder", "star", "Toggle star", config.PermReminderUpdate,
		func(ctx context.Context, id string, v domain.Viewer) (domain.Reminder, error) {
			return e.ToggleStar(ctx, id, v)
		})
	registerAction(api, e, "dismiss-reminder", "dismiss", "Dismiss reminder", config.PermReminderUpdate,
		func(ctx context.Context, id string, v domain.Viewer) (domain.Reminder, error) {
			return e.Dismiss(ctx, id, v)
		})

	huma.Register(api, huma.Operation{
		OperationID: "reject-reminder",
		Method:      http.MethodPost,
		Path:        "/reminders/{id}/reject",
		Summary:     "Reject reminder with a reason",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID   string        `path:"id"`
		Body RejectRequest `json:"body"`
	}) (*reminderBody, error) {
		v, authErr := requireViewer(ctx, e, config.PermReminderReject)
		if authErr != nil {
			return nil, authErr
		}
		if _, err := e.GetForViewer(ctx, input.ID, v); err != nil {
			return nil, handleError(err)
		}
		rem, err := e.Reject(ctx, input.ID, v, input.Body.Reason)
		if err != nil {
			return nil, handleError(err)
		}
		return &reminderBody{Body: view(e, rem, v)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "snooze-reminder",
		Method:      http.MethodPost,
		Path:        "/reminders/{id}/snooze",
		Summary:     "Snooze reminder",
		Description: "Moves the alert to now + minutes. The response names the id to drop from the caller's shown set.",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID   string        `path:"id"`
		Body SnoozeRequest `json:"body"`
	}) (*struct {
		Body engine.SnoozeResult `json:"body"`
	}, error) {
		v, authErr := requireViewer(ctx, e, config.PermReminderUpdate)
		if authErr != nil {
			return nil, authErr
		}
		if _, err := e.GetForViewer(ctx, input.ID, v); err != nil {
			return nil, handleError(err)
		}
		res, err := e.Snooze(ctx, input.ID, input.Body.Minutes, v)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.SnoozeResult `json:"body"`
		}{Body: res}, nil
	})
}

type actionFunc func(ctx context.Context, id string, v domain.Viewer) (domain.Reminder, error)

// registerAction wires a body-less POST /reminders/{id}/<verb>. The reminder
// must be visible to the caller.
func registerAction(api huma.API, e engine.Engine, opID, verb, summary, perm string, fn actionFunc) {
	huma.Register(api, huma.Operation{
		OperationID: opID,
		Method:      http.MethodPost,
		Path:        "/reminders/{id}/" + verb,
		Summary:     summary,
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *reminderPath) (*reminderBody, error) {
		v, authErr := requireViewer(ctx, e, perm)
		if authErr != nil {
			return nil, authErr
		}
		if _, err := e.GetForViewer(ctx, input.ID, v); err != nil {
			return nil, handleError(err)
		}
		rem, err := fn(ctx, input.ID, v)
		if err != nil {
			return nil, handleError(err)
		}
		return &reminderBody{Body: view(e, rem, v)}, nil
	})
}

func view(e engine.Engine, r domain.Reminder, v domain.Viewer) engine.ReminderView {
	return engine.ReminderView{Reminder: r, ShowStatusBadge: e.Resolver.ShouldShowStatusBadge(r, v)}
}

// registerAlerts exposes alert evaluation. A failed reminder read is logged
// and evaluates as an empty list so callers keep polling.
func registerAlerts(api huma.API, e engine.Engine, logger *zap.Logger) {
	huma.Register(api, huma.Operation{
		OperationID: "evaluate-alerts",
		Method:      http.MethodPost,
		Path:        "/alerts/evaluate",
		Summary:     "Evaluate due alerts",
		Description: "Stateless: the caller owns its shown set, sends it in and keeps the returned one.",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body EvaluateAlertsRequest `json:"body"`
	}) (*struct {
		Body EvaluateAlertsResponse `json:"body"`
	}, error) {
		v, authErr := requireViewer(ctx, e, config.PermReminderRead)
		if authErr != nil {
			return nil, authErr
		}
		now := time.Now()
		if e.Now != nil {
			now = e.Now()
		}
		if input.Body.Now != "" {
			parsed, err := time.Parse(time.RFC3339, input.Body.Now)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "now must be RFC 3339", map[string]any{"now": input.Body.Now})
			}
			now = parsed
		}
		list, err := e.VisibleReminders(ctx, v)
		if err != nil {
			logger.Warn("evaluate alerts: read failed", zap.String("viewer", v.String()), zap.Error(err))
			list = nil
		}
		shown := alert.NewShownSet(input.Body.Shown...)
		due := e.Evaluator().Evaluate(list, v, now, shown)
		shown.Add(due...)
		byID := make(map[string]domain.Reminder, len(list))
		for _, r := range list {
			byID[r.ID] = r
		}
		resp := EvaluateAlertsResponse{Due: nonNilSlice(due), Alerts: []engine.ReminderView{}, Shown: shown.IDs()}
		for _, id := range due {
			resp.Alerts = append(resp.Alerts, view(e, byID[id], v))
		}
		return &struct {
			Body EvaluateAlertsResponse `json:"body"`
		}{Body: resp}, nil
	})
}

func registerDashboard(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "stats",
		Method:      http.MethodGet,
		Path:        "/stats",
		Summary:     "Counts over reminders the caller created",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body engine.Stats `json:"body"`
	}, error) {
		v, authErr := requireViewer(ctx, e, config.PermReminderRead)
		if authErr != nil {
			return nil, authErr
		}
		stats, err := e.Stats(ctx, v)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.Stats `json:"body"`
		}{Body: stats}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "notifications",
		Method:      http.MethodGet,
		Path:        "/notifications",
		Summary:     "Status updates on the caller's reminders",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" default:"20"`
	}) (*struct {
		Body NotificationList `json:"body"`
	}, error) {
		v, authErr := requireViewer(ctx, e, config.PermReminderRead)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.StatusUpdates(ctx, v, normalizeLimit(input.Limit))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body NotificationList `json:"body"`
		}{Body: NotificationList{Items: nonNilSlice(items)}}, nil
	})
}
