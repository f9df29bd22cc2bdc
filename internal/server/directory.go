package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"reminderdesk/internal/config"
	"reminderdesk/internal/domain"
	"reminderdesk/internal/engine"
	"reminderdesk/internal/repo"
)

func registerUsers(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/users",
		Summary:     "List directory users",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Role   string `query:"role" enum:"Admin,CEO,CTO,HR"`
		Status string `query:"status" enum:"active,inactive"`
	}) (*struct {
		Body UserList `json:"body"`
	}, error) {
		if _, authErr := requireViewer(ctx, e, config.PermUserRead); authErr != nil {
			return nil, authErr
		}
		f := repo.UserFilter{Status: input.Status}
		if input.Role != "" {
			role, err := domain.ParseRole(input.Role)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
			}
			f.Role = role
		}
		users, err := e.ListUsers(ctx, f)
		if err != nil {
			return nil, handleError(err)
		}
		counts, err := e.UserCounts(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		byRole := make(map[string]int, len(counts))
		for role, n := range counts {
			byRole[string(role)] = n
		}
		return &struct {
			Body UserList `json:"body"`
		}{Body: UserList{Items: nonNilSlice(users), Counts: byRole}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-user",
		Method:        http.MethodPost,
		Path:          "/users",
		Summary:       "Add directory user",
		DefaultStatus: http.StatusCreated,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateUserRequest `json:"body"`
	}) (*struct {
		Body domain.User `json:"body"`
	}, error) {
		v, authErr := requireViewer(ctx, e, config.PermUserManage)
		if authErr != nil {
			return nil, authErr
		}
		u, err := e.AddUser(ctx, engine.UserInput{
			FullName: input.Body.FullName,
			Email:    input.Body.Email,
			Role:     input.Body.Role,
			Status:   input.Body.Status,
		}, v)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.User `json:"body"`
		}{Body: u}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-user",
		Method:      http.MethodPatch,
		Path:        "/users/{id}",
		Summary:     "Edit a user's name, email, role or status",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body UpdateUserRequest `json:"body"`
	}) (*struct {
		Body domain.User `json:"body"`
	}, error) {
		v, authErr := requireViewer(ctx, e, config.PermUserManage)
		if authErr != nil {
			return nil, authErr
		}
		u, err := e.UpdateUser(ctx, input.ID, engine.UserInput{
			FullName: input.Body.FullName,
			Email:    input.Body.Email,
			Role:     input.Body.Role,
			Status:   input.Body.Status,
		}, v)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.User `json:"body"`
		}{Body: u}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-user",
		Method:        http.MethodDelete,
		Path:          "/users/{id}",
		Summary:       "Delete a user and its API keys",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		v, authErr := requireViewer(ctx, e, config.PermUserManage)
		if authErr != nil {
			return nil, authErr
		}
		if _, err := e.DeleteUser(ctx, input.ID, v); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-user-status",
		Method:      http.MethodPost,
		Path:        "/users/{id}/status",
		Summary:     "Activate or deactivate a user",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID   string               `path:"id"`
		Body SetUserStatusRequest `json:"body"`
	}) (*struct {
		Body domain.User `json:"body"`
	}, error) {
		v, authErr := requireViewer(ctx, e, config.PermUserManage)
		if authErr != nil {
			return nil, authErr
		}
		u, err := e.SetUserStatus(ctx, input.ID, input.Body.Status, v)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.User `json:"body"`
		}{Body: u}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent audit events",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind" enum:"reminder,user"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     string `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		if _, authErr := requireViewer(ctx, e, config.PermEventsRead); authErr != nil {
			return nil, authErr
		}
		limit := normalizeLimit(input.Limit)
		var before int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			before = parsed
		}
		items, err := e.Repo.ListEvents(ctx, repo.EventFilter{
			Type:       input.Type,
			EntityKind: input.EntityKind,
			EntityID:   input.EntityID,
			Before:     before,
			Limit:      limit + 1,
		})
		if err != nil {
			return nil, handleError(engine.StoreError{Op: "list events", Err: err})
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		if len(items) > limit {
			resp.NextCursor = fmt.Sprintf("%d", items[limit-1].ID)
			items = items[:limit]
		}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})
}

func registerDevAuth(api huma.API, authCfg AuthConfig) {
	if !authCfg.DevTokens {
		return
	}
	huma.Register(api, huma.Operation{
		OperationID: "dev-token",
		Method:      http.MethodPost,
		Path:        "/auth/dev/token",
		Summary:     "DEV ONLY: mint a JWT for local testing",
		Errors:      []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body DevTokenRequest `json:"body"`
	}) (*struct {
		Body DevTokenResponse `json:"body"`
	}, error) {
		role, err := domain.ParseRole(input.Body.Role)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
		}
		v := domain.Viewer{Role: role, Email: strings.TrimSpace(input.Body.Email)}
		ttl := time.Duration(input.Body.TTLSeconds) * time.Second
		token, err := SignToken(authCfg, v, input.Body.Subject, ttl)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &struct {
			Body DevTokenResponse `json:"body"`
		}{Body: DevTokenResponse{Token: token}}, nil
	})
}
