package reminderdesksdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSendsCredentialsAndDecodes(t *testing.T) {
	var gotAuth, gotRole, gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRole = r.Header.Get("X-Viewer-Role")
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{{"id": "r1", "title": "Board pack", "status": "pending", "show_status_badge": true}},
		})
	}))
	defer srv.Close()

	c := New(srv.URL + "/")
	c.BearerToken = "tok"
	items, err := c.ListReminders(context.Background(), ListOptions{Scope: "shared_by_me", Status: "pending"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "r1", items[0].ID)
	assert.True(t, items[0].ShowStatusBadge)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Empty(t, gotRole)
	assert.Equal(t, "/v0/reminders", gotPath)
	assert.Equal(t, "scope=shared_by_me&status=pending", gotQuery)

	c.BearerToken = ""
	c.Role = "CEO"
	_, err = c.ListReminders(context.Background(), ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, "CEO", gotRole)
	assert.Empty(t, gotQuery)
}

func TestClientPostsActionBodies(t *testing.T) {
	var body map[string]any
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body = nil
		_ = json.NewDecoder(r.Body).Decode(&body)
		switch r.URL.Path {
		case "/v0/reminders/r1/snooze":
			json.NewEncoder(w).Encode(map[string]any{"reminder": map[string]any{"id": "r1"}, "rearm": "r1"})
		case "/v0/alerts/evaluate":
			json.NewEncoder(w).Encode(map[string]any{"due": []string{"r2"}, "alerts": []any{}, "shown": []string{"r1", "r2"}})
		default:
			json.NewEncoder(w).Encode(map[string]any{"id": "r1", "status": "rejected"})
		}
	}))
	defer srv.Close()
	c := New(srv.URL)
	ctx := context.Background()

	rem, err := c.Reject(ctx, "r1", "over budget")
	require.NoError(t, err)
	assert.Equal(t, "rejected", rem.Status)
	assert.Equal(t, "/v0/reminders/r1/reject", gotPath)
	assert.Equal(t, "over budget", body["reason"])

	snz, err := c.Snooze(ctx, "r1", 15)
	require.NoError(t, err)
	assert.Equal(t, "r1", snz.Rearm)
	assert.Equal(t, float64(15), body["minutes"])

	now := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	alerts, err := c.EvaluateAlerts(ctx, []string{"r1"}, now)
	require.NoError(t, err)
	assert.Equal(t, []string{"r2"}, alerts.Due)
	assert.Equal(t, []string{"r1", "r2"}, alerts.Shown)
	assert.Equal(t, "2024-03-04T09:00:00Z", body["now"])
}

func TestClientDecodesErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":{"code":"invalid_transition","message":"invalid reminder status transition approved -> rejected"}}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Approve(context.Background(), "r1")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "invalid_transition", apiErr.Code)
	assert.Contains(t, apiErr.Error(), "invalid_transition")
}
