package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/retry"

	"reminderdesk/internal/config"
	"reminderdesk/internal/db"
	"reminderdesk/internal/domain"
	"reminderdesk/internal/engine"
	"reminderdesk/internal/metrics"
	"reminderdesk/internal/migrate"
	"reminderdesk/internal/notify"
)

const testSecret = "test-secret"

var testNow = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T, tweak func(*config.Config)) *testServer {
	t.Helper()
	workspace := t.TempDir()
	cfg := config.Default()
	cfg.Alerts.Timezone = "UTC"
	cfg.Auth.JWTSecret = testSecret
	cfg.Auth.DevHeaders = true
	cfg.Auth.DevTokens = true
	if tweak != nil {
		tweak(cfg)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, cfg)
	e.Now = func() time.Time { return testNow }
	reg := prometheus.NewRegistry()
	e.Metrics = metrics.New(reg)
	handler, err := New(Config{Engine: e, BasePath: "/v0", Auth: AuthFromConfig(cfg), Gatherer: reg})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	ts := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	t.Cleanup(ts.Close)
	return ts
}

func as(role domain.Role, email string) map[string]string {
	h := map[string]string{headerViewerRole: string(role)}
	if email != "" {
		h[headerViewerEmail] = email
	}
	return h
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal error envelope: %v (%s)", err, data)
	}
	return env.Error.Code
}

func TestReminderLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t, nil)
	client := srv.Client()
	hr := as(domain.RoleHR, "hr@corp.example")
	ceo := as(domain.RoleCEO, "ceo@corp.example")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/reminders", map[string]any{
		"title":             "Budget sign-off",
		"priority":          "High",
		"due_date":          "2024-03-04",
		"alert_time":        "09:00",
		"assigned_to_roles": []string{"CEO"},
	}, hr)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status %d: %s", res.StatusCode, data)
	}
	var created engine.ReminderView
	require.NoError(t, json.Unmarshal(data, &created))
	assert.Equal(t, domain.StatusPending, created.Status)
	assert.True(t, created.ShowStatusBadge)
	assert.ElementsMatch(t, []string{"CEO", "HR"}, []string(created.SharedWith))

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/reminders/"+created.ID+"/reject", map[string]any{"reason": ""}, ceo)
	require.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))
	assert.Equal(t, "validation_failed", errorCode(t, data))

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/reminders/"+created.ID+"/approve", nil, ceo)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var approved engine.ReminderView
	require.NoError(t, json.Unmarshal(data, &approved))
	assert.Equal(t, domain.StatusApproved, approved.Status)
	assert.Equal(t, "ceo@corp.example", approved.UpdatedBy)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/reminders/"+created.ID+"/approve", nil, ceo)
	require.Equal(t, http.StatusConflict, res.StatusCode, string(data))
	assert.Equal(t, "invalid_transition", errorCode(t, data))

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/notifications", nil, hr)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var feed NotificationList
	require.NoError(t, json.Unmarshal(data, &feed))
	require.Len(t, feed.Items, 1)
	assert.Equal(t, domain.StatusApproved, feed.Items[0].Status)

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/stats", nil, hr)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var stats engine.Stats
	require.NoError(t, json.Unmarshal(data, &stats))
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Approved)
	assert.Equal(t, 1, stats.Urgent)
}

func TestPermissionsAndVisibility(t *testing.T) {
	srv := newTestServer(t, nil)
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/reminders", map[string]any{
		"title": "Own", "due_date": "2024-03-04",
	}, as(domain.RoleCTO, ""))
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	var created engine.ReminderView
	require.NoError(t, json.Unmarshal(data, &created))

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/reminders/"+created.ID+"/approve", nil, as(domain.RoleHR, ""))
	require.Equal(t, http.StatusForbidden, res.StatusCode, string(data))
	assert.Equal(t, "forbidden", errorCode(t, data))

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/reminders/"+created.ID, nil, as(domain.RoleCEO, ""))
	require.Equal(t, http.StatusNotFound, res.StatusCode, string(data))

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/reminders/missing", nil, as(domain.RoleCTO, ""))
	require.Equal(t, http.StatusNotFound, res.StatusCode, string(data))

	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/reminders", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/reminders?scope=my", nil, as(domain.RoleCTO, ""))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var list ReminderList
	require.NoError(t, json.Unmarshal(data, &list))
	require.Len(t, list.Items, 1)
	assert.False(t, list.Items[0].ShowStatusBadge)
}

func TestDevTokenAndInactiveUsers(t *testing.T) {
	srv := newTestServer(t, nil)
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/auth/dev/token", map[string]any{
		"role": "HR", "email": "hana@corp.example",
	}, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var tok DevTokenResponse
	require.NoError(t, json.Unmarshal(data, &tok))
	bearer := map[string]string{"Authorization": "Bearer " + tok.Token}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/me", nil, bearer)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var me MeResponse
	require.NoError(t, json.Unmarshal(data, &me))
	assert.Equal(t, domain.RoleHR, me.Role)
	assert.Equal(t, "hana@corp.example", me.Email)
	assert.Equal(t, "jwt", me.Source)
	assert.Contains(t, me.Permissions, config.PermReminderCreate)

	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/me", nil, map[string]string{"Authorization": "Bearer nope"})
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	admin := as(domain.RoleAdmin, "admin@corp.example")
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/users", map[string]any{
		"full_name": "Hana", "email": "hana@corp.example", "role": "HR",
	}, admin)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	var user domain.User
	require.NoError(t, json.Unmarshal(data, &user))

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/users/"+user.ID+"/status", map[string]any{"status": "inactive"}, admin)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/me", nil, bearer)
	require.Equal(t, http.StatusForbidden, res.StatusCode, string(data))
	assert.Equal(t, "inactive_user", errorCode(t, data))

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/users", nil, admin)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var users UserList
	require.NoError(t, json.Unmarshal(data, &users))
	require.Len(t, users.Items, 1)
	assert.Equal(t, 1, users.Counts["HR"])

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/users", map[string]any{
		"full_name": "X", "email": "x@corp.example", "role": "HR",
	}, as(domain.RoleHR, ""))
	require.Equal(t, http.StatusForbidden, res.StatusCode, string(data))
}

func TestEvaluateAlertsIsCallerOwned(t *testing.T) {
	srv := newTestServer(t, nil)
	client := srv.Client()
	hr := as(domain.RoleHR, "hr@corp.example")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/reminders", map[string]any{
		"title": "Standup", "due_date": "2024-03-04", "alert_time": "09:01",
	}, hr)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	var created engine.ReminderView
	require.NoError(t, json.Unmarshal(data, &created))

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/alerts/evaluate", map[string]any{}, hr)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var first EvaluateAlertsResponse
	require.NoError(t, json.Unmarshal(data, &first))
	assert.Equal(t, []string{created.ID}, first.Due)
	assert.Equal(t, []string{created.ID}, first.Shown)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/alerts/evaluate", map[string]any{"shown": first.Shown}, hr)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var second EvaluateAlertsResponse
	require.NoError(t, json.Unmarshal(data, &second))
	assert.Empty(t, second.Due)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/alerts/evaluate", map[string]any{"now": "2024-03-04T10:00:00Z"}, hr)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var late EvaluateAlertsResponse
	require.NoError(t, json.Unmarshal(data, &late))
	assert.Empty(t, late.Due)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/reminders/"+created.ID+"/snooze", map[string]any{"minutes": 15}, hr)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var snoozed engine.SnoozeResult
	require.NoError(t, json.Unmarshal(data, &snoozed))
	assert.Equal(t, created.ID, snoozed.Rearm)
	assert.Equal(t, "09:15", snoozed.Reminder.AlertTime)
}

func TestEventsAndMetrics(t *testing.T) {
	srv := newTestServer(t, nil)
	client := srv.Client()
	hr := as(domain.RoleHR, "")
	for _, title := range []string{"a", "b", "c"} {
		res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/reminders", map[string]any{"title": title, "due_date": "2024-03-04"}, hr)
		require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	}
	ceo := as(domain.RoleCEO, "")
	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/events?limit=2", nil, ceo)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var page paginatedEvents
	require.NoError(t, json.Unmarshal(data, &page))
	require.Len(t, page.Items, 2)
	assert.Equal(t, "reminder.created", page.Items[0].Type)
	assert.Equal(t, "c", page.Items[0].Payload["title"])
	require.NotEmpty(t, page.NextCursor)

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/events?limit=2&cursor="+page.NextCursor, nil, ceo)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var last paginatedEvents
	require.NoError(t, json.Unmarshal(data, &last))
	require.Len(t, last.Items, 1)
	assert.Equal(t, "a", last.Items[0].Payload["title"])
	assert.Empty(t, last.NextCursor)

	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/events", nil, hr)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/metrics", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(data), `reminderdesk_transitions_total{op="create"} 3`)

	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/openapi.json", nil, nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestWebhookDispatcherDeliversLifecycleEvents(t *testing.T) {
	var (
		mu       sync.Mutex
		received []webhookEvent
		sigOK    = true
	)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var evt webhookEvent
		_ = json.Unmarshal(body, &evt)
		mu.Lock()
		received = append(received, evt)
		if r.Header.Get(notify.HeaderSignature) != notify.Sign("hook-secret", body) {
			sigOK = false
		}
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer hook.Close()

	srv := newTestServer(t, func(cfg *config.Config) {
		cfg.Notify.Webhooks = []config.WebhookConfig{{
			ID: "ops", URL: hook.URL, Secret: "hook-secret", Events: []string{"reminder.approved"},
		}}
	})
	ctx := context.Background()
	hr := domain.Viewer{Role: domain.RoleHR}
	early, err := srv.Engine.Create(ctx, engine.CreateInput{Title: "before start", DueDate: "2024-03-04"}, hr)
	require.NoError(t, err)

	d := NewWebhookDispatcher(srv.Engine, nil)
	d.DispatchAll(ctx)

	_, err = srv.Engine.Approve(ctx, early.ID, domain.Viewer{Role: domain.RoleCEO})
	require.NoError(t, err)
	later, err := srv.Engine.Create(ctx, engine.CreateInput{Title: "after start", DueDate: "2024-03-04"}, hr)
	require.NoError(t, err)
	_, err = srv.Engine.Approve(ctx, later.ID, domain.Viewer{Role: domain.RoleCEO})
	require.NoError(t, err)

	d.DispatchAll(ctx)
	d.DispatchAll(ctx)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 2)
	assert.True(t, sigOK)
	assert.Equal(t, early.ID, received[0].EntityID)
	assert.Equal(t, later.ID, received[1].EntityID)
	for _, evt := range received {
		assert.Equal(t, "reminder.approved", evt.Type)
	}
}

func TestWebhookDispatcherRetriesBeforeAdvancing(t *testing.T) {
	var (
		mu     sync.Mutex
		calls  int
		failed = map[string]int{}
	)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		delivery := r.Header.Get(notify.HeaderDelivery)
		if failed[delivery] < 1 {
			failed[delivery]++
			http.Error(w, "flaky", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer hook.Close()

	srv := newTestServer(t, func(cfg *config.Config) {
		cfg.Notify.Webhooks = []config.WebhookConfig{{
			ID: "ops", URL: hook.URL, Events: []string{"reminder.created"}, MaxAttempts: 2, BackoffMillis: 1,
		}}
	})
	ctx := context.Background()
	d := NewWebhookDispatcher(srv.Engine, nil)
	d.DispatchAll(ctx)

	_, err := srv.Engine.Create(ctx, engine.CreateInput{Title: "flaky hook", DueDate: "2024-03-04"}, domain.Viewer{Role: domain.RoleHR})
	require.NoError(t, err)
	d.DispatchAll(ctx)
	d.DispatchAll(ctx)

	mu.Lock()
	assert.Equal(t, 2, calls)
	mu.Unlock()
	cursor, err := srv.Engine.Repo.WebhookCursor(ctx, "ops")
	require.NoError(t, err)
	head, err := srv.Engine.Repo.LatestEventID(ctx)
	require.NoError(t, err)
	assert.Equal(t, head, cursor)
}

func TestWebhookDispatcherHoldsCursorAfterRetriesFail(t *testing.T) {
	var calls atomic.Int32
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer hook.Close()

	srv := newTestServer(t, func(cfg *config.Config) {
		cfg.Notify.Webhooks = []config.WebhookConfig{{ID: "ops", URL: hook.URL, Events: []string{"reminder.created"}}}
	})
	ctx := context.Background()
	d := NewWebhookDispatcher(srv.Engine, nil)
	d.Retry = func(config.WebhookConfig) retry.Strategy {
		return retry.Strategy{Attempts: 3, Delay: time.Millisecond, Backoff: 1}
	}
	d.DispatchAll(ctx)
	start, err := srv.Engine.Repo.WebhookCursor(ctx, "ops")
	require.NoError(t, err)

	_, err = srv.Engine.Create(ctx, engine.CreateInput{Title: "unreachable hook", DueDate: "2024-03-04"}, domain.Viewer{Role: domain.RoleHR})
	require.NoError(t, err)
	d.DispatchAll(ctx)

	assert.Equal(t, int32(3), calls.Load())
	cursor, err := srv.Engine.Repo.WebhookCursor(ctx, "ops")
	require.NoError(t, err)
	assert.Equal(t, start, cursor)
}

func TestEvaluateAlertsDegradesOnReadFailure(t *testing.T) {
	srv := newTestServer(t, nil)
	_, err := srv.Engine.DB.Exec("DROP TABLE reminders")
	require.NoError(t, err)

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/alerts/evaluate",
		map[string]any{"shown": []string{"r-1", "r-2"}}, as(domain.RoleHR, ""))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var out EvaluateAlertsResponse
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Empty(t, out.Due)
	assert.Empty(t, out.Alerts)
	assert.ElementsMatch(t, []string{"r-1", "r-2"}, out.Shown)
}

func TestOpenAPIServedConcurrently(t *testing.T) {
	srv := newTestServer(t, nil)
	client := srv.Client()
	bodies := make([][]byte, 8)
	var wg sync.WaitGroup
	for i := range bodies {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := client.Get(srv.URL + "/v0/openapi.json")
			if err != nil {
				return
			}
			defer res.Body.Close()
			bodies[i], _ = io.ReadAll(res.Body)
		}(i)
	}
	wg.Wait()
	for _, b := range bodies {
		require.NotEmpty(t, b)
		assert.Equal(t, bodies[0], b)
	}
	assert.Contains(t, string(bodies[0]), `"evaluate-alerts"`)
}

func TestEditAndDeleteUsers(t *testing.T) {
	srv := newTestServer(t, nil)
	client := srv.Client()
	admin := as(domain.RoleAdmin, "admin@corp.example")

	var ids []string
	for _, email := range []string{"hana@corp.example", "omar@corp.example"} {
		res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/users", map[string]any{
			"full_name": "User", "email": email, "role": "HR",
		}, admin)
		require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
		var u domain.User
		require.NoError(t, json.Unmarshal(data, &u))
		ids = append(ids, u.ID)
	}

	res, data := doJSON(t, client, http.MethodPatch, srv.URL+"/v0/users/"+ids[0], map[string]any{
		"full_name": "Hana K", "role": "CTO",
	}, admin)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var edited domain.User
	require.NoError(t, json.Unmarshal(data, &edited))
	assert.Equal(t, "Hana K", edited.FullName)
	assert.Equal(t, "hana@corp.example", edited.Email)
	assert.Equal(t, domain.RoleCTO, edited.Role)

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v0/users/"+ids[0], map[string]any{"email": "omar@corp.example"}, admin)
	require.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))
	assert.Equal(t, "validation_failed", errorCode(t, data))

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v0/users/"+ids[0], map[string]any{"full_name": "Nope"}, as(domain.RoleCTO, ""))
	require.Equal(t, http.StatusForbidden, res.StatusCode, string(data))

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v0/users/missing", map[string]any{"full_name": "Ghost"}, admin)
	require.Equal(t, http.StatusNotFound, res.StatusCode, string(data))

	res, data = doJSON(t, client, http.MethodDelete, srv.URL+"/v0/users/"+ids[1], nil, as(domain.RoleHR, ""))
	require.Equal(t, http.StatusForbidden, res.StatusCode, string(data))

	res, data = doJSON(t, client, http.MethodDelete, srv.URL+"/v0/users/"+ids[1], nil, admin)
	require.Equal(t, http.StatusNoContent, res.StatusCode, string(data))
	res, data = doJSON(t, client, http.MethodDelete, srv.URL+"/v0/users/"+ids[1], nil, admin)
	require.Equal(t, http.StatusNotFound, res.StatusCode, string(data))
	assert.Equal(t, "not_found", errorCode(t, data))

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/users", nil, admin)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var users UserList
	require.NoError(t, json.Unmarshal(data, &users))
	require.Len(t, users.Items, 1)
	assert.Equal(t, ids[0], users.Items[0].ID)
	assert.Equal(t, 1, users.Counts["CTO"])

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/events?entity_kind=user&limit=10", nil, as(domain.RoleCEO, ""))
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var page paginatedEvents
	require.NoError(t, json.Unmarshal(data, &page))
	require.NotEmpty(t, page.Items)
	assert.Equal(t, "user.deleted", page.Items[0].Type)
	assert.Equal(t, "user.updated", page.Items[1].Type)
}
