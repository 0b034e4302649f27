package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"officesim/internal/app"
	"officesim/internal/config"
	"officesim/internal/db"
	"officesim/internal/domain"
	"officesim/internal/logger"
	"officesim/internal/migrate"
	"officesim/internal/repo"
	"officesim/internal/scenario"
)

type fixture struct {
	URL    string
	runner *app.Runner
	repo   *repo.Repo
	hub    *Hub
}

type fixtureOptions struct {
	journal bool
	secret  string
}

func ptr[T any](v T) *T { return &v }

func newFixture(t *testing.T, o fixtureOptions) *fixture {
	t.Helper()
	cfg, err := config.FromYAML([]byte(`
simulation:
  seed: 5
  workers: 4
weather:
  fixed: sunny
`))
	require.NoError(t, err)

	reg := scenario.NewRegistry(logger.Discard())
	require.NoError(t, reg.Add(scenario.Scenario{
		ID:   "fire_drill",
		Name: "Fire drill",
		Type: scenario.TypeGeneral,
		Tasks: []scenario.TaskSpec{
			{ID: "drill", Name: ptr("Lead the drill"), Duration: ptr(30), SuccessRate: ptr(0.9)},
		},
	}))
	require.NoError(t, reg.Add(scenario.Scenario{
		ID:           "late_party",
		Type:         scenario.TypeGeneral,
		Requirements: &scenario.Requirements{TimeStart: "22:00"},
		Tasks:        []scenario.TaskSpec{{Name: ptr("Order pizza"), Duration: ptr(10)}},
	}))

	opts := app.Options{Config: cfg, Registry: reg, Logger: logger.Discard()}
	f := &fixture{hub: NewHub(logger.Discard())}
	if o.journal {
		conn, err := db.Open(db.Config{Workspace: t.TempDir()})
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		require.NoError(t, migrate.Migrate(conn))
		opts.DB = conn
		f.repo = &repo.Repo{DB: conn}
	}
	f.runner, err = app.Build(context.Background(), opts)
	require.NoError(t, err)

	handler, err := New(Config{
		Runner:   f.runner,
		Repo:     f.repo,
		BasePath: "/v0",
		Auth:     AuthConfig{JWTSecret: o.secret},
		Logger:   logger.Discard(),
		Hub:      f.hub,
	})
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	f.URL = srv.URL
	return f
}

func doJSON(t *testing.T, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader = bytes.NewReader(nil)
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(data, &out), string(data))
	return out
}

type errorEnvelope struct {
	Error apiErrorBody `json:"error"`
}

func TestHealth(t *testing.T) {
	f := newFixture(t, fixtureOptions{journal: true})
	res, body := doJSON(t, http.MethodGet, f.URL+"/v0/health", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))
	health := decode[HealthResponse](t, body)
	assert.Equal(t, "ok", health.Status)
	assert.True(t, health.Journal)
	assert.Equal(t, f.runner.RunInfo().ID, health.RunID)
	latest, err := migrate.Latest()
	require.NoError(t, err)
	assert.Equal(t, latest, health.SchemaVersion)
}

func TestStateEndpoints(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	res, body := doJSON(t, http.MethodGet, f.URL+"/v0/snapshot", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))
	snap := decode[domain.Snapshot](t, body)
	assert.Equal(t, "Day 1 - 08:00", snap.Clock)
	assert.Len(t, snap.Workers, 5, "four staff plus the security guard")

	res, body = doJSON(t, http.MethodGet, f.URL+"/v0/rooms?type=Corridor", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))
	rooms := decode[RoomList](t, body)
	require.Len(t, rooms.Items, 1)
	assert.Equal(t, "corridor-1", rooms.Items[0].ID)

	workerID := snap.Workers[0].ID
	res, body = doJSON(t, http.MethodGet, f.URL+"/v0/workers/"+workerID, nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))
	assert.Equal(t, workerID, decode[domain.WorkerView](t, body).ID)

	res, body = doJSON(t, http.MethodGet, f.URL+"/v0/workers/nobody", nil, nil)
	require.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, "not_found", decode[errorEnvelope](t, body).Error.Code)

	res, body = doJSON(t, http.MethodGet, f.URL+"/v0/tasks?status=Pending&pool=true", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))
	tasks := decode[TaskList](t, body)
	require.Len(t, tasks.Items, snap.PoolSize)
	for _, task := range tasks.Items {
		assert.Equal(t, "Pending", task.Status)
		assert.True(t, task.InPool)
	}
}

func TestTick(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	res, body := doJSON(t, http.MethodPost, f.URL+"/v0/tick", TickRequest{Minutes: 30, Steps: 2}, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))
	summary := decode[domain.TickSummary](t, body)
	assert.Equal(t, "Day 1 - 09:00", summary.Clock)
	assert.Equal(t, "sunny", summary.Weather)

	res, body = doJSON(t, http.MethodPost, f.URL+"/v0/tick", map[string]any{"minutes": -5}, nil)
	require.Equal(t, http.StatusBadRequest, res.StatusCode, string(body))
	assert.Equal(t, "bad_request", decode[errorEnvelope](t, body).Error.Code)
}

func TestStartDay(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	res, body := doJSON(t, http.MethodPost, f.URL+"/v0/tick", TickRequest{Minutes: 60, Steps: 11}, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))
	require.Equal(t, 2, decode[domain.TickSummary](t, body).Day)

	res, body = doJSON(t, http.MethodPost, f.URL+"/v0/start-day", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))
	resp := decode[StartDayResponse](t, body)
	assert.Equal(t, resp.Workers, resp.OnDuty)
}

func TestScenarios(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	res, body := doJSON(t, http.MethodGet, f.URL+"/v0/scenarios", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))
	list := decode[ScenarioList](t, body)
	require.Len(t, list.Items, 2)
	byID := map[string]ScenarioResponse{}
	for _, sc := range list.Items {
		byID[sc.ID] = sc
	}
	assert.True(t, byID["fire_drill"].Eligible)
	assert.Equal(t, 1, byID["fire_drill"].Tasks)
	assert.False(t, byID["late_party"].Eligible)
	assert.Equal(t, "late_party", byID["late_party"].Name)

	res, body = doJSON(t, http.MethodPost, f.URL+"/v0/scenarios/fire_drill/activate", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))
	act := decode[ActivationResponse](t, body)
	require.Equal(t, []string{"drill"}, act.TaskIDs)

	res, body = doJSON(t, http.MethodGet, f.URL+"/v0/tasks", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	found := false
	for _, task := range decode[TaskList](t, body).Items {
		if task.ID == "drill" {
			found = true
			assert.Equal(t, "Lead the drill", task.Name)
		}
	}
	assert.True(t, found)

	res, body = doJSON(t, http.MethodPost, f.URL+"/v0/scenarios/ghost/activate", nil, nil)
	require.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, "scenario_not_found", decode[errorEnvelope](t, body).Error.Code)

	res, body = doJSON(t, http.MethodGet, f.URL+"/v0/tasks", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	tasks := len(decode[TaskList](t, body).Items)

	res, body = doJSON(t, http.MethodPost, f.URL+"/v0/scenarios/late_party/activate", nil, nil)
	require.Equal(t, http.StatusConflict, res.StatusCode, string(body))
	assert.Equal(t, "requirements_unmet", decode[errorEnvelope](t, body).Error.Code)
	res, body = doJSON(t, http.MethodGet, f.URL+"/v0/tasks", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Len(t, decode[TaskList](t, body).Items, tasks)

	res, body = doJSON(t, http.MethodPost, f.URL+"/v0/scenarios/late_party/activate?force=true", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))
	assert.Len(t, decode[ActivationResponse](t, body).TaskIDs, 1)
}

func TestAuthGuardsMutations(t *testing.T) {
	f := newFixture(t, fixtureOptions{secret: "s3cret"})

	res, _ := doJSON(t, http.MethodGet, f.URL+"/v0/snapshot", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	res, body := doJSON(t, http.MethodPost, f.URL+"/v0/tick", TickRequest{Minutes: 1}, nil)
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, "unauthorized", decode[errorEnvelope](t, body).Error.Code)

	bad, err := IssueToken("other", "ops", nil, time.Hour)
	require.NoError(t, err)
	res, body = doJSON(t, http.MethodPost, f.URL+"/v0/tick", TickRequest{Minutes: 1}, map[string]string{"Authorization": "Bearer " + bad})
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, "invalid_credentials", decode[errorEnvelope](t, body).Error.Code)

	expired, err := IssueToken("s3cret", "ops", nil, -time.Minute)
	require.NoError(t, err)
	res, _ = doJSON(t, http.MethodPost, f.URL+"/v0/tick", TickRequest{Minutes: 1}, map[string]string{"Authorization": "Bearer " + expired})
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)

	good, err := IssueToken("s3cret", "ops", []string{"operator"}, time.Hour)
	require.NoError(t, err)
	res, body = doJSON(t, http.MethodPost, f.URL+"/v0/tick", TickRequest{Minutes: 1}, map[string]string{"Authorization": "Bearer " + good})
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))
}

func TestIssueTokenRoundTrip(t *testing.T) {
	token, err := IssueToken("k", "alice", []string{"operator"}, time.Hour)
	require.NoError(t, err)
	p, err := authenticateJWT(token, "k")
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Subject)
	assert.Equal(t, []string{"operator"}, p.Roles)

	_, err = IssueToken("", "alice", nil, time.Hour)
	require.Error(t, err)
	_, err = IssueToken("k", " ", nil, time.Hour)
	require.Error(t, err)
}

func TestEvents(t *testing.T) {
	f := newFixture(t, fixtureOptions{journal: true})
	res, body := doJSON(t, http.MethodPost, f.URL+"/v0/tick", TickRequest{Minutes: 10, Steps: 3}, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))

	res, body = doJSON(t, http.MethodGet, f.URL+"/v0/events?type=task.assigned", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))
	all := decode[paginatedEvents](t, body)
	require.NotEmpty(t, all.Items)
	for _, evt := range all.Items {
		assert.Equal(t, "task.assigned", evt.Type)
		assert.Equal(t, f.runner.RunInfo().ID, evt.RunID)
	}

	if len(all.Items) > 1 {
		res, body = doJSON(t, http.MethodGet, f.URL+"/v0/events?type=task.assigned&limit=1", nil, nil)
		require.Equal(t, http.StatusOK, res.StatusCode)
		page := decode[paginatedEvents](t, body)
		require.Len(t, page.Items, 1)
		require.NotEmpty(t, page.NextCursor)

		res, body = doJSON(t, http.MethodGet, f.URL+"/v0/events?type=task.assigned&limit=1&cursor="+page.NextCursor, nil, nil)
		require.Equal(t, http.StatusOK, res.StatusCode)
		next := decode[paginatedEvents](t, body)
		require.Len(t, next.Items, 1)
		assert.Less(t, next.Items[0].ID, page.Items[0].ID)
	}

	res, _ = doJSON(t, http.MethodGet, f.URL+"/v0/events?cursor=abc", nil, nil)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)

	res, body = doJSON(t, http.MethodGet, f.URL+"/v0/runs", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Len(t, decode[RunList](t, body).Items, 1)

	res, _ = doJSON(t, http.MethodGet, f.URL+"/v0/runs/missing", nil, nil)
	require.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestEventsWithoutJournal(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	res, body := doJSON(t, http.MethodGet, f.URL+"/v0/events", nil, nil)
	require.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
	assert.Equal(t, "journal_disabled", decode[errorEnvelope](t, body).Error.Code)
}

func TestOpenAPIMarksMutations(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	res, body := doJSON(t, http.MethodGet, f.URL+"/v0/openapi.json", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var oas struct {
		Paths map[string]map[string]struct {
			Security []map[string][]string `json:"security"`
		} `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(body, &oas))
	assert.NotEmpty(t, oas.Paths["/v0/tick"]["post"].Security)
	assert.Empty(t, oas.Paths["/v0/snapshot"]["get"].Security)
}

func TestStreamBroadcastsTicks(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(f.URL, "http") + "/v0/ws"
	c, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer c.Close(websocket.StatusNormalClosure, "")
	require.Eventually(t, func() bool { return f.hub.ConnectionCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	res, body := doJSON(t, http.MethodPost, f.URL+"/v0/tick", TickRequest{Minutes: 5}, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))

	for {
		_, data, err := c.Read(ctx)
		require.NoError(t, err)
		msg := decode[Message](t, data)
		if msg.Type != "tick" {
			continue
		}
		summary := decode[domain.TickSummary](t, msg.Payload)
		assert.Equal(t, "Day 1 - 08:05", summary.Clock)
		break
	}
}

func TestWebhookDelivery(t *testing.T) {
	f := newFixture(t, fixtureOptions{journal: true})
	_, err := f.runner.Advance(context.Background(), 3, 10)
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		got   []webhookEvent
		sigOK = true
	)
	receiver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		defer mu.Unlock()
		if r.Header.Get("X-Officesim-Signature") != signature("hook-key", data) {
			sigOK = false
		}
		var evt webhookEvent
		_ = json.Unmarshal(data, &evt)
		got = append(got, evt)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer receiver.Close()

	disabled := false
	d := NewWebhookDispatcher(*f.repo, f.runner.RunInfo().ID, []config.Webhook{
		{URL: receiver.URL, Events: []string{"task.assigned"}, Secret: "hook-key"},
		{URL: receiver.URL, Enabled: &disabled},
	}, logger.Discard())
	require.NotNil(t, d)
	d.DispatchAll(context.Background())

	want, err := f.repo.CountEventsByType(context.Background(), f.runner.RunInfo().ID)
	require.NoError(t, err)
	delivered := func() []webhookEvent {
		mu.Lock()
		defer mu.Unlock()
		return append([]webhookEvent(nil), got...)
	}

	first := delivered()
	require.Len(t, first, want["task.assigned"])
	for _, evt := range first {
		assert.Equal(t, "task.assigned", evt.Type)
	}
	mu.Lock()
	assert.True(t, sigOK)
	mu.Unlock()

	// a second pass resumes from the cursor
	d.DispatchAll(context.Background())
	assert.Len(t, delivered(), want["task.assigned"])
}

func TestWebhookDispatcherNilWithoutHooks(t *testing.T) {
	off := false
	assert.Nil(t, NewWebhookDispatcher(repo.Repo{}, "r", nil, nil))
	assert.Nil(t, NewWebhookDispatcher(repo.Repo{}, "r", []config.Webhook{{URL: "http://x", Enabled: &off}}, nil))
}
