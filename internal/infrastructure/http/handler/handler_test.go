package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/taskflow/internal/application/auth"
	"github.com/rezkam/taskflow/internal/application/task"
	"github.com/rezkam/taskflow/internal/infrastructure/cache"
	"github.com/rezkam/taskflow/internal/infrastructure/persistence/sqlite"
	"github.com/rezkam/taskflow/internal/infrastructure/realtime"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type testAPI struct {
	handler http.Handler
	hub     *realtime.Hub
}

// newTestAPI wires the handler to an in-memory store. The user is taken from
// the X-User header in place of a token.
func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	store, err := sqlite.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	hub := realtime.NewHub()
	svc := task.NewService(store, cache.NewUserTaskCache(cache.Config{}), hub,
		task.WithClock(func() time.Time { return testNow }))

	routes := NewTaskHandler(svc, hub, WithKeepalive(50*time.Millisecond, time.Second)).Routes()
	withUser := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if user := r.Header.Get("X-User"); user != "" {
			ctx = auth.WithUserID(ctx, user)
		}
		routes.ServeHTTP(w, r.WithContext(ctx))
	})

	return &testAPI{handler: withUser, hub: hub}
}

func (a *testAPI) do(t *testing.T, method, target, user string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	r := httptest.NewRequest(method, target, &buf)
	if user != "" {
		r.Header.Set("X-User", user)
	}
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, r)
	return w
}

func (a *testAPI) createTask(t *testing.T, user string, req CreateTaskRequest) TaskDTO {
	t.Helper()
	w := a.do(t, http.MethodPost, "/tasks", user, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Task TaskDTO `json:"task"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Task
}

func (a *testAPI) filter(t *testing.T, user, query string) []TaskDTO {
	t.Helper()
	w := a.do(t, http.MethodGet, "/tasks?"+query, user, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Tasks []TaskDTO `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Tasks
}

func ids(tasks []TaskDTO) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func intPtr(v int) *int { return &v }

func TestCreateTask(t *testing.T) {
	api := newTestAPI(t)

	created := api.createTask(t, "user-1", CreateTaskRequest{Title: "  Write report  "})

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Write report", created.Title)
	assert.Equal(t, "ongoing", created.Status)
	assert.Equal(t, 50, created.ValueImpact)
	assert.Equal(t, 5, created.Difficulty)
	assert.Equal(t, 30, created.PriorityScore)
	assert.Equal(t, "1", created.Etag)
}

func TestCreateTask_ClampsInputs(t *testing.T) {
	api := newTestAPI(t)
	deadline := testNow

	created := api.createTask(t, "user-1", CreateTaskRequest{
		Title:       "Ship it",
		Status:      "inprogress",
		Deadline:    &deadline,
		ValueImpact: intPtr(500),
		Difficulty:  intPtr(-3),
	})

	assert.Equal(t, "in-progress", created.Status)
	assert.Equal(t, 100, created.ValueImpact)
	assert.Equal(t, 1, created.Difficulty)
	assert.Equal(t, 98, created.PriorityScore)
}

func TestCreateTask_Errors(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name     string
		user     string
		body     any
		wantCode int
	}{
		{"missing user", "", CreateTaskRequest{Title: "x"}, http.StatusUnauthorized},
		{"missing title", "user-1", CreateTaskRequest{Title: "   "}, http.StatusBadRequest},
		{"bad status", "user-1", CreateTaskRequest{Title: "x", Status: "paused"}, http.StatusBadRequest},
		{"title too long", "user-1", CreateTaskRequest{Title: strings.Repeat("a", 256)}, http.StatusBadRequest},
		{"unknown list", "user-1", CreateTaskRequest{Title: "x", ListID: ptrTo("0195f2c0-0000-7000-8000-000000000001")}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(t, http.MethodPost, "/tasks", tt.user, tt.body)
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
		})
	}

	t.Run("invalid json", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/tasks", strings.NewReader("{"))
		r.Header.Set("X-User", "user-1")
		w := httptest.NewRecorder()
		api.handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func ptrTo[T any](v T) *T { return &v }

func TestGetTask(t *testing.T) {
	api := newTestAPI(t)
	created := api.createTask(t, "user-1", CreateTaskRequest{Title: "Mine"})

	w := api.do(t, http.MethodGet, "/tasks/"+created.ID, "user-1", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodGet, "/tasks/"+created.ID, "user-2", nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "other users must not see the task")

	w = api.do(t, http.MethodGet, "/tasks/not-a-uuid", "user-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateTask(t *testing.T) {
	api := newTestAPI(t)
	created := api.createTask(t, "user-1", CreateTaskRequest{Title: "Draft"})

	t.Run("recomputes score", func(t *testing.T) {
		w := api.do(t, http.MethodPatch, "/tasks/"+created.ID, "user-1", UpdateTaskRequest{
			Task:       TaskFields{ValueImpact: intPtr(100), Etag: ptrTo(created.Etag)},
			UpdateMask: []string{"value_impact"},
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp struct {
			Task TaskDTO `json:"task"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 100, resp.Task.ValueImpact)
		assert.Equal(t, 50, resp.Task.PriorityScore)
		assert.Equal(t, "2", resp.Task.Etag)
	})

	t.Run("stale etag conflicts", func(t *testing.T) {
		w := api.do(t, http.MethodPatch, "/tasks/"+created.ID, "user-1", UpdateTaskRequest{
			Task:       TaskFields{Title: ptrTo("Final"), Etag: ptrTo("1")},
			UpdateMask: []string{"title"},
		})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	tests := []struct {
		name string
		req  UpdateTaskRequest
	}{
		{"empty mask", UpdateTaskRequest{Task: TaskFields{Title: ptrTo("x")}}},
		{"unknown field", UpdateTaskRequest{Task: TaskFields{}, UpdateMask: []string{"priority_score"}}},
		{"bad status", UpdateTaskRequest{Task: TaskFields{Status: ptrTo("paused")}, UpdateMask: []string{"status"}}},
		{"bad etag", UpdateTaskRequest{Task: TaskFields{Title: ptrTo("x"), Etag: ptrTo("abc")}, UpdateMask: []string{"title"}}},
		{"title without value", UpdateTaskRequest{UpdateMask: []string{"title"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(t, http.MethodPatch, "/tasks/"+created.ID, "user-1", tt.req)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestDeleteTask(t *testing.T) {
	api := newTestAPI(t)
	soft := api.createTask(t, "user-1", CreateTaskRequest{Title: "Soft"})
	hard := api.createTask(t, "user-1", CreateTaskRequest{Title: "Hard"})
	kept := api.createTask(t, "user-1", CreateTaskRequest{Title: "Kept"})

	assert.Equal(t, http.StatusNoContent, api.do(t, http.MethodDelete, "/tasks/"+soft.ID, "user-1", nil).Code)
	assert.Equal(t, http.StatusNoContent, api.do(t, http.MethodDelete, "/tasks/"+hard.ID+"?hard=true", "user-1", nil).Code)
	assert.Equal(t, http.StatusBadRequest, api.do(t, http.MethodDelete, "/tasks/"+kept.ID+"?hard=maybe", "user-1", nil).Code)

	assert.Equal(t, []string{kept.ID}, ids(api.filter(t, "user-1", "")))

	w := api.do(t, http.MethodGet, "/tasks/"+soft.ID, "user-1", nil)
	assert.Equal(t, http.StatusOK, w.Code, "soft-deleted tasks stay readable by id")
	assert.Contains(t, w.Body.String(), `"is_deleted":true`)

	assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodGet, "/tasks/"+hard.ID, "user-1", nil).Code)
}

func TestFilterTasks(t *testing.T) {
	api := newTestAPI(t)
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	// 23:30 Berlin on March 11 is 22:30 UTC the same day.
	lateEvening := time.Date(2026, 3, 11, 23, 30, 0, 0, berlin)
	nextWeek := time.Date(2026, 3, 16, 9, 0, 0, 0, time.UTC)

	evening := api.createTask(t, "user-1", CreateTaskRequest{Title: "Evening", Deadline: &lateEvening})
	later := api.createTask(t, "user-1", CreateTaskRequest{Title: "Later", Deadline: &nextWeek, Status: "completed"})
	undated := api.createTask(t, "user-1", CreateTaskRequest{Title: "Undated"})
	api.createTask(t, "user-2", CreateTaskRequest{Title: "Someone else", Deadline: &lateEvening})

	tests := []struct {
		name  string
		query url.Values
		want  []string
	}{
		{"empty filter", url.Values{}, []string{undated.ID, later.ID, evening.ID}},
		{"status", url.Values{"status": {"completed"}}, []string{later.ID}},
		{"day in client zone", url.Values{"date": {"2026-03-11"}, "tz": {"Europe/Berlin"}}, []string{evening.ID}},
		{"day in UTC", url.Values{"date": {"2026-03-12"}}, []string{}},
		{"range", url.Values{"from": {"2026-03-11"}, "to": {"2026-03-20"}}, []string{later.ID, evening.ID}},
		{"reversed range", url.Values{"from": {"2026-03-20"}, "to": {"2026-03-11"}}, []string{}},
		{"week", url.Values{"week_of": {"2026-03-10"}}, []string{evening.ID}},
		{"status and range", url.Values{"status": {"ongoing"}, "from": {"2026-03-01"}, "to": {"2026-03-31"}}, []string{evening.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(api.filter(t, "user-1", tt.query.Encode())))
		})
	}

	invalid := []url.Values{
		{"status": {"paused"}},
		{"date": {"yesterday"}},
		{"from": {"2026-03-01"}},
		{"tz": {"Mars/Olympus"}},
	}
	for _, q := range invalid {
		t.Run("invalid "+q.Encode(), func(t *testing.T) {
			w := api.do(t, http.MethodGet, "/tasks?"+q.Encode(), "user-1", nil)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestFilterTasks_SameResultAfterSync(t *testing.T) {
	api := newTestAPI(t)
	deadline := time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC)
	for _, title := range []string{"a", "b", "c"} {
		api.createTask(t, "user-1", CreateTaskRequest{Title: title, Deadline: &deadline})
	}
	api.createTask(t, "user-1", CreateTaskRequest{Title: "undated"})

	query := url.Values{"week_of": {"2026-03-10"}}.Encode()
	remote := ids(api.filter(t, "user-1", query))

	w := api.do(t, http.MethodPost, "/sync", "user-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"synced":4}`, w.Body.String())

	local := ids(api.filter(t, "user-1", query))
	assert.Len(t, remote, 3)
	assert.Equal(t, remote, local)
}

func TestLists(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodPost, "/lists", "user-1", CreateListRequest{Title: "Work"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		List TaskListDTO `json:"list"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = api.do(t, http.MethodPost, "/lists", "user-1", CreateListRequest{Title: ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodGet, "/lists", "user-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), created.List.ID)

	w = api.do(t, http.MethodGet, "/lists", "user-2", nil)
	assert.JSONEq(t, `{"lists":[]}`, w.Body.String())

	inList := api.createTask(t, "user-1", CreateTaskRequest{Title: "In list"})
	api.createTask(t, "user-1", CreateTaskRequest{Title: "Loose"})

	w = api.do(t, http.MethodPut, "/tasks/"+inList.ID+"/list", "user-1", AssignListRequest{ListID: &created.List.ID})
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	byList := "list_id=" + created.List.ID
	assert.Equal(t, []string{inList.ID}, ids(api.filter(t, "user-1", byList)))

	require.Equal(t, http.StatusOK, api.do(t, http.MethodPost, "/sync", "user-1", nil).Code)
	assert.Equal(t, []string{inList.ID}, ids(api.filter(t, "user-1", byList)))

	w = api.do(t, http.MethodPut, "/tasks/"+inList.ID+"/list", "user-1", AssignListRequest{})
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, api.filter(t, "user-1", byList))

	w = api.do(t, http.MethodPut, "/tasks/"+inList.ID+"/list", "user-2", AssignListRequest{ListID: &created.List.ID})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPreviewScore(t *testing.T) {
	api := newTestAPI(t)
	deadline := testNow

	w := api.do(t, http.MethodPost, "/priority-score", "user-1", ScoreRequest{})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"priority_score":30}`, w.Body.String())

	w = api.do(t, http.MethodPost, "/priority-score", "user-1", ScoreRequest{
		Deadline:    &deadline,
		ValueImpact: intPtr(100),
		Difficulty:  intPtr(1),
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"priority_score":98}`, w.Body.String())

	assert.Equal(t, http.StatusOK, api.do(t, http.MethodGet, "/tasks", "user-1", nil).Code,
		"preview must not create a task")
	assert.Empty(t, api.filter(t, "user-1", ""))
}

func TestEvents_StreamsTaskChanges(t *testing.T) {
	api := newTestAPI(t)
	srv := httptest.NewServer(api.handler)
	defer srv.Close()

	header := http.Header{}
	header.Set("X-User", "user-1")
	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/events", header)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	require.Eventually(t, func() bool { return api.hub.ClientCount("user-1") == 1 },
		2*time.Second, 10*time.Millisecond)

	created := api.createTask(t, "user-1", CreateTaskRequest{Title: "Notify me"})
	api.createTask(t, "user-2", CreateTaskRequest{Title: "Not for you"})

	require.NoError(t, conn.SetReadDeadline(time.Now().UTC().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var event struct {
		Type   string  `json:"type"`
		TaskID string  `json:"task_id"`
		Task   TaskDTO `json:"task"`
	}
	require.NoError(t, json.Unmarshal(msg, &event))
	assert.Equal(t, "task.created", event.Type)
	assert.Equal(t, created.ID, event.TaskID)
	assert.Equal(t, "Notify me", event.Task.Title)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return api.hub.ClientCount("user-1") == 0 },
		2*time.Second, 10*time.Millisecond)
}

func TestEvents_SlowSubscriberDoesNotBlockBroadcast(t *testing.T) {
	hub := realtime.NewHub()
	stalled := newWSClient(nil, 2)
	hub.Register("user-1", stalled)

	done := make(chan int, 1)
	go func() {
		delivered := 0
		for range 5 {
			delivered += hub.Broadcast("user-1", []byte("event"))
		}
		done <- delivered
	}()

	select {
	case delivered := <-done:
		assert.Equal(t, 2, delivered, "only the queued messages count as delivered")
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a client that is not reading")
	}
	assert.Equal(t, 0, hub.ClientCount("user-1"), "a client with a full queue is dropped")
	assert.False(t, stalled.Send([]byte("late")))
}

func TestEvents_RequiresUser(t *testing.T) {
	api := newTestAPI(t)
	w := api.do(t, http.MethodGet, "/events", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWithAllowedOrigins(t *testing.T) {
	h := NewTaskHandler(nil, realtime.NewHub(), WithAllowedOrigins([]string{"https://app.example.com"}))

	r := httptest.NewRequest(http.MethodGet, "/events", nil)
	r.Header.Set("Origin", "https://app.example.com")
	assert.True(t, h.upgrader.CheckOrigin(r))

	r.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, h.upgrader.CheckOrigin(r))

	open := NewTaskHandler(nil, realtime.NewHub(), WithAllowedOrigins([]string{"*"}))
	assert.True(t, open.upgrader.CheckOrigin(r))
}
