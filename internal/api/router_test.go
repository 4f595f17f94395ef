package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TWRT/task-tracker/internal/api/middleware"
	"github.com/TWRT/task-tracker/internal/models"
	"github.com/TWRT/task-tracker/internal/repository"
	"github.com/TWRT/task-tracker/internal/service"
	"github.com/TWRT/task-tracker/internal/testutil"
)

const testToken = "Bearer test-token"

var testStart = time.Date(2030, time.June, 1, 8, 0, 0, 0, time.UTC)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

type testServer struct {
	handler http.Handler
	clock   *testutil.Clock
	store   *repository.TaskRepository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	clock := testutil.NewClock(testStart)
	log := slog.New(slog.DiscardHandler)

	store, err := repository.OpenSQLite(context.Background(), ":memory:", log, repository.WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	svc := service.NewTaskService(store, log, service.WithClock(clock.Now))
	return &testServer{
		handler: SetupRouter(svc, log, middleware.AuthConfig{Required: true}),
		clock:   clock,
		store:   store,
	}
}

func (s *testServer) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Authorization", testToken)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func (s *testServer) create(t *testing.T, body string) models.Task {
	t.Helper()

	rec, env := s.do(t, http.MethodPost, "/api/tasks", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var task models.Task
	require.NoError(t, json.Unmarshal(env.Data, &task))
	return task
}

func TestCreateTask(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, http.MethodPost, "/api/tasks",
		`{"title":"  Pay rent ","priority":"high","dueDate":"2030-06-02T00:00:00Z","tags":["bills"]}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, env.Success)
	assert.Equal(t, "Task created successfully", env.Message)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))

	var task models.Task
	require.NoError(t, json.Unmarshal(env.Data, &task))
	assert.Len(t, task.ID, 24)
	assert.Equal(t, "Pay rent", task.Title)
	assert.Equal(t, models.PriorityHigh, task.Priority)
	assert.False(t, task.IsCompleted)
	require.NotNil(t, task.DueDate)
	assert.True(t, time.Date(2030, time.June, 2, 0, 0, 0, 0, time.UTC).Equal(*task.DueDate))
	assert.Equal(t, []string{"bills"}, task.Tags)
}

func TestCreateTask_DateOnlyDueDate(t *testing.T) {
	s := newTestServer(t)

	task := s.create(t, `{"title":"File taxes","dueDate":"2030-07-15"}`)
	require.NotNil(t, task.DueDate)
	assert.True(t, time.Date(2030, time.July, 15, 0, 0, 0, 0, time.UTC).Equal(*task.DueDate))
}

func TestCreateTask_OmitsUnsetDueDate(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.do(t, http.MethodPost, "/api/tasks", `{"title":"No deadline"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "dueDate")
}

func TestCreateTask_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"title":`},
		{name: "empty body", body: ``},
		{name: "unknown field", body: `{"title":"x","owner":"me"}`},
		{name: "wrong type", body: `{"title":5}`},
		{name: "missing title", body: `{"description":"nothing else"}`},
		{name: "bad priority", body: `{"title":"x","priority":"urgent"}`},
		{name: "empty priority", body: `{"title":"x","priority":""}`},
		{name: "empty due date", body: `{"title":"x","dueDate":""}`},
		{name: "unparseable due date", body: `{"title":"x","dueDate":"next tuesday"}`},
		{name: "past due date", body: `{"title":"x","dueDate":"2020-01-01"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)

			rec, env := s.do(t, http.MethodPost, "/api/tasks", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Error)

			n, err := s.store.Count(context.Background(), models.TaskQuery{})
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestGetTask(t *testing.T) {
	s := newTestServer(t)
	created := s.create(t, `{"title":"Lookup"}`)

	rec, env := s.do(t, http.MethodGet, "/api/tasks/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var task models.Task
	require.NoError(t, json.Unmarshal(env.Data, &task))
	assert.Equal(t, created.ID, task.ID)

	rec, env = s.do(t, http.MethodGet, "/api/tasks/"+models.NewTaskID(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Task not found", env.Message)

	rec, _ = s.do(t, http.MethodGet, "/api/tasks/42", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListTasks(t *testing.T) {
	s := newTestServer(t)
	first := s.create(t, `{"title":"Buy milk","priority":"low"}`)
	second := s.create(t, `{"title":"Pay rent","priority":"high"}`)
	s.do(t, http.MethodPut, "/api/tasks/"+first.ID, `{"isCompleted":true}`)

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{name: "all", query: "", want: []string{second.ID, first.ID}},
		{name: "completed false", query: "?completed=false", want: []string{second.ID}},
		{name: "completed true", query: "?completed=true", want: []string{first.ID}},
		{name: "priority", query: "?priority=low", want: []string{first.ID}},
		{name: "search", query: "?search=RENT", want: []string{second.ID}},
		{name: "no match", query: "?search=zzz", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := s.do(t, http.MethodGet, "/api/tasks"+tt.query, "")
			require.Equal(t, http.StatusOK, rec.Code)

			var tasks []models.Task
			require.NoError(t, json.Unmarshal(env.Data, &tasks))
			got := make([]string, 0, len(tasks))
			for _, task := range tasks {
				got = append(got, task.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestListTasks_InvalidCompleted(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, http.MethodGet, "/api/tasks?completed=yes", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Error, "completed")
}

func TestGetTaskStats_IsNotTreatedAsID(t *testing.T) {
	s := newTestServer(t)
	s.create(t, `{"title":"Soon","dueDate":"2030-06-01T09:00:00Z"}`)
	s.create(t, `{"title":"Later","dueDate":"2030-12-01"}`)

	rec, env := s.do(t, http.MethodGet, "/api/tasks/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats models.TaskStats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, models.TaskStats{Total: 2, Pending: 2}, stats)

	s.clock.Advance(2 * time.Hour)
	_, env = s.do(t, http.MethodGet, "/api/tasks/stats", "")
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, int64(1), stats.Overdue)
}

func TestUpdateTask(t *testing.T) {
	s := newTestServer(t)
	created := s.create(t, `{"title":"Draft","description":"notes","dueDate":"2030-08-01","tags":["a"]}`)

	rec, env := s.do(t, http.MethodPut, "/api/tasks/"+created.ID, `{"title":"Final","isCompleted":true,"dueDate":null,"tags":null}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var task models.Task
	require.NoError(t, json.Unmarshal(env.Data, &task))
	assert.Equal(t, "Final", task.Title)
	assert.Equal(t, "notes", task.Description)
	assert.True(t, task.IsCompleted)
	assert.Nil(t, task.DueDate)
	assert.Equal(t, []string{}, task.Tags)
	assert.True(t, task.UpdatedAt.After(created.UpdatedAt))
}

func TestUpdateTask_Errors(t *testing.T) {
	s := newTestServer(t)
	created := s.create(t, `{"title":"Keep"}`)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{name: "null title", path: "/api/tasks/" + created.ID, body: `{"title":null}`, status: http.StatusBadRequest},
		{name: "null completed", path: "/api/tasks/" + created.ID, body: `{"isCompleted":null}`, status: http.StatusBadRequest},
		{name: "blank title", path: "/api/tasks/" + created.ID, body: `{"title":"  "}`, status: http.StatusBadRequest},
		{name: "past due date", path: "/api/tasks/" + created.ID, body: `{"dueDate":"2029-01-01"}`, status: http.StatusBadRequest},
		{name: "empty due date", path: "/api/tasks/" + created.ID, body: `{"dueDate":""}`, status: http.StatusBadRequest},
		{name: "empty priority", path: "/api/tasks/" + created.ID, body: `{"priority":""}`, status: http.StatusBadRequest},
		{name: "bad id", path: "/api/tasks/nope", body: `{}`, status: http.StatusBadRequest},
		{name: "missing task", path: "/api/tasks/" + models.NewTaskID(), body: `{}`, status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := s.do(t, http.MethodPut, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.False(t, env.Success)
		})
	}

	_, env := s.do(t, http.MethodGet, "/api/tasks/"+created.ID, "")
	var task models.Task
	require.NoError(t, json.Unmarshal(env.Data, &task))
	assert.Equal(t, "Keep", task.Title)
}

func TestDeleteTask(t *testing.T) {
	s := newTestServer(t)
	created := s.create(t, `{"title":"Gone soon"}`)

	rec, env := s.do(t, http.MethodDelete, "/api/tasks/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.Equal(t, "Task deleted successfully", env.Message)

	rec, _ = s.do(t, http.MethodDelete, "/api/tasks/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.False(t, env.Success)
	assert.Equal(t, "unauthorized", env.Error)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	require.NoError(t, s.store.Close())
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"store":"down"`)
}
