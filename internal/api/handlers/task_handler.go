package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/TWRT/task-tracker/internal/api/res"
	"github.com/TWRT/task-tracker/internal/models"
	"github.com/TWRT/task-tracker/internal/service"
)

const maxBodyBytes = 1 << 20

const dateOnlyLayout = "2006-01-02"

type CreateTaskRequestBody struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    *string  `json:"priority"`
	DueDate     *string  `json:"dueDate"`
	Tags        []string `json:"tags"`
}

type UpdateTaskRequestBody struct {
	Title       Optional[string]   `json:"title"`
	Description Optional[string]   `json:"description"`
	Priority    Optional[string]   `json:"priority"`
	DueDate     Optional[string]   `json:"dueDate"`
	Tags        Optional[[]string] `json:"tags"`
	IsCompleted Optional[bool]     `json:"isCompleted"`
}

type TaskHandler struct {
	taskService *service.TaskService
	log         *slog.Logger
}

func NewTaskHandler(taskService *service.TaskService, log *slog.Logger) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
		log:         log,
	}
}

func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	filter, err := parseTaskFilter(r)
	if err != nil {
		writeErr(w, h.log, err)
		return
	}

	tasks, err := h.taskService.ListTasks(r.Context(), filter)
	if err != nil {
		writeErr(w, h.log, err)
		return
	}
	res.Success(w, tasks, "Tasks retrieved successfully", http.StatusOK)
}

func (h *TaskHandler) GetTaskStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.taskService.GetTaskStats(r.Context())
	if err != nil {
		writeErr(w, h.log, err)
		return
	}
	res.Success(w, stats, "Task statistics retrieved successfully", http.StatusOK)
}

func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.taskService.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, h.log, err)
		return
	}
	res.Success(w, task, "Task retrieved successfully", http.StatusOK)
}

func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var body CreateTaskRequestBody
	if err := decodeBody(w, r, &body); err != nil {
		res.Error(w, err.Error(), "Invalid request body", http.StatusBadRequest)
		return
	}

	in, err := body.input()
	if err != nil {
		writeErr(w, h.log, err)
		return
	}

	task, err := h.taskService.CreateTask(r.Context(), in)
	if err != nil {
		writeErr(w, h.log, err)
		return
	}
	res.Success(w, task, "Task created successfully", http.StatusCreated)
}

func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	var body UpdateTaskRequestBody
	if err := decodeBody(w, r, &body); err != nil {
		res.Error(w, err.Error(), "Invalid request body", http.StatusBadRequest)
		return
	}

	patch, err := body.patch()
	if err != nil {
		writeErr(w, h.log, err)
		return
	}

	task, err := h.taskService.UpdateTask(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeErr(w, h.log, err)
		return
	}
	res.Success(w, task, "Task updated successfully", http.StatusOK)
}

func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.taskService.DeleteTask(r.Context(), r.PathValue("id")); err != nil {
		writeErr(w, h.log, err)
		return
	}
	res.Success(w, nil, "Task deleted successfully", http.StatusOK)
}

// input leaves Priority and DueDate unset only when they are absent or
// null. A present value must be valid, even an empty string.
func (b CreateTaskRequestBody) input() (models.CreateTaskInput, error) {
	in := models.CreateTaskInput{
		Title:       b.Title,
		Description: b.Description,
		Tags:        b.Tags,
	}
	if b.Priority != nil {
		priority := models.Priority(*b.Priority)
		if !priority.Valid() {
			return in, models.NewValidationError("priority", "priority must be one of low, medium, high (got %q)", *b.Priority)
		}
		in.Priority = priority
	}
	if b.DueDate != nil {
		due, err := parseDueDate(*b.DueDate)
		if err != nil {
			return in, err
		}
		in.DueDate = &due
	}
	return in, nil
}

func (b UpdateTaskRequestBody) patch() (models.TaskPatch, error) {
	var p models.TaskPatch

	if b.Title.Set {
		if b.Title.Null {
			return p, models.NewValidationError("title", "title cannot be null")
		}
		p.Title = &b.Title.Value
	}
	if b.Description.Set {
		p.Description = &b.Description.Value
	}
	if b.Priority.Set {
		if b.Priority.Null {
			return p, models.NewValidationError("priority", "priority cannot be null")
		}
		priority := models.Priority(b.Priority.Value)
		p.Priority = &priority
	}
	if b.DueDate.Set {
		if b.DueDate.Null {
			p.ClearDueDate = true
		} else {
			due, err := parseDueDate(b.DueDate.Value)
			if err != nil {
				return p, err
			}
			p.DueDate = &due
		}
	}
	if b.Tags.Set {
		tags := b.Tags.Value
		if tags == nil {
			tags = []string{}
		}
		p.Tags = &tags
	}
	if b.IsCompleted.Set {
		if b.IsCompleted.Null {
			return p, models.NewValidationError("isCompleted", "isCompleted cannot be null")
		}
		p.IsCompleted = &b.IsCompleted.Value
	}
	return p, nil
}

func parseTaskFilter(r *http.Request) (models.TaskFilter, error) {
	q := r.URL.Query()
	var filter models.TaskFilter

	if q.Has("completed") {
		switch q.Get("completed") {
		case "true":
			filter.Completed = models.Bool(true)
		case "false":
			filter.Completed = models.Bool(false)
		default:
			return filter, models.NewValidationError("completed", "completed must be true or false")
		}
	}
	if p := q.Get("priority"); p != "" {
		filter.Priority = models.String(p)
	}
	if q.Has("search") {
		filter.Search = models.String(q.Get("search"))
	}
	return filter, nil
}

// parseDueDate accepts an RFC 3339 timestamp or a bare date, which is read
// as midnight UTC.
func parseDueDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.ParseInLocation(dateOnlyLayout, s, time.UTC); err == nil {
		return t, nil
	}
	return time.Time{}, models.NewValidationError("dueDate", "dueDate must be an RFC 3339 timestamp or a YYYY-MM-DD date")
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return err
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}
