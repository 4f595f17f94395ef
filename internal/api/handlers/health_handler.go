package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/TWRT/task-tracker/internal/api/res"
	"github.com/TWRT/task-tracker/internal/service"
)

const healthTimeout = 2 * time.Second

type HealthStatus struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}

type HealthHandler struct {
	taskService *service.TaskService
	log         *slog.Logger
}

func NewHealthHandler(taskService *service.TaskService, log *slog.Logger) *HealthHandler {
	return &HealthHandler{
		taskService: taskService,
		log:         log,
	}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := h.taskService.Ping(ctx); err != nil {
		h.log.Warn("health check failed", "error", err)
		res.Json(w, res.Envelope{
			Success: false,
			Data:    HealthStatus{Status: "degraded", Store: "down"},
			Error:   "store unavailable",
		}, http.StatusServiceUnavailable)
		return
	}

	res.Success(w, HealthStatus{Status: "ok", Store: "up"}, "", http.StatusOK)
}
