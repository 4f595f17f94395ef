package api

import (
	"log/slog"
	"net/http"

	"github.com/TWRT/task-tracker/internal/api/handlers"
	"github.com/TWRT/task-tracker/internal/api/middleware"
	"github.com/TWRT/task-tracker/internal/service"
)

func SetupRouter(taskService *service.TaskService, log *slog.Logger, auth middleware.AuthConfig) http.Handler {
	mux := http.NewServeMux()

	taskHandler := handlers.NewTaskHandler(taskService, log)
	healthHandler := handlers.NewHealthHandler(taskService, log)

	protect := middleware.Auth(auth)
	route := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, protect(h))
	}

	mux.HandleFunc("GET /health", healthHandler.Health)

	// "stats" is a literal segment, so ServeMux prefers it over {id}.
	route("GET /api/tasks/stats", taskHandler.GetTaskStats)
	route("GET /api/tasks", taskHandler.ListTasks)
	route("GET /api/tasks/{id}", taskHandler.GetTask)
	route("POST /api/tasks", taskHandler.CreateTask)
	route("PUT /api/tasks/{id}", taskHandler.UpdateTask)
	route("DELETE /api/tasks/{id}", taskHandler.DeleteTask)

	return middleware.Chain(mux,
		middleware.RequestID,
		middleware.AccessLog(log),
		middleware.Recover(log),
	)
}
