package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/TWRT/task-tracker/internal/api/res"
	"github.com/TWRT/task-tracker/internal/models"
)

func writeErr(w http.ResponseWriter, log *slog.Logger, err error) {
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		res.Error(w, ve.Error(), "Validation failed", http.StatusBadRequest)
	case errors.Is(err, models.ErrInvalidTaskID):
		res.Error(w, err.Error(), "Invalid task id", http.StatusBadRequest)
	case errors.Is(err, models.ErrInvalidDueDate):
		res.Error(w, err.Error(), "Validation failed", http.StatusBadRequest)
	case errors.Is(err, models.ErrTaskNotFound):
		res.Error(w, err.Error(), "Task not found", http.StatusNotFound)
	default:
		log.Error("request failed", "error", err)
		res.Error(w, "internal error", "Something went wrong", http.StatusInternalServerError)
	}
}
