package repository

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/TWRT/task-tracker/internal/models"
)

// Schema rules owned by the store. They run on every write, whichever
// backend is in use.

func normalizeTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", models.NewValidationError("title", "title is required")
	}
	if utf8.RuneCountInString(title) > models.MaxTitleLength {
		return "", models.NewValidationError("title", "title cannot exceed %d characters", models.MaxTitleLength)
	}
	return title, nil
}

func normalizeDescription(description string) (string, error) {
	description = strings.TrimSpace(description)
	if utf8.RuneCountInString(description) > models.MaxDescriptionLength {
		return "", models.NewValidationError("description", "description cannot exceed %d characters", models.MaxDescriptionLength)
	}
	return description, nil
}

func normalizePriority(p models.Priority) (models.Priority, error) {
	if p == "" {
		return models.PriorityMedium, nil
	}
	if !p.Valid() {
		return "", models.NewValidationError("priority", "priority must be one of low, medium, high (got %q)", string(p))
	}
	return p, nil
}

func checkDueDate(due time.Time, now time.Time) error {
	if !due.After(now) {
		return models.NewValidationError("dueDate", "due date must be in the future")
	}
	return nil
}

func normalizeDraft(d models.TaskDraft, now time.Time) (models.TaskDraft, error) {
	var err error
	if d.Title, err = normalizeTitle(d.Title); err != nil {
		return d, err
	}
	if d.Description, err = normalizeDescription(d.Description); err != nil {
		return d, err
	}
	if d.Priority, err = normalizePriority(d.Priority); err != nil {
		return d, err
	}
	if d.DueDate != nil {
		if err := checkDueDate(*d.DueDate, now); err != nil {
			return d, err
		}
	}
	d.Tags = models.NormalizeTags(d.Tags)
	return d, nil
}

func normalizePatch(p models.TaskPatch, now time.Time) (models.TaskPatch, error) {
	if p.Title != nil {
		title, err := normalizeTitle(*p.Title)
		if err != nil {
			return p, err
		}
		p.Title = &title
	}
	if p.Description != nil {
		description, err := normalizeDescription(*p.Description)
		if err != nil {
			return p, err
		}
		p.Description = &description
	}
	if p.Priority != nil {
		if *p.Priority == "" || !p.Priority.Valid() {
			return p, models.NewValidationError("priority", "priority must be one of low, medium, high (got %q)", string(*p.Priority))
		}
	}
	if p.DueDate != nil {
		if p.ClearDueDate {
			return p, models.NewValidationError("dueDate", "due date cannot be set and cleared at once")
		}
		if err := checkDueDate(*p.DueDate, now); err != nil {
			return p, err
		}
	}
	if p.Tags != nil {
		tags := models.NormalizeTags(*p.Tags)
		p.Tags = &tags
	}
	return p, nil
}
