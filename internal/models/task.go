package models

import (
	"strings"
	"time"
)

const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 1000
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	IsCompleted bool       `json:"isCompleted"`
	Priority    Priority   `json:"priority"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Tags        []string   `json:"tags"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// IsOverdue reports whether the task is pending with a due date before now.
func (t Task) IsOverdue(now time.Time) bool {
	return !t.IsCompleted && t.DueDate != nil && t.DueDate.Before(now)
}

// TaskDraft is a task that has not been persisted yet. The store assigns the
// id, the timestamps and the initial completion state.
type TaskDraft struct {
	Title       string
	Description string
	Priority    Priority
	DueDate     *time.Time
	Tags        []string
}

// TaskPatch carries only the fields an update should change. A nil pointer
// leaves the stored value untouched.
type TaskPatch struct {
	Title        *string
	Description  *string
	Priority     *Priority
	DueDate      *time.Time
	ClearDueDate bool
	Tags         *[]string
	IsCompleted  *bool
}

func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil &&
		p.Description == nil &&
		p.Priority == nil &&
		p.DueDate == nil &&
		!p.ClearDueDate &&
		p.Tags == nil &&
		p.IsCompleted == nil
}

type CreateTaskInput struct {
	Title       string
	Description string
	Priority    Priority
	DueDate     *time.Time
	Tags        []string
}

func (in CreateTaskInput) Draft() TaskDraft {
	return TaskDraft{
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.Priority,
		DueDate:     in.DueDate,
		Tags:        in.Tags,
	}
}

type TaskStats struct {
	Total     int64 `json:"total"`
	Completed int64 `json:"completed"`
	Pending   int64 `json:"pending"`
	Overdue   int64 `json:"overdue"`
}

// NormalizeTags trims every tag and keeps order and duplicates.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		out = append(out, strings.TrimSpace(tag))
	}
	return out
}
