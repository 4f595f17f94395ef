package models

import (
	"strings"
	"time"
)

// TaskFilter is what a caller asks for when listing tasks. Every field is
// optional; nil means "do not constrain", which keeps an absent completed
// flag apart from an explicit false.
type TaskFilter struct {
	Completed *bool
	Priority  *string
	Search    *string
}

// TaskQuery is the predicate handed to a store. All set fields are ANDed;
// Search matches title OR description.
type TaskQuery struct {
	Completed *bool
	Priority  *string
	Search    string
	// DueBefore matches tasks that have a due date strictly before it.
	DueBefore *time.Time
}

func (f TaskFilter) Query() TaskQuery {
	q := TaskQuery{
		Completed: f.Completed,
		Priority:  f.Priority,
	}
	if f.Search != nil {
		q.Search = strings.TrimSpace(*f.Search)
	}
	return q
}

// Matches evaluates the predicate in memory with the same semantics the
// stores implement in their query languages.
func (q TaskQuery) Matches(t Task) bool {
	if q.Completed != nil && t.IsCompleted != *q.Completed {
		return false
	}
	if q.Priority != nil && string(t.Priority) != *q.Priority {
		return false
	}
	if q.Search != "" {
		needle := strings.ToLower(q.Search)
		if !strings.Contains(strings.ToLower(t.Title), needle) &&
			!strings.Contains(strings.ToLower(t.Description), needle) {
			return false
		}
	}
	if q.DueBefore != nil {
		if t.DueDate == nil || !t.DueDate.Before(*q.DueBefore) {
			return false
		}
	}
	return true
}

func Bool(v bool) *bool { return &v }

func String(v string) *string { return &v }
