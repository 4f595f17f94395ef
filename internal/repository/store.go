package repository

import (
	"context"
	"time"

	"github.com/TWRT/task-tracker/internal/models"
)

// TaskStore is the persistence contract every backend implements.
//
// FindByID and UpdateByID return models.ErrTaskNotFound for a well-formed id
// with no record. DeleteByID reports whether a record existed. Write
// operations return *models.ValidationError when a field breaks its
// constraint.
type TaskStore interface {
	Insert(ctx context.Context, draft models.TaskDraft) (models.Task, error)
	FindByID(ctx context.Context, id string) (models.Task, error)
	FindMany(ctx context.Context, q models.TaskQuery) ([]models.Task, error)
	UpdateByID(ctx context.Context, id string, patch models.TaskPatch) (models.Task, error)
	DeleteByID(ctx context.Context, id string) (bool, error)
	Count(ctx context.Context, q models.TaskQuery) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

type Option func(*storeOptions)

type storeOptions struct {
	now func() time.Time
}

// WithClock replaces time.Now as the source of timestamps and of the
// due-date check.
func WithClock(now func() time.Time) Option {
	return func(o *storeOptions) {
		o.now = now
	}
}

func applyOptions(opts []Option) storeOptions {
	o := storeOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
