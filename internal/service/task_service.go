package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/TWRT/task-tracker/internal/models"
)

type TaskStore interface {
	Insert(ctx context.Context, draft models.TaskDraft) (models.Task, error)
	FindByID(ctx context.Context, id string) (models.Task, error)
	FindMany(ctx context.Context, q models.TaskQuery) ([]models.Task, error)
	UpdateByID(ctx context.Context, id string, patch models.TaskPatch) (models.Task, error)
	DeleteByID(ctx context.Context, id string) (bool, error)
	Count(ctx context.Context, q models.TaskQuery) (int64, error)
	Ping(ctx context.Context) error
}

type Option func(*TaskService)

func WithClock(now func() time.Time) Option {
	return func(s *TaskService) {
		s.now = now
	}
}

type TaskService struct {
	store TaskStore
	log   *slog.Logger
	now   func() time.Time
}

func NewTaskService(store TaskStore, log *slog.Logger, opts ...Option) *TaskService {
	s := &TaskService{
		store: store,
		log:   log,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListTasks returns the tasks matching filter, newest first.
func (s *TaskService) ListTasks(ctx context.Context, filter models.TaskFilter) ([]models.Task, error) {
	tasks, err := s.store.FindMany(ctx, filter.Query())
	if err != nil {
		return nil, fmt.Errorf("Error trying to list tasks: %w", err)
	}
	return tasks, nil
}

func (s *TaskService) GetTask(ctx context.Context, id string) (models.Task, error) {
	id, err := models.ParseTaskID(id)
	if err != nil {
		return models.Task{}, err
	}
	return s.store.FindByID(ctx, id)
}

func (s *TaskService) CreateTask(ctx context.Context, in models.CreateTaskInput) (models.Task, error) {
	if in.DueDate != nil && !in.DueDate.After(s.now()) {
		return models.Task{}, models.ErrInvalidDueDate
	}

	task, err := s.store.Insert(ctx, in.Draft())
	if err != nil {
		return models.Task{}, err
	}

	s.log.Info("task created", "id", task.ID, "priority", task.Priority)
	return task, nil
}

// UpdateTask applies patch to the task with the given id. An empty patch
// still refreshes updatedAt.
func (s *TaskService) UpdateTask(ctx context.Context, id string, patch models.TaskPatch) (models.Task, error) {
	id, err := models.ParseTaskID(id)
	if err != nil {
		return models.Task{}, err
	}
	if patch.DueDate != nil && !patch.DueDate.After(s.now()) {
		return models.Task{}, models.ErrInvalidDueDate
	}

	task, err := s.store.UpdateByID(ctx, id, patch)
	if err != nil {
		return models.Task{}, err
	}

	s.log.Info("task updated", "id", task.ID, "completed", task.IsCompleted)
	return task, nil
}

func (s *TaskService) DeleteTask(ctx context.Context, id string) error {
	id, err := models.ParseTaskID(id)
	if err != nil {
		return err
	}

	deleted, err := s.store.DeleteByID(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return models.ErrTaskNotFound
	}

	s.log.Info("task deleted", "id", id)
	return nil
}

// GetTaskStats counts tasks by state. The four counts are separate queries
// and may observe different moments under concurrent writes.
func (s *TaskService) GetTaskStats(ctx context.Context) (models.TaskStats, error) {
	now := s.now()
	var stats models.TaskStats

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.store.Count(ctx, models.TaskQuery{})
		stats.Total = n
		return err
	})
	g.Go(func() error {
		n, err := s.store.Count(ctx, models.TaskQuery{Completed: models.Bool(true)})
		stats.Completed = n
		return err
	})
	g.Go(func() error {
		n, err := s.store.Count(ctx, models.TaskQuery{Completed: models.Bool(false)})
		stats.Pending = n
		return err
	})
	g.Go(func() error {
		n, err := s.store.Count(ctx, models.TaskQuery{Completed: models.Bool(false), DueBefore: &now})
		stats.Overdue = n
		return err
	})

	if err := g.Wait(); err != nil {
		return models.TaskStats{}, fmt.Errorf("Error trying to compute task stats: %w", err)
	}
	return stats, nil
}

func (s *TaskService) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return errors.Join(errors.New("store unavailable"), err)
	}
	return nil
}
