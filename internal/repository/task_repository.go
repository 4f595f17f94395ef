package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/TWRT/task-tracker/internal/models"
)

const taskColumns = "id, title, description, is_completed, priority, due_date, tags, created_at, updated_at"

// pgCheckViolation is the Postgres SQLSTATE for a failed CHECK constraint.
const pgCheckViolation = "23514"

type taskRow struct {
	ID          string        `db:"id"`
	Title       string        `db:"title"`
	Description string        `db:"description"`
	IsCompleted bool          `db:"is_completed"`
	Priority    string        `db:"priority"`
	DueDate     sql.NullInt64 `db:"due_date"`
	Tags        string        `db:"tags"`
	CreatedAt   int64         `db:"created_at"`
	UpdatedAt   int64         `db:"updated_at"`
}

func (row taskRow) toTask() (models.Task, error) {
	task := models.Task{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		IsCompleted: row.IsCompleted,
		Priority:    models.Priority(row.Priority),
		CreatedAt:   fromNanos(row.CreatedAt),
		UpdatedAt:   fromNanos(row.UpdatedAt),
	}
	if row.DueDate.Valid {
		due := fromNanos(row.DueDate.Int64)
		task.DueDate = &due
	}
	if err := json.Unmarshal([]byte(row.Tags), &task.Tags); err != nil {
		return models.Task{}, fmt.Errorf("Error trying to decode tags of task %s: %w", row.ID, err)
	}
	if task.Tags == nil {
		task.Tags = []string{}
	}
	return task, nil
}

// TaskRepository stores tasks in a SQL database through sqlx. It serves
// both SQLite and Postgres; placeholders go through Rebind.
type TaskRepository struct {
	db  *sqlx.DB
	log *slog.Logger
	now func() time.Time
}

// NewTaskRepository wraps an open database and brings its schema up to date.
func NewTaskRepository(ctx context.Context, db *sqlx.DB, log *slog.Logger, opts ...Option) (*TaskRepository, error) {
	o := applyOptions(opts)
	r := &TaskRepository{db: db, log: log, now: o.now}
	if err := r.runMigrations(ctx); err != nil {
		return nil, fmt.Errorf("Error trying to migrate the database: %w", err)
	}
	return r, nil
}

func (r *TaskRepository) Insert(ctx context.Context, draft models.TaskDraft) (models.Task, error) {
	now := storedTime(r.now())
	d, err := normalizeDraft(draft, now)
	if err != nil {
		return models.Task{}, err
	}

	tags, err := json.Marshal(d.Tags)
	if err != nil {
		return models.Task{}, fmt.Errorf("Error trying to encode tags: %w", err)
	}

	task := models.Task{
		ID:          models.NewTaskID(),
		Title:       d.Title,
		Description: d.Description,
		IsCompleted: false,
		Priority:    d.Priority,
		Tags:        d.Tags,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	var due sql.NullInt64
	if d.DueDate != nil {
		t := storedTime(*d.DueDate)
		task.DueDate = &t
		due = sql.NullInt64{Int64: t.UnixNano(), Valid: true}
	}

	query := r.db.Rebind(`
	INSERT INTO tasks (` + taskColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err = r.db.ExecContext(ctx, query,
		task.ID,
		task.Title,
		task.Description,
		task.IsCompleted,
		string(task.Priority),
		due,
		string(tags),
		now.UnixNano(),
		now.UnixNano(),
	)
	if err != nil {
		return models.Task{}, mapWriteError("Error trying to create the task", err)
	}

	return task, nil
}

func (r *TaskRepository) FindByID(ctx context.Context, id string) (models.Task, error) {
	query := r.db.Rebind(`SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`)

	var row taskRow
	err := r.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, models.ErrTaskNotFound
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("Error trying to get task %s: %w", id, err)
	}

	return row.toTask()
}

// FindMany returns matching tasks newest first. The result is never nil.
func (r *TaskRepository) FindMany(ctx context.Context, q models.TaskQuery) ([]models.Task, error) {
	where, args := buildTaskWhere(q)
	query := r.db.Rebind(`SELECT ` + taskColumns + ` FROM tasks` + where + ` ORDER BY created_at DESC, id DESC`)

	var rows []taskRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("Error trying to list tasks: %w", err)
	}

	tasks := make([]models.Task, 0, len(rows))
	for _, row := range rows {
		task, err := row.toTask()
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (r *TaskRepository) UpdateByID(ctx context.Context, id string, patch models.TaskPatch) (models.Task, error) {
	now := storedTime(r.now())
	p, err := normalizePatch(patch, now)
	if err != nil {
		return models.Task{}, err
	}

	var sets []string
	var args []any
	if p.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *p.Title)
	}
	if p.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *p.Description)
	}
	if p.Priority != nil {
		sets = append(sets, "priority = ?")
		args = append(args, string(*p.Priority))
	}
	if p.IsCompleted != nil {
		sets = append(sets, "is_completed = ?")
		args = append(args, *p.IsCompleted)
	}
	if p.DueDate != nil {
		sets = append(sets, "due_date = ?")
		args = append(args, storedTime(*p.DueDate).UnixNano())
	} else if p.ClearDueDate {
		sets = append(sets, "due_date = NULL")
	}
	if p.Tags != nil {
		tags, err := json.Marshal(*p.Tags)
		if err != nil {
			return models.Task{}, fmt.Errorf("Error trying to encode tags: %w", err)
		}
		sets = append(sets, "tags = ?")
		args = append(args, string(tags))
	}
	// updated_at moves forward even when the clock has not.
	sets = append(sets, "updated_at = CASE WHEN ? > updated_at THEN ? ELSE updated_at + 1 END")
	args = append(args, now.UnixNano(), now.UnixNano(), id)

	query := r.db.Rebind(`UPDATE tasks SET ` + strings.Join(sets, ", ") + ` WHERE id = ? RETURNING ` + taskColumns)

	var row taskRow
	err = r.db.GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, models.ErrTaskNotFound
	}
	if err != nil {
		return models.Task{}, mapWriteError("Error trying to update task "+id, err)
	}

	return row.toTask()
}

func (r *TaskRepository) DeleteByID(ctx context.Context, id string) (bool, error) {
	query := r.db.Rebind(`DELETE FROM tasks WHERE id = ?`)

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("Error trying to delete task %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *TaskRepository) Count(ctx context.Context, q models.TaskQuery) (int64, error) {
	where, args := buildTaskWhere(q)
	query := r.db.Rebind(`SELECT COUNT(*) FROM tasks` + where)

	var n int64
	if err := r.db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, fmt.Errorf("Error trying to count tasks: %w", err)
	}
	return n, nil
}

func (r *TaskRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *TaskRepository) Close() error {
	return r.db.Close()
}

func buildTaskWhere(q models.TaskQuery) (string, []any) {
	var conditions []string
	var args []any

	if q.Completed != nil {
		conditions = append(conditions, "is_completed = ?")
		args = append(args, *q.Completed)
	}
	if q.Priority != nil {
		conditions = append(conditions, "priority = ?")
		args = append(args, *q.Priority)
	}
	if q.Search != "" {
		pattern := "%" + escapeLike(q.Search) + "%"
		conditions = append(conditions, `(LOWER(title) LIKE LOWER(?) ESCAPE '\' OR LOWER(description) LIKE LOWER(?) ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	if q.DueBefore != nil {
		conditions = append(conditions, "due_date IS NOT NULL AND due_date < ?")
		args = append(args, q.DueBefore.UnixNano())
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes every character of s match literally inside a LIKE
// pattern that declares '\' as its escape.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func mapWriteError(msg string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgCheckViolation {
		return models.NewValidationError(pgErr.ConstraintName, "%s", pgErr.Message)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func storedTime(t time.Time) time.Time {
	return time.Unix(0, t.UnixNano()).UTC()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
