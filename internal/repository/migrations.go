package repository

import (
	"context"
	"fmt"
)

// migration is one schema step. Statements are written in the SQL subset
// shared by SQLite and Postgres and run in order inside one transaction.
type migration struct {
	version    int
	statements []string
}

var migrations = []migration{
	{
		version: 1,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS tasks (
				id           TEXT PRIMARY KEY,
				title        TEXT NOT NULL CHECK (length(title) > 0),
				description  TEXT NOT NULL DEFAULT '',
				is_completed BOOLEAN NOT NULL DEFAULT FALSE,
				priority     TEXT NOT NULL DEFAULT 'medium' CHECK (priority IN ('low', 'medium', 'high')),
				due_date     BIGINT,
				tags         TEXT NOT NULL DEFAULT '[]',
				created_at   BIGINT NOT NULL,
				updated_at   BIGINT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_tasks_created_at ON tasks(created_at)`,
			`CREATE INDEX IF NOT EXISTS idx_tasks_is_completed ON tasks(is_completed)`,
			`CREATE INDEX IF NOT EXISTS idx_tasks_due_date ON tasks(due_date)`,
		},
	},
	{
		version: 2,
		statements: []string{
			`CREATE INDEX IF NOT EXISTS idx_tasks_completed_due ON tasks(is_completed, due_date)`,
		},
	},
}

func (r *TaskRepository) runMigrations(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("Error trying to create the schema_version table: %w", err)
	}

	var current int
	if err := r.db.GetContext(ctx, &current,
		"SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
		return fmt.Errorf("Error trying to read the schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := r.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("Error trying to apply migration v%d: %w", m.version, err)
		}
		r.log.Debug("applied migration", "version", m.version)
	}
	return nil
}

func (r *TaskRepository) applyMigration(ctx context.Context, m migration) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range m.statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		tx.Rebind("INSERT INTO schema_version (version) VALUES (?)"), m.version); err != nil {
		return err
	}
	return tx.Commit()
}
