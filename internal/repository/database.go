package repository

import (
	"context"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
)

// The builtin SQLite lower() only folds ASCII.
func init() {
	sqlite.MustRegisterDeterministicScalarFunction("lower", 1, unicodeLower)
}

func unicodeLower(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}

// Open connects to the store named by url and prepares its schema.
//
//	mongodb://... or mongodb+srv://...  MongoDB, database named by database
//	postgres://... or postgresql://...  Postgres through pgx
//	anything else                       SQLite file (an optional sqlite:// prefix is stripped)
func Open(ctx context.Context, url, database string, log *slog.Logger, opts ...Option) (TaskStore, error) {
	var (
		store TaskStore
		err   error
	)
	switch {
	case strings.HasPrefix(url, "mongodb://"), strings.HasPrefix(url, "mongodb+srv://"):
		log.Debug("opening task store", "backend", "mongo", "database", database)
		store, err = OpenMongo(ctx, url, database, log, opts...)
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		log.Debug("opening task store", "backend", "postgres")
		store, err = OpenPostgres(ctx, url, log, opts...)
	default:
		log.Debug("opening task store", "backend", "sqlite")
		store, err = OpenSQLite(ctx, strings.TrimPrefix(url, "sqlite://"), log, opts...)
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}

func OpenSQLite(ctx context.Context, path string, log *slog.Logger, opts ...Option) (*TaskRepository, error) {
	if path == "" {
		return nil, fmt.Errorf("Error trying to open sqlite db: path is required")
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("Error trying to open sqlite db: %w", err)
	}
	// SQLite has a single writer, and an in-memory database lives only as
	// long as its connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("Error trying to connect to sqlite: %w", err)
	}

	if !isMemoryPath(path) {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("Error trying to enable WAL mode: %w", err)
		}
	}

	repo, err := NewTaskRepository(ctx, db, log, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

func OpenPostgres(ctx context.Context, url string, log *slog.Logger, opts ...Option) (*TaskRepository, error) {
	db, err := sqlx.ConnectContext(ctx, "pgx", url)
	if err != nil {
		log.Error("connection problem", "driver", "pgx", "error", err)
		return nil, fmt.Errorf("Error trying to connect to postgres: %w", err)
	}

	repo, err := NewTaskRepository(ctx, db, log, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

func isMemoryPath(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}
