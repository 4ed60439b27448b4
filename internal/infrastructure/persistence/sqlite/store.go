// Package sqlite implements task.Repository on an embedded SQLite database.
//
// It backs single-node deployments and tests. Timestamps are stored as unix
// microseconds so that range comparisons match PostgreSQL's timestamptz
// precision exactly.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/rezkam/taskflow/internal/application/task"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// DefaultBusyTimeout is how long a connection waits on a locked database.
const DefaultBusyTimeout = 5 * time.Second

// dbtx is the query surface shared by *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store provides the SQLite implementation of task.Repository.
type Store struct {
	db   *sql.DB
	q    dbtx
	inTx bool
	now  func() time.Time
}

// Compile-time verification that Store implements the repository interface.
var _ task.Repository = (*Store)(nil)

// Open opens (creating if needed) the database at path, applies migrations
// and returns a store. path may be ":memory:".
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One writer at a time; also keeps ":memory:" on a single database.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{db: db, q: db, now: time.Now}, nil
}

func dsn(path string) string {
	pragmas := url.Values{}
	pragmas.Add("_pragma", "foreign_keys(1)")
	pragmas.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", DefaultBusyTimeout.Milliseconds()))
	if path != ":memory:" {
		pragmas.Add("_pragma", "journal_mode(WAL)")
	}

	prefix := "file:"
	if strings.HasPrefix(path, "file:") {
		prefix = ""
	}
	return prefix + path + "?" + pragmas.Encode()
}

func migrate(ctx context.Context, db *sql.DB) error {
	migrations, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, migrations)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	for _, r := range results {
		slog.DebugContext(ctx, "applied migration",
			"version", r.Source.Version,
			"duration_ms", r.Duration.Milliseconds())
	}
	return nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Atomic executes fn within a transaction. Inside a transaction fn joins it.
func (s *Store) Atomic(ctx context.Context, fn func(repo task.Repository) error) (err error) {
	if s.inTx {
		return fn(s)
	}

	start := time.Now().UTC()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			slog.ErrorContext(ctx, "transaction failed, rolling back", "error", err)
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = fmt.Errorf("transaction failed: %w (rollback error: %v)", err, rbErr)
			}
			return
		}
		if err = tx.Commit(); err != nil {
			slog.ErrorContext(ctx, "transaction commit failed", "error", err)
			return
		}
		slog.DebugContext(ctx, "transaction completed",
			"duration_ms", time.Since(start).Milliseconds())
	}()

	return fn(&Store{db: s.db, q: tx, inTx: true, now: s.now})
}
