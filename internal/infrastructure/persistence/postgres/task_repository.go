package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rezkam/taskflow/internal/domain"
	"github.com/rezkam/taskflow/internal/infrastructure/persistence/sqlquery"
)

var dialect = sqlquery.Postgres

// checkRowsAffected validates that an UPDATE/DELETE operation affected exactly one row.
// Returns notFound if rowsAffected == 0, indicating the record doesn't exist.
func checkRowsAffected(rowsAffected int64, notFound error, entityID string) error {
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", notFound, entityID)
	}
	return nil
}

// isUniqueViolation checks if an error is a PostgreSQL unique violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	// 23505 is unique_violation
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

type scanner interface {
	Scan(dest ...any) error
}

// scanTask reads a row in sqlquery.TaskColumns order.
func scanTask(row scanner) (domain.Task, error) {
	var (
		t        domain.Task
		status   string
		deadline *time.Time
	)
	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.Title,
		&status,
		&deadline,
		&t.ValueImpact,
		&t.Difficulty,
		&t.PriorityScore,
		&t.IsDeleted,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.Version,
	)
	if err != nil {
		return domain.Task{}, err
	}

	t.Status = domain.TaskStatus(status)
	t.Deadline = domain.NormalizeDeadline(deadline)
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return t, nil
}

func (s *Store) queryTasks(ctx context.Context, q sqlquery.Query) ([]domain.Task, error) {
	rows, err := s.db.Query(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Task, error) {
		return scanTask(row)
	})
}

// CreateTask persists a new task.
func (s *Store) CreateTask(ctx context.Context, t *domain.Task) (*domain.Task, error) {
	q := sqlquery.InsertTask(dialect, t)

	created, err := scanTask(s.db.QueryRow(ctx, q.SQL, q.Args...))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("task %s already exists: %w", t.ID, err)
		}
		return nil, fmt.Errorf("failed to insert task: %w", err)
	}

	return &created, nil
}

// FindTaskByID retrieves a single task, soft-deleted or not.
func (s *Store) FindTaskByID(ctx context.Context, userID, id string) (*domain.Task, error) {
	q := sqlquery.TaskByID(dialect, userID, id)

	t, err := scanTask(s.db.QueryRow(ctx, q.SQL, q.Args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: task %s", domain.ErrTaskNotFound, id)
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return &t, nil
}

// UpdateTask updates a task using field mask and optional etag for OCC.
// Only updates fields specified in UpdateMask without server-side read.
// If etag is provided and doesn't match, returns domain.ErrVersionConflict.
func (s *Store) UpdateTask(ctx context.Context, params domain.UpdateTaskParams) (*domain.Task, error) {
	q, err := sqlquery.TaskUpdate(dialect, params, s.now().UTC())
	if err != nil {
		return nil, err
	}

	t, err := scanTask(s.db.QueryRow(ctx, q.SQL, q.Args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Distinguish between not-found and version-conflict
			existing, lookupErr := s.FindTaskByID(ctx, params.UserID, params.TaskID)
			if lookupErr != nil {
				return nil, lookupErr
			}
			if params.Etag != nil {
				return nil, fmt.Errorf("%w: expected version %s, current version %d",
					domain.ErrVersionConflict, *params.Etag, existing.Version)
			}
			return nil, fmt.Errorf("%w: task %s", domain.ErrTaskNotFound, params.TaskID)
		}
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	return &t, nil
}

// FindUserTasks returns every task of the user, soft-deleted included.
func (s *Store) FindUserTasks(ctx context.Context, userID string) ([]domain.Task, error) {
	tasks, err := s.queryTasks(ctx, sqlquery.UserTasks(dialect, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// QueryTasks returns the user's non-deleted tasks matching filter.
func (s *Store) QueryTasks(ctx context.Context, userID string, filter domain.TaskFilter) ([]domain.Task, error) {
	tasks, err := s.queryTasks(ctx, sqlquery.TaskFilter(dialect, userID, filter))
	if err != nil {
		return nil, fmt.Errorf("failed to filter tasks: %w", err)
	}
	return tasks, nil
}

// HardDeleteTask permanently removes a task. Its list membership cascades.
func (s *Store) HardDeleteTask(ctx context.Context, userID, id string) error {
	q := sqlquery.DeleteTask(dialect, userID, id)

	tag, err := s.db.Exec(ctx, q.SQL, q.Args...)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	return checkRowsAffected(tag.RowsAffected(), domain.ErrTaskNotFound, id)
}
