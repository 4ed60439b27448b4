package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rezkam/taskflow/internal/domain"
	"github.com/rezkam/taskflow/internal/infrastructure/persistence/sqlquery"
)

var dialect = sqlquery.SQLite

type scanner interface {
	Scan(dest ...any) error
}

func fromMicros(v int64) time.Time {
	return time.UnixMicro(v).UTC()
}

// scanTask reads a row in sqlquery.TaskColumns order.
func scanTask(row scanner) (domain.Task, error) {
	var (
		t         domain.Task
		status    string
		deadline  sql.NullInt64
		isDeleted int64
		createdAt int64
		updatedAt int64
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
		&isDeleted,
		&createdAt,
		&updatedAt,
		&t.Version,
	)
	if err != nil {
		return domain.Task{}, err
	}

	t.Status = domain.TaskStatus(status)
	if deadline.Valid {
		d := fromMicros(deadline.Int64)
		t.Deadline = &d
	}
	t.IsDeleted = isDeleted != 0
	t.CreatedAt = fromMicros(createdAt)
	t.UpdatedAt = fromMicros(updatedAt)
	return t, nil
}

func (s *Store) queryTasks(ctx context.Context, q sqlquery.Query) ([]domain.Task, error) {
	rows, err := s.q.QueryContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// CreateTask persists a new task.
func (s *Store) CreateTask(ctx context.Context, t *domain.Task) (*domain.Task, error) {
	q := sqlquery.InsertTask(dialect, t)

	created, err := scanTask(s.q.QueryRowContext(ctx, q.SQL, q.Args...))
	if err != nil {
		return nil, fmt.Errorf("failed to insert task: %w", err)
	}
	return &created, nil
}

// FindTaskByID retrieves a single task, soft-deleted or not.
func (s *Store) FindTaskByID(ctx context.Context, userID, id string) (*domain.Task, error) {
	q := sqlquery.TaskByID(dialect, userID, id)

	t, err := scanTask(s.q.QueryRowContext(ctx, q.SQL, q.Args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: task %s", domain.ErrTaskNotFound, id)
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return &t, nil
}

// UpdateTask updates a task using field mask and optional etag for OCC.
func (s *Store) UpdateTask(ctx context.Context, params domain.UpdateTaskParams) (*domain.Task, error) {
	q, err := sqlquery.TaskUpdate(dialect, params, s.now().UTC())
	if err != nil {
		return nil, err
	}

	t, err := scanTask(s.q.QueryRowContext(ctx, q.SQL, q.Args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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

	res, err := s.q.ExecContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: task %s", domain.ErrTaskNotFound, id)
	}
	return nil
}

// CreateList persists a new list.
func (s *Store) CreateList(ctx context.Context, list *domain.TaskList) (*domain.TaskList, error) {
	q := sqlquery.InsertList(dialect, list)

	var (
		created   domain.TaskList
		createdAt int64
	)
	err := s.q.QueryRowContext(ctx, q.SQL, q.Args...).Scan(&created.ID, &created.UserID, &created.Title, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert list: %w", err)
	}
	created.CreatedAt = fromMicros(createdAt)
	return &created, nil
}

// FindUserLists returns the user's lists, newest first.
func (s *Store) FindUserLists(ctx context.Context, userID string) ([]domain.TaskList, error) {
	q := sqlquery.UserLists(dialect, userID)

	rows, err := s.q.QueryContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list lists: %w", err)
	}
	defer rows.Close()

	lists := []domain.TaskList{}
	for rows.Next() {
		var (
			l         domain.TaskList
			createdAt int64
		)
		if err := rows.Scan(&l.ID, &l.UserID, &l.Title, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan list: %w", err)
		}
		l.CreatedAt = fromMicros(createdAt)
		lists = append(lists, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list lists: %w", err)
	}
	return lists, nil
}

// SetTaskList assigns a task to a list, replacing any previous membership.
// A nil listID removes the task from its list.
func (s *Store) SetTaskList(ctx context.Context, userID, taskID string, listID *string) error {
	var q sqlquery.Query
	if listID == nil {
		q = sqlquery.ClearTaskList(dialect, userID, taskID)
	} else {
		q = sqlquery.SetTaskList(dialect, userID, taskID, *listID)
	}

	res, err := s.q.ExecContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return fmt.Errorf("failed to set task list: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to set task list: %w", err)
	}
	if n > 0 {
		return nil
	}

	if _, err := s.FindTaskByID(ctx, userID, taskID); err != nil {
		return err
	}
	if listID == nil {
		return nil
	}
	return fmt.Errorf("%w: list %s", domain.ErrListNotFound, *listID)
}

// FindTaskListRelations returns the list memberships of the user's tasks.
func (s *Store) FindTaskListRelations(ctx context.Context, userID string) ([]domain.TaskListRelation, error) {
	q := sqlquery.TaskListRelations(dialect, userID)

	rows, err := s.q.QueryContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list relations: %w", err)
	}
	defer rows.Close()

	relations := []domain.TaskListRelation{}
	for rows.Next() {
		var r domain.TaskListRelation
		if err := rows.Scan(&r.TaskID, &r.ListID); err != nil {
			return nil, fmt.Errorf("failed to scan relation: %w", err)
		}
		relations = append(relations, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list relations: %w", err)
	}
	return relations, nil
}
