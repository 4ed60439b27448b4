package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rezkam/taskflow/internal/domain"
	"github.com/rezkam/taskflow/internal/infrastructure/persistence/sqlquery"
)

func scanList(row scanner) (domain.TaskList, error) {
	var l domain.TaskList
	if err := row.Scan(&l.ID, &l.UserID, &l.Title, &l.CreatedAt); err != nil {
		return domain.TaskList{}, err
	}
	l.CreatedAt = l.CreatedAt.UTC()
	return l, nil
}

// CreateList persists a new list.
func (s *Store) CreateList(ctx context.Context, list *domain.TaskList) (*domain.TaskList, error) {
	q := sqlquery.InsertList(dialect, list)

	created, err := scanList(s.db.QueryRow(ctx, q.SQL, q.Args...))
	if err != nil {
		return nil, fmt.Errorf("failed to insert list: %w", err)
	}
	return &created, nil
}

// FindUserLists returns the user's lists, newest first.
func (s *Store) FindUserLists(ctx context.Context, userID string) ([]domain.TaskList, error) {
	q := sqlquery.UserLists(dialect, userID)

	rows, err := s.db.Query(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list lists: %w", err)
	}
	lists, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.TaskList, error) {
		return scanList(row)
	})
	if err != nil {
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

	tag, err := s.db.Exec(ctx, q.SQL, q.Args...)
	if err != nil {
		return fmt.Errorf("failed to set task list: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Nothing written: tell a missing task from a missing list.
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

	rows, err := s.db.Query(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list relations: %w", err)
	}
	relations, err := pgx.CollectRows(rows, pgx.RowToStructByPos[domain.TaskListRelation])
	if err != nil {
		return nil, fmt.Errorf("failed to list relations: %w", err)
	}
	return relations, nil
}
