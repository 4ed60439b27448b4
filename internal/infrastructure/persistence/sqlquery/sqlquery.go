// Package sqlquery builds the task queries shared by the SQL repositories.
//
// The filter translation lives here so that every SQL backend selects the
// same rows domain.FilterTasks selects in memory. Backends differ only in
// placeholder syntax and how timestamps are bound, which Dialect captures.
package sqlquery

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rezkam/taskflow/internal/domain"
	"github.com/rezkam/taskflow/internal/ptr"
)

// Dialect describes how a backend binds parameters.
type Dialect struct {
	Name        string
	Placeholder func(n int) string
	Time        func(t time.Time) any
	Bool        func(b bool) any
}

// NullableTime binds t, or NULL when t is nil.
func (d Dialect) NullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return d.Time(*t)
}

// Postgres binds $n placeholders and native timestamptz values.
var Postgres = Dialect{
	Name:        "postgres",
	Placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	Time:        func(t time.Time) any { return t.UTC() },
	Bool:        func(b bool) any { return b },
}

// SQLite binds ? placeholders, timestamps as unix microseconds and booleans as 0/1.
var SQLite = Dialect{
	Name:        "sqlite",
	Placeholder: func(int) string { return "?" },
	Time:        func(t time.Time) any { return t.UTC().UnixMicro() },
	Bool: func(b bool) any {
		if b {
			return 1
		}
		return 0
	},
}

// TaskColumns is the column order every task scan expects.
const TaskColumns = "id, user_id, title, status, deadline, value_impact, difficulty, " +
	"priority_score, is_deleted, created_at, updated_at, version"

// TaskOrder is the result order of task collections: newest first, ties by id.
const TaskOrder = "ORDER BY created_at DESC, id DESC"

// Query is a statement with its positional arguments.
type Query struct {
	SQL  string
	Args []any
}

type builder struct {
	d    Dialect
	args []any
}

func (b *builder) arg(v any) string {
	b.args = append(b.args, v)
	return b.d.Placeholder(len(b.args))
}

// InsertTask inserts t with version 1 and returns the stored row.
func InsertTask(d Dialect, t *domain.Task) Query {
	b := &builder{d: d}
	values := []string{
		b.arg(t.ID),
		b.arg(t.UserID),
		b.arg(t.Title),
		b.arg(string(t.Status)),
		b.arg(d.NullableTime(t.Deadline)),
		b.arg(t.ValueImpact),
		b.arg(t.Difficulty),
		b.arg(t.PriorityScore),
		b.arg(d.Bool(t.IsDeleted)),
		b.arg(d.Time(t.CreatedAt)),
		b.arg(d.Time(t.UpdatedAt)),
	}

	return Query{
		SQL: "INSERT INTO tasks (" + TaskColumns + ") VALUES (" +
			strings.Join(values, ", ") + ", 1) RETURNING " + TaskColumns,
		Args: b.args,
	}
}

// UserTasks selects every task of userID, soft-deleted included.
func UserTasks(d Dialect, userID string) Query {
	b := &builder{d: d}
	return Query{
		SQL:  "SELECT " + TaskColumns + " FROM tasks WHERE user_id = " + b.arg(userID) + " " + TaskOrder,
		Args: b.args,
	}
}

// TaskByID selects one task of userID, soft-deleted included.
func TaskByID(d Dialect, userID, id string) Query {
	b := &builder{d: d}
	return Query{
		SQL: "SELECT " + TaskColumns + " FROM tasks WHERE id = " + b.arg(id) +
			" AND user_id = " + b.arg(userID),
		Args: b.args,
	}
}

// TaskFilter translates f into a query over userID's non-deleted tasks.
//
// Predicates are ANDed in the order status, deadline windows, list. Deadline
// windows come from f.DeadlineWindows, so day and week boundaries match the
// in-memory evaluator exactly; a NULL deadline never satisfies BETWEEN.
func TaskFilter(d Dialect, userID string, f domain.TaskFilter) Query {
	b := &builder{d: d}

	where := []string{
		"user_id = " + b.arg(userID),
		"is_deleted = " + b.arg(d.Bool(false)),
	}

	if f.Status != nil {
		where = append(where, "status = "+b.arg(string(*f.Status)))
	}

	for _, w := range f.DeadlineWindows() {
		where = append(where, fmt.Sprintf("deadline BETWEEN %s AND %s",
			b.arg(d.Time(w.From)), b.arg(d.Time(w.To))))
	}

	if f.ListID != nil {
		where = append(where, "EXISTS (SELECT 1 FROM task_list_relations r "+
			"WHERE r.task_id = tasks.id AND r.list_id = "+b.arg(*f.ListID)+")")
	}

	return Query{
		SQL: "SELECT " + TaskColumns + " FROM tasks WHERE " +
			strings.Join(where, " AND ") + " " + TaskOrder,
		Args: b.args,
	}
}

// TaskUpdate builds a masked update of one task that bumps version and
// updated_at and returns the stored row. With an etag the update only
// applies at that version; zero rows then means not found or conflict.
//
// Nil numbers reset to their defaults and a nil deadline clears it, matching
// domain.UpdateTaskParams.ApplyTo.
func TaskUpdate(d Dialect, params domain.UpdateTaskParams, now time.Time) (Query, error) {
	b := &builder{d: d}
	var set []string

	for _, field := range params.UpdateMask {
		switch field {
		case domain.FieldTitle:
			set = append(set, "title = "+b.arg(ptr.Deref(params.Title, "")))
		case domain.FieldStatus:
			set = append(set, "status = "+b.arg(ptr.ToString(params.Status)))
		case domain.FieldDeadline:
			set = append(set, "deadline = "+b.arg(d.NullableTime(domain.NormalizeDeadline(params.Deadline))))
		case domain.FieldValueImpact:
			v := domain.ClampValueImpact(ptr.Deref(params.ValueImpact, domain.DefaultValueImpact))
			set = append(set, "value_impact = "+b.arg(v))
		case domain.FieldDifficulty:
			v := domain.ClampDifficulty(ptr.Deref(params.Difficulty, domain.DefaultDifficulty))
			set = append(set, "difficulty = "+b.arg(v))
		case domain.FieldIsDeleted:
			set = append(set, "is_deleted = "+b.arg(d.Bool(ptr.Deref(params.IsDeleted, false))))
		case domain.FieldPriorityScore:
			if params.PriorityScore == nil {
				return Query{}, fmt.Errorf("%w: %s", domain.ErrFieldRequired, field)
			}
			set = append(set, "priority_score = "+b.arg(*params.PriorityScore))
		default:
			return Query{}, fmt.Errorf("%w: %s", domain.ErrUnknownField, field)
		}
	}
	if len(set) == 0 {
		return Query{}, domain.ErrEmptyUpdateMask
	}

	set = append(set, "version = version + 1", "updated_at = "+b.arg(d.Time(now)))

	where := "id = " + b.arg(params.TaskID) + " AND user_id = " + b.arg(params.UserID)
	if params.Etag != nil {
		version, err := strconv.Atoi(*params.Etag)
		if err != nil {
			return Query{}, fmt.Errorf("%w: %w", domain.ErrInvalidEtagFormat, err)
		}
		where += " AND version = " + b.arg(version)
	}

	return Query{
		SQL: "UPDATE tasks SET " + strings.Join(set, ", ") +
			" WHERE " + where + " RETURNING " + TaskColumns,
		Args: b.args,
	}, nil
}

// SetTaskList upserts the membership of taskID in listID. The SELECT joins
// both rows on userID, so nothing is written when either is missing or
// owned by someone else.
func SetTaskList(d Dialect, userID, taskID, listID string) Query {
	b := &builder{d: d}
	return Query{
		SQL: "INSERT INTO task_list_relations (task_id, list_id) " +
			"SELECT t.id, l.id FROM tasks t JOIN task_lists l ON l.user_id = t.user_id " +
			"WHERE t.id = " + b.arg(taskID) + " AND l.id = " + b.arg(listID) +
			" AND t.user_id = " + b.arg(userID) +
			" ON CONFLICT (task_id) DO UPDATE SET list_id = excluded.list_id",
		Args: b.args,
	}
}

// ClearTaskList removes taskID from whatever list holds it.
func ClearTaskList(d Dialect, userID, taskID string) Query {
	b := &builder{d: d}
	return Query{
		SQL: "DELETE FROM task_list_relations WHERE task_id = " + b.arg(taskID) +
			" AND task_id IN (SELECT id FROM tasks WHERE user_id = " + b.arg(userID) + ")",
		Args: b.args,
	}
}

// TaskListRelations selects the memberships of userID's tasks.
func TaskListRelations(d Dialect, userID string) Query {
	b := &builder{d: d}
	return Query{
		SQL: "SELECT r.task_id, r.list_id FROM task_list_relations r " +
			"JOIN tasks t ON t.id = r.task_id WHERE t.user_id = " + b.arg(userID) +
			" ORDER BY r.task_id",
		Args: b.args,
	}
}

// ListColumns is the column order every list scan expects.
const ListColumns = "id, user_id, title, created_at"

// InsertList inserts l and returns the stored row.
func InsertList(d Dialect, l *domain.TaskList) Query {
	b := &builder{d: d}
	return Query{
		SQL: "INSERT INTO task_lists (" + ListColumns + ") VALUES (" +
			b.arg(l.ID) + ", " + b.arg(l.UserID) + ", " + b.arg(l.Title) + ", " +
			b.arg(d.Time(l.CreatedAt)) + ") RETURNING " + ListColumns,
		Args: b.args,
	}
}

// UserLists selects userID's lists, newest first.
func UserLists(d Dialect, userID string) Query {
	b := &builder{d: d}
	return Query{
		SQL: "SELECT " + ListColumns + " FROM task_lists WHERE user_id = " + b.arg(userID) +
			" ORDER BY created_at DESC, id DESC",
		Args: b.args,
	}
}

// ListExists reports through a single row whether userID owns listID.
func ListExists(d Dialect, userID, listID string) Query {
	b := &builder{d: d}
	return Query{
		SQL: "SELECT COUNT(*) FROM task_lists WHERE id = " + b.arg(listID) +
			" AND user_id = " + b.arg(userID),
		Args: b.args,
	}
}

// DeleteTask permanently removes one task of userID.
func DeleteTask(d Dialect, userID, id string) Query {
	b := &builder{d: d}
	return Query{
		SQL:  "DELETE FROM tasks WHERE id = " + b.arg(id) + " AND user_id = " + b.arg(userID),
		Args: b.args,
	}
}
