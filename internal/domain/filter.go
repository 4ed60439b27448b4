package domain

import (
	"fmt"
	"strings"
	"time"
)

// TaskFilter describes which tasks a query should return.
// Every field is optional; a nil field places no constraint on that dimension.
// Soft-deleted tasks are never matched.
//
// Date and WeekOf carry the caller's location: day and week boundaries are
// computed in it.
type TaskFilter struct {
	Status    *TaskStatus
	Date      *time.Time
	DateRange *TimeWindow
	WeekOf    *time.Time
	ListID    *string
}

// IsEmpty reports whether no predicate is set.
func (f TaskFilter) IsEmpty() bool {
	return f.Status == nil &&
		f.Date == nil &&
		f.DateRange == nil &&
		f.WeekOf == nil &&
		f.ListID == nil
}

// DeadlineWindows returns the deadline constraints in predicate order:
// date, dateRange, weekOf. A task must fall inside every window.
//
// Both the in-memory evaluator and the SQL translator use these windows, so
// the day and week math lives in one place.
func (f TaskFilter) DeadlineWindows() []TimeWindow {
	var windows []TimeWindow
	if f.Date != nil {
		windows = append(windows, DayWindow(*f.Date).StoragePrecise())
	}
	if f.DateRange != nil {
		windows = append(windows, f.DateRange.StoragePrecise())
	}
	if f.WeekOf != nil {
		windows = append(windows, WeekWindow(*f.WeekOf).StoragePrecise())
	}
	return windows
}

// Matches reports whether t satisfies every predicate of f.
// memberships maps task IDs to list IDs and is only consulted when ListID is set.
func (f TaskFilter) Matches(t Task, memberships map[string]string) bool {
	return f.matches(t, f.DeadlineWindows(), memberships)
}

func (f TaskFilter) matches(t Task, windows []TimeWindow, memberships map[string]string) bool {
	if t.IsDeleted {
		return false
	}

	if f.Status != nil && t.Status != *f.Status {
		return false
	}

	for _, w := range windows {
		if t.Deadline == nil || !w.Contains(*t.Deadline) {
			return false
		}
	}

	if f.ListID != nil {
		listID, ok := memberships[t.ID]
		if !ok || listID != *f.ListID {
			return false
		}
	}

	return true
}

// FilterTasks returns the tasks matching f in their original order.
// The result never aliases the input slice.
func FilterTasks(tasks []Task, f TaskFilter, memberships map[string]string) []Task {
	windows := f.DeadlineWindows()

	result := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if f.matches(t, windows, memberships) {
			result = append(result, t.Clone())
		}
	}
	return result
}

// TaskFilterInput is the raw, string-typed form of a filter as received at
// the API boundary.
//
// Dates accept either a calendar day (2006-01-02) interpreted in Location, or
// an RFC 3339 instant. A calendar day used as a range bound expands to the
// start (From) or end (To) of that day.
type TaskFilterInput struct {
	Status   string
	Date     string
	From     string
	To       string
	WeekOf   string
	ListID   string
	Location *time.Location
}

const calendarDayLayout = time.DateOnly

// NewTaskFilter validates input and builds a TaskFilter.
func NewTaskFilter(input TaskFilterInput) (TaskFilter, error) {
	loc := input.Location
	if loc == nil {
		loc = time.UTC
	}

	var f TaskFilter

	if input.Status != "" {
		status, err := NewTaskStatus(input.Status)
		if err != nil {
			return TaskFilter{}, err
		}
		f.Status = &status
	}

	if input.Date != "" {
		date, _, err := parseFilterTime(input.Date, loc)
		if err != nil {
			return TaskFilter{}, fmt.Errorf("%w: date: %w", ErrInvalidFilter, err)
		}
		f.Date = &date
	}

	if input.From != "" || input.To != "" {
		if input.From == "" || input.To == "" {
			return TaskFilter{}, fmt.Errorf("%w: date range needs both from and to", ErrInvalidFilter)
		}
		from, fromIsDay, err := parseFilterTime(input.From, loc)
		if err != nil {
			return TaskFilter{}, fmt.Errorf("%w: from: %w", ErrInvalidFilter, err)
		}
		to, toIsDay, err := parseFilterTime(input.To, loc)
		if err != nil {
			return TaskFilter{}, fmt.Errorf("%w: to: %w", ErrInvalidFilter, err)
		}
		if fromIsDay {
			from = StartOfDay(from)
		}
		if toIsDay {
			to = EndOfDay(to)
		}
		f.DateRange = &TimeWindow{From: from, To: to}
	}

	if input.WeekOf != "" {
		weekOf, _, err := parseFilterTime(input.WeekOf, loc)
		if err != nil {
			return TaskFilter{}, fmt.Errorf("%w: week_of: %w", ErrInvalidFilter, err)
		}
		f.WeekOf = &weekOf
	}

	if listID := strings.TrimSpace(input.ListID); listID != "" {
		f.ListID = &listID
	}

	return f, nil
}

// parseFilterTime parses s in loc and reports whether it was a bare calendar day.
func parseFilterTime(s string, loc *time.Location) (time.Time, bool, error) {
	if t, err := time.ParseInLocation(calendarDayLayout, s, loc); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("expected %s or RFC 3339, got %q", calendarDayLayout, s)
	}
	return t.In(loc), false, nil
}
