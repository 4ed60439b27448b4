package domain

import (
	"strconv"
	"time"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusOngoing    TaskStatus = "ongoing"
	TaskStatusInProgress TaskStatus = "in-progress"
	TaskStatusCanceled   TaskStatus = "canceled"
	TaskStatusCompleted  TaskStatus = "completed"
)

// TaskStatuses returns every valid status in display order.
func TaskStatuses() []TaskStatus {
	return []TaskStatus{
		TaskStatusOngoing,
		TaskStatusInProgress,
		TaskStatusCanceled,
		TaskStatusCompleted,
	}
}

// Task is a unit of work owned by a single user.
//
// PriorityScore is derived from Deadline, ValueImpact and Difficulty and is
// never set directly by clients.
type Task struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	Title         string     `json:"title"`
	Status        TaskStatus `json:"status"`
	Deadline      *time.Time `json:"deadline,omitempty"`
	ValueImpact   int        `json:"value_impact"`
	Difficulty    int        `json:"difficulty"`
	PriorityScore int        `json:"priority_score"`
	IsDeleted     bool       `json:"is_deleted"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	Version       int        `json:"version"`
}

// Etag returns the optimistic concurrency token for the task.
func (t Task) Etag() string {
	return strconv.Itoa(t.Version)
}

// ScoreInput returns the task's priority inputs.
func (t Task) ScoreInput() ScoreInput {
	value := t.ValueImpact
	difficulty := t.Difficulty
	return ScoreInput{
		ValueImpact: &value,
		Difficulty:  &difficulty,
		Deadline:    t.Deadline,
	}
}

// Clone returns a copy of the task that shares no memory with the original.
func (t Task) Clone() Task {
	if t.Deadline != nil {
		deadline := *t.Deadline
		t.Deadline = &deadline
	}
	return t
}

// CloneTasks deep-copies a task slice.
func CloneTasks(tasks []Task) []Task {
	if tasks == nil {
		return nil
	}
	out := make([]Task, len(tasks))
	for i, t := range tasks {
		out[i] = t.Clone()
	}
	return out
}

// TaskList groups tasks for a user.
type TaskList struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// TaskListRelation records that a task belongs to a list.
// A task belongs to at most one list.
type TaskListRelation struct {
	TaskID string `json:"task_id"`
	ListID string `json:"list_id"`
}

// MembershipIndex maps task IDs to list IDs.
func MembershipIndex(relations []TaskListRelation) map[string]string {
	index := make(map[string]string, len(relations))
	for _, r := range relations {
		index[r.TaskID] = r.ListID
	}
	return index
}

// TaskEventType identifies a change published to realtime subscribers.
type TaskEventType string

const (
	TaskEventCreated     TaskEventType = "task.created"
	TaskEventUpdated     TaskEventType = "task.updated"
	TaskEventDeleted     TaskEventType = "task.deleted"
	TaskEventListChanged TaskEventType = "task.list_changed"
)

// TaskEvent describes a change to one of a user's tasks.
type TaskEvent struct {
	Type       TaskEventType `json:"type"`
	UserID     string        `json:"-"`
	TaskID     string        `json:"task_id"`
	Task       *Task         `json:"task,omitempty"`
	ListID     *string       `json:"list_id,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
}
