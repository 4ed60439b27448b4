package handler

import (
	"time"

	"github.com/rezkam/taskflow/internal/domain"
)

// TaskDTO is the wire form of a task.
type TaskDTO struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Status        string     `json:"status"`
	Deadline      *time.Time `json:"deadline,omitempty"`
	ValueImpact   int        `json:"value_impact"`
	Difficulty    int        `json:"difficulty"`
	PriorityScore int        `json:"priority_score"`
	IsDeleted     bool       `json:"is_deleted"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	Etag          string     `json:"etag"`
}

// TaskListDTO is the wire form of a task list.
type TaskListDTO struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateTaskRequest is the body of POST /tasks.
type CreateTaskRequest struct {
	Title       string     `json:"title"`
	Status      string     `json:"status,omitempty"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	ValueImpact *int       `json:"value_impact,omitempty"`
	Difficulty  *int       `json:"difficulty,omitempty"`
	ListID      *string    `json:"list_id,omitempty"`
}

// TaskFields carries the writable fields of PATCH /tasks/{id}.
type TaskFields struct {
	Title       *string    `json:"title"`
	Status      *string    `json:"status"`
	Deadline    *time.Time `json:"deadline"`
	ValueImpact *int       `json:"value_impact"`
	Difficulty  *int       `json:"difficulty"`
	IsDeleted   *bool      `json:"is_deleted"`
	Etag        *string    `json:"etag"`
}

// UpdateTaskRequest is the body of PATCH /tasks/{id}.
type UpdateTaskRequest struct {
	Task       TaskFields `json:"task"`
	UpdateMask []string   `json:"update_mask"`
}

// ScoreRequest is the body of POST /priority-score.
type ScoreRequest struct {
	Deadline    *time.Time `json:"deadline,omitempty"`
	ValueImpact *int       `json:"value_impact,omitempty"`
	Difficulty  *int       `json:"difficulty,omitempty"`
}

// CreateListRequest is the body of POST /lists.
type CreateListRequest struct {
	Title string `json:"title"`
}

// AssignListRequest is the body of PUT /tasks/{id}/list. A null list_id
// removes the task from its list.
type AssignListRequest struct {
	ListID *string `json:"list_id"`
}

// MapTaskToDTO converts a domain task to its wire form.
func MapTaskToDTO(t *domain.Task) TaskDTO {
	return TaskDTO{
		ID:            t.ID,
		Title:         t.Title,
		Status:        string(t.Status),
		Deadline:      t.Deadline,
		ValueImpact:   t.ValueImpact,
		Difficulty:    t.Difficulty,
		PriorityScore: t.PriorityScore,
		IsDeleted:     t.IsDeleted,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
		Etag:          t.Etag(),
	}
}

// MapTasksToDTO converts tasks, always returning a non-nil slice.
func MapTasksToDTO(tasks []domain.Task) []TaskDTO {
	out := make([]TaskDTO, len(tasks))
	for i := range tasks {
		out[i] = MapTaskToDTO(&tasks[i])
	}
	return out
}

// MapListToDTO converts a domain list to its wire form.
func MapListToDTO(l *domain.TaskList) TaskListDTO {
	return TaskListDTO{
		ID:        l.ID,
		Title:     l.Title,
		CreatedAt: l.CreatedAt,
	}
}

// toUpdateParams builds service params from the masked request fields.
func (req UpdateTaskRequest) toUpdateParams(userID, taskID string) (domain.UpdateTaskParams, error) {
	params := domain.UpdateTaskParams{
		TaskID:     taskID,
		UserID:     userID,
		UpdateMask: req.UpdateMask,
		Etag:       req.Task.Etag,
	}

	for _, field := range req.UpdateMask {
		switch field {
		case domain.FieldTitle:
			params.Title = req.Task.Title
		case domain.FieldStatus:
			if req.Task.Status != nil {
				status, err := domain.NewTaskStatus(*req.Task.Status)
				if err != nil {
					return domain.UpdateTaskParams{}, err
				}
				params.Status = &status
			}
		case domain.FieldDeadline:
			params.Deadline = req.Task.Deadline
		case domain.FieldValueImpact:
			params.ValueImpact = req.Task.ValueImpact
		case domain.FieldDifficulty:
			params.Difficulty = req.Task.Difficulty
		case domain.FieldIsDeleted:
			params.IsDeleted = req.Task.IsDeleted
		}
	}
	return params, nil
}
