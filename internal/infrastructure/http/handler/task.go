package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rezkam/taskflow/internal/application/task"
	"github.com/rezkam/taskflow/internal/infrastructure/http/response"
)

// CreateTask handles POST /tasks.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON")
		return
	}

	created, err := h.tasks.CreateTask(r.Context(), userID, task.CreateTaskInput{
		Title:       req.Title,
		Status:      req.Status,
		Deadline:    req.Deadline,
		ValueImpact: req.ValueImpact,
		Difficulty:  req.Difficulty,
		ListID:      req.ListID,
	})
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to create task via HTTP",
			"user_id", userID,
			"error", err)
		response.FromDomainError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "task created via HTTP",
		"task_id", created.ID,
		"user_id", userID,
		"priority_score", created.PriorityScore)

	response.Created(w, map[string]TaskDTO{"task": MapTaskToDTO(created)})
}

// GetTask handles GET /tasks/{task_id}.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	t, err := h.tasks.GetTask(r.Context(), userID, chi.URLParam(r, "task_id"))
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	response.OK(w, map[string]TaskDTO{"task": MapTaskToDTO(t)})
}

// UpdateTask handles PATCH /tasks/{task_id}.
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req UpdateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON")
		return
	}

	taskID := chi.URLParam(r, "task_id")
	params, err := req.toUpdateParams(userID, taskID)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	updated, err := h.tasks.UpdateTask(r.Context(), params)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to update task via HTTP",
			"task_id", taskID,
			"update_mask", req.UpdateMask,
			"error", err)
		response.FromDomainError(w, r, err)
		return
	}

	response.OK(w, map[string]TaskDTO{"task": MapTaskToDTO(updated)})
}

// DeleteTask handles DELETE /tasks/{task_id}. The task is soft-deleted
// unless ?hard=true is given.
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	hard := false
	if v := r.URL.Query().Get("hard"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			response.ValidationError(w, "hard", "must be a boolean")
			return
		}
		hard = parsed
	}

	taskID := chi.URLParam(r, "task_id")
	var err error
	if hard {
		err = h.tasks.HardDeleteTask(r.Context(), userID, taskID)
	} else {
		_, err = h.tasks.SoftDeleteTask(r.Context(), userID, taskID)
	}
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "task deleted via HTTP",
		"task_id", taskID,
		"hard", hard)

	response.NoContent(w)
}

// FilterTasks handles GET /tasks.
func (h *TaskHandler) FilterTasks(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	filter, err := parseTaskFilter(r.URL.Query())
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	tasks, err := h.tasks.FilterTasks(r.Context(), userID, filter)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	response.OK(w, map[string][]TaskDTO{"tasks": MapTasksToDTO(tasks)})
}
