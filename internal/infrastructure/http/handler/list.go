package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rezkam/taskflow/internal/infrastructure/http/response"
)

// CreateList handles POST /lists.
func (h *TaskHandler) CreateList(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req CreateListRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON")
		return
	}

	list, err := h.tasks.CreateList(r.Context(), userID, req.Title)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	response.Created(w, map[string]TaskListDTO{"list": MapListToDTO(list)})
}

// ListLists handles GET /lists.
func (h *TaskHandler) ListLists(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	lists, err := h.tasks.ListLists(r.Context(), userID)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	out := make([]TaskListDTO, len(lists))
	for i := range lists {
		out[i] = MapListToDTO(&lists[i])
	}
	response.OK(w, map[string][]TaskListDTO{"lists": out})
}

// AssignTaskList handles PUT /tasks/{task_id}/list.
func (h *TaskHandler) AssignTaskList(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req AssignListRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON")
		return
	}

	if err := h.tasks.AssignTaskToList(r.Context(), userID, chi.URLParam(r, "task_id"), req.ListID); err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	response.NoContent(w)
}
