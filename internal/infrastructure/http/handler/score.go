package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/rezkam/taskflow/internal/domain"
	"github.com/rezkam/taskflow/internal/infrastructure/http/response"
)

// PreviewScore handles POST /priority-score. Nothing is persisted.
func (h *TaskHandler) PreviewScore(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}

	var req ScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON")
		return
	}

	score := h.tasks.PreviewScore(domain.ScoreInput{
		ValueImpact: req.ValueImpact,
		Difficulty:  req.Difficulty,
		Deadline:    req.Deadline,
	})
	response.OK(w, map[string]int{"priority_score": score})
}

// Sync handles POST /sync: it loads the caller's tasks into the cache.
func (h *TaskHandler) Sync(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	n, err := h.tasks.SyncTasks(r.Context(), userID)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "tasks synced", "user_id", userID, "count", n)
	response.OK(w, map[string]int{"synced": n})
}
