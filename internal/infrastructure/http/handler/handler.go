// Package handler adapts HTTP requests to task service calls.
package handler

import (
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/rezkam/taskflow/internal/application/auth"
	"github.com/rezkam/taskflow/internal/application/task"
	"github.com/rezkam/taskflow/internal/domain"
	"github.com/rezkam/taskflow/internal/infrastructure/http/response"
	"github.com/rezkam/taskflow/internal/infrastructure/realtime"
)

// Websocket keepalive defaults.
const (
	DefaultPingInterval = 30 * time.Second
	DefaultPongWait     = 60 * time.Second
	DefaultWriteWait    = 5 * time.Second
	maxEventReadBytes   = 1024
)

// TaskHandler serves the task API.
type TaskHandler struct {
	tasks        *task.Service
	hub          *realtime.Hub
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	pongWait     time.Duration
}

// Option configures a TaskHandler.
type Option func(*TaskHandler)

// WithAllowedOrigins restricts websocket upgrades to the given origins.
// An empty list or "*" allows any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(h *TaskHandler) {
		if len(origins) == 0 || slices.Contains(origins, "*") {
			return
		}
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(origins, origin)
		}
	}
}

// WithKeepalive overrides the websocket ping interval and pong wait.
func WithKeepalive(pingInterval, pongWait time.Duration) Option {
	return func(h *TaskHandler) {
		h.pingInterval = pingInterval
		h.pongWait = pongWait
	}
}

// NewTaskHandler creates a new HTTP API handler.
func NewTaskHandler(tasks *task.Service, hub *realtime.Hub, opts ...Option) *TaskHandler {
	h := &TaskHandler{
		tasks: tasks,
		hub:   hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		pingInterval: DefaultPingInterval,
		pongWait:     DefaultPongWait,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the API routes. They expect the authenticated user in the
// request context.
func (h *TaskHandler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Route("/tasks", func(r chi.Router) {
		r.Post("/", h.CreateTask)
		r.Get("/", h.FilterTasks)
		r.Get("/{task_id}", h.GetTask)
		r.Patch("/{task_id}", h.UpdateTask)
		r.Delete("/{task_id}", h.DeleteTask)
		r.Put("/{task_id}/list", h.AssignTaskList)
	})

	r.Route("/lists", func(r chi.Router) {
		r.Post("/", h.CreateList)
		r.Get("/", h.ListLists)
	})

	r.Post("/priority-score", h.PreviewScore)
	r.Post("/sync", h.Sync)
	r.Get("/events", h.Events)

	return r
}

// requireUser returns the authenticated user or writes a 401.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		response.FromDomainError(w, r, domain.ErrUnauthorized)
		return "", false
	}
	return userID, true
}
