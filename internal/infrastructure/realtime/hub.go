// Package realtime fans task change events out to a user's connected clients.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/rezkam/taskflow/internal/application/task"
	"github.com/rezkam/taskflow/internal/domain"
)

// Client is a single subscriber connection.
type Client interface {
	// Send delivers one message. It returns false when the client is gone.
	Send(message []byte) bool
	Close()
}

// Hub tracks connected clients per user.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[Client]struct{}
}

// Compile-time verification that Hub implements the notifier port.
var _ task.Notifier = (*Hub)(nil)

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[Client]struct{})}
}

// Register adds a client for the user.
func (h *Hub) Register(userID string, c Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.clients[userID]
	if !ok {
		set = make(map[Client]struct{})
		h.clients[userID] = set
	}
	set[c] = struct{}{}
}

// Unregister removes a client. It does not close it.
func (h *Hub) Unregister(userID string, c Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.clients[userID]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, userID)
	}
}

// ClientCount returns the number of clients connected for the user.
func (h *Hub) ClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Broadcast sends message to every client of the user and returns how many
// received it. Clients that fail to receive are unregistered and closed.
func (h *Hub) Broadcast(userID string, message []byte) int {
	h.mu.RLock()
	targets := make([]Client, 0, len(h.clients[userID]))
	for c := range h.clients[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if c.Send(message) {
			delivered++
			continue
		}
		h.Unregister(userID, c)
		c.Close()
	}
	return delivered
}

// Publish encodes the event as JSON and broadcasts it to the event's owner.
func (h *Hub) Publish(ctx context.Context, event domain.TaskEvent) {
	if h.ClientCount(event.UserID) == 0 {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		slog.ErrorContext(ctx, "failed to encode task event",
			"type", event.Type,
			"task_id", event.TaskID,
			"error", err)
		return
	}

	delivered := h.Broadcast(event.UserID, payload)
	slog.DebugContext(ctx, "task event published",
		"type", event.Type,
		"task_id", event.TaskID,
		"clients", delivered)
}
