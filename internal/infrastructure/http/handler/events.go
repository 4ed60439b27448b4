package handler

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rezkam/taskflow/internal/infrastructure/realtime"
)

// eventQueueSize bounds the messages buffered per connection. A client that
// falls this far behind is dropped.
const eventQueueSize = 16

// wsClient implements realtime.Client over a websocket connection. Send only
// queues; writePump owns all writes to the connection.
type wsClient struct {
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

var _ realtime.Client = (*wsClient)(nil)

func newWSClient(conn *websocket.Conn, queueSize int) *wsClient {
	return &wsClient{
		conn: conn,
		send: make(chan []byte, queueSize),
		done: make(chan struct{}),
	}
}

// Send queues message without blocking. It returns false when the client is
// closed or its queue is full.
func (c *wsClient) Send(message []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

func (c *wsClient) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// writePump delivers queued messages and keepalive pings until the client is
// closed or a write fails.
func (c *wsClient) writePump(pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer c.Close()

	for {
		select {
		case <-c.done:
			return
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().UTC().Add(DefaultWriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().UTC().Add(DefaultWriteWait)); err != nil {
				return
			}
		}
	}
}

// Events handles GET /events: it upgrades to a websocket and streams the
// caller's task events until the client disconnects.
func (h *TaskHandler) Events(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		slog.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	client := newWSClient(conn, eventQueueSize)
	h.hub.Register(userID, client)
	slog.DebugContext(r.Context(), "event stream opened", "user_id", userID)

	var wg sync.WaitGroup
	wg.Go(func() { client.writePump(h.pingInterval) })

	defer func() {
		h.hub.Unregister(userID, client)
		client.Close()
		wg.Wait()
		slog.DebugContext(r.Context(), "event stream closed", "user_id", userID)
	}()

	conn.SetReadLimit(maxEventReadBytes)
	_ = conn.SetReadDeadline(time.Now().UTC().Add(h.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().UTC().Add(h.pongWait))
	})

	// Inbound messages are ignored; reading drives pong handling and
	// detects disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
