package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/taskflow/internal/domain"
)

type fakeClient struct {
	mu       sync.Mutex
	messages [][]byte
	fail     bool
	closed   bool
}

func (c *fakeClient) Send(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return false
	}
	c.messages = append(c.messages, message)
	return true
}

func (c *fakeClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeClient) received() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.messages
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub()
	a, b := &fakeClient{}, &fakeClient{}

	hub.Register("user-1", a)
	hub.Register("user-1", b)
	hub.Register("user-1", a)
	assert.Equal(t, 2, hub.ClientCount("user-1"))
	assert.Equal(t, 0, hub.ClientCount("user-2"))

	hub.Unregister("user-1", a)
	assert.Equal(t, 1, hub.ClientCount("user-1"))

	hub.Unregister("user-1", b)
	hub.Unregister("user-1", b)
	assert.Equal(t, 0, hub.ClientCount("user-1"))
	assert.False(t, a.closed, "unregister must not close the client")
}

func TestHub_BroadcastScopedToUser(t *testing.T) {
	hub := NewHub()
	mine, theirs := &fakeClient{}, &fakeClient{}
	hub.Register("user-1", mine)
	hub.Register("user-2", theirs)

	n := hub.Broadcast("user-1", []byte("hello"))

	assert.Equal(t, 1, n)
	assert.Equal(t, [][]byte{[]byte("hello")}, mine.received())
	assert.Empty(t, theirs.received())
}

func TestHub_BroadcastDropsFailedClients(t *testing.T) {
	hub := NewHub()
	ok, broken := &fakeClient{}, &fakeClient{fail: true}
	hub.Register("user-1", ok)
	hub.Register("user-1", broken)

	n := hub.Broadcast("user-1", []byte("x"))

	assert.Equal(t, 1, n)
	assert.Equal(t, 1, hub.ClientCount("user-1"))
	assert.True(t, broken.closed)
	assert.False(t, ok.closed)
}

func TestHub_Publish(t *testing.T) {
	hub := NewHub()
	client := &fakeClient{}
	hub.Register("user-1", client)

	occurred := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	hub.Publish(context.Background(), domain.TaskEvent{
		Type:       domain.TaskEventCreated,
		UserID:     "user-1",
		TaskID:     "task-1",
		Task:       &domain.Task{ID: "task-1", Title: "Write report"},
		OccurredAt: occurred,
	})

	msgs := client.received()
	require.Len(t, msgs, 1)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msgs[0], &decoded))
	assert.Equal(t, "task.created", decoded["type"])
	assert.Equal(t, "task-1", decoded["task_id"])
	assert.NotContains(t, decoded, "UserID")
	assert.Equal(t, "Write report", decoded["task"].(map[string]any)["title"])
}

func TestHub_PublishWithoutSubscribers(t *testing.T) {
	hub := NewHub()
	other := &fakeClient{}
	hub.Register("user-2", other)

	hub.Publish(context.Background(), domain.TaskEvent{Type: domain.TaskEventDeleted, UserID: "user-1", TaskID: "t"})

	assert.Empty(t, other.received())
}

func TestHub_ConcurrentAccess(t *testing.T) {
	hub := NewHub()
	var wg sync.WaitGroup
	for range 20 {
		wg.Go(func() {
			c := &fakeClient{}
			hub.Register("user-1", c)
			hub.Broadcast("user-1", []byte("ping"))
			hub.Unregister("user-1", c)
		})
	}
	wg.Wait()
	assert.Equal(t, 0, hub.ClientCount("user-1"))
}
