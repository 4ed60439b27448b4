package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/taskflow/internal/domain"
	"github.com/rezkam/taskflow/internal/infrastructure/cache"
)

type memStore struct {
	mu      sync.Mutex
	data    map[string]Snapshot
	saveErr error
	deletes []string
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]Snapshot)}
}

func (m *memStore) Save(_ context.Context, s Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.data[s.UserID] = s
	return nil
}

func (m *memStore) Load(_ context.Context, userID string) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.data[userID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, userID)
	}
	return &s, nil
}

func (m *memStore) List(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	users := make([]string, 0, len(m.data))
	for userID := range m.data {
		users = append(users, userID)
	}
	return users, nil
}

func (m *memStore) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, userID)
	m.deletes = append(m.deletes, userID)
	return nil
}

func (m *memStore) has(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[userID]
	return ok
}

var flushNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func tasksFor(userID string) []domain.Task {
	return []domain.Task{{ID: "t-" + userID, UserID: userID, Title: "x", Status: domain.TaskStatusOngoing}}
}

func TestFlushOnce_SavesChangedAndDeletesInvalidated(t *testing.T) {
	c := cache.NewUserTaskCache(cache.Config{TTL: time.Hour})
	store := newMemStore()
	f := NewFlusher(c, store, WithClock(func() time.Time { return flushNow }))
	ctx := context.Background()

	c.StoreTasks("u1", c.Generation("u1"), tasksFor("u1"))
	c.StoreTasks("u2", c.Generation("u2"), tasksFor("u2"))
	require.NoError(t, f.FlushOnce(ctx))

	assert.True(t, store.has("u1"))
	assert.True(t, store.has("u2"))
	saved, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, flushNow, saved.SavedAt)
	assert.Equal(t, tasksFor("u1"), saved.Tasks)

	c.Invalidate("u1")
	require.NoError(t, f.FlushOnce(ctx))
	assert.False(t, store.has("u1"))
	assert.True(t, store.has("u2"))

	// nothing changed: no store traffic
	deletes := len(store.deletes)
	require.NoError(t, f.FlushOnce(ctx))
	assert.Len(t, store.deletes, deletes)
}

func TestFlushOnce_RetriesFailedUsers(t *testing.T) {
	c := cache.NewUserTaskCache(cache.Config{})
	store := newMemStore()
	f := NewFlusher(c, store)
	ctx := context.Background()

	boom := errors.New("bucket unavailable")
	store.saveErr = boom
	c.StoreTasks("u1", c.Generation("u1"), tasksFor("u1"))

	err := f.FlushOnce(ctx)
	assert.ErrorIs(t, err, boom)
	assert.False(t, store.has("u1"))

	store.mu.Lock()
	store.saveErr = nil
	store.mu.Unlock()

	require.NoError(t, f.FlushOnce(ctx))
	assert.True(t, store.has("u1"))
}

func TestRestore(t *testing.T) {
	clock := flushNow
	now := func() time.Time { return clock }

	src := cache.NewUserTaskCache(cache.Config{TTL: time.Hour}, cache.WithClock(now))
	store := newMemStore()

	src.StoreTasks("fresh", src.Generation("fresh"), tasksFor("fresh"))
	src.StoreRelations("fresh", src.Generation("fresh"), map[string]string{"t-fresh": "l1"})
	require.NoError(t, NewFlusher(src, store, WithClock(now)).FlushOnce(context.Background()))

	stale, ok := src.Entry("fresh")
	require.True(t, ok)
	stale.UserID = "stale"
	stale.ExpiresAt = clock.Add(-time.Minute)
	require.NoError(t, store.Save(context.Background(), Snapshot{UserEntry: stale, SavedAt: clock}))

	dst := cache.NewUserTaskCache(cache.Config{TTL: time.Hour}, cache.WithClock(now))
	restored, err := NewFlusher(dst, store, WithClock(now)).Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, restored)

	got, ok := dst.Tasks("fresh")
	require.True(t, ok)
	assert.Equal(t, tasksFor("fresh"), got)
	m, ok := dst.Relations("fresh")
	require.True(t, ok)
	assert.Equal(t, "l1", m["t-fresh"])

	_, ok = dst.Tasks("stale")
	assert.False(t, ok)
	assert.False(t, store.has("stale"), "expired snapshots are deleted")
}

func TestStartAndShutdown(t *testing.T) {
	c := cache.NewUserTaskCache(cache.Config{})
	store := newMemStore()
	f := NewFlusher(c, store, WithFlushInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Start(ctx) }()

	c.StoreTasks("u1", c.Generation("u1"), tasksFor("u1"))
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("flusher did not stop")
	}

	require.NoError(t, f.Shutdown(context.Background()))
	assert.True(t, store.has("u1"), "final flush persists pending changes")
}

func TestRestore_KeepsStateNewerThanSnapshot(t *testing.T) {
	now := func() time.Time { return flushNow }
	store := newMemStore()

	src := cache.NewUserTaskCache(cache.Config{TTL: time.Hour}, cache.WithClock(now))
	src.StoreTasks("edited", src.Generation("edited"), tasksFor("edited"))
	src.StoreTasks("synced", src.Generation("synced"), tasksFor("synced"))
	src.StoreTasks("idle", src.Generation("idle"), tasksFor("idle"))
	require.NoError(t, NewFlusher(src, store, WithClock(now)).FlushOnce(context.Background()))

	dst := cache.NewUserTaskCache(cache.Config{TTL: time.Hour}, cache.WithClock(now))
	// a write and a fresh sync both land before the restore
	dst.Invalidate("edited")
	newer := []domain.Task{{ID: "t-new", UserID: "synced", Title: "y", Status: domain.TaskStatusCompleted}}
	require.True(t, dst.StoreTasks("synced", dst.Generation("synced"), newer))

	restored, err := NewFlusher(dst, store, WithClock(now)).Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, restored)

	_, ok := dst.Tasks("edited")
	assert.False(t, ok, "an invalidated user must not get its old snapshot back")
	got, ok := dst.Tasks("synced")
	require.True(t, ok)
	assert.Equal(t, newer, got)
	_, ok = dst.Tasks("idle")
	assert.True(t, ok)
	assert.True(t, store.has("edited"), "skipped snapshots are left for the next flush to replace")
}

func TestStart_DoesNotRestore(t *testing.T) {
	now := func() time.Time { return flushNow }
	store := newMemStore()
	src := cache.NewUserTaskCache(cache.Config{TTL: time.Hour}, cache.WithClock(now))
	src.StoreTasks("u1", src.Generation("u1"), tasksFor("u1"))
	require.NoError(t, NewFlusher(src, store, WithClock(now)).FlushOnce(context.Background()))

	dst := cache.NewUserTaskCache(cache.Config{TTL: time.Hour}, cache.WithClock(now))
	f := NewFlusher(dst, store, WithFlushInterval(time.Hour), WithClock(now))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, f.Start(ctx))

	_, ok := dst.Tasks("u1")
	assert.False(t, ok)
}
