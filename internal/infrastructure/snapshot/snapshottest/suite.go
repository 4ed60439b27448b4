// Package snapshottest holds the behavioral test suite every snapshot.Store
// implementation must pass.
package snapshottest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/taskflow/internal/domain"
	"github.com/rezkam/taskflow/internal/infrastructure/cache"
	"github.com/rezkam/taskflow/internal/infrastructure/snapshot"
)

// RunStoreComplianceTest runs the standard set of tests against a Store.
// setup returns a store; subtests use fresh user IDs.
func RunStoreComplianceTest(t *testing.T, setup func(t *testing.T) snapshot.Store) {
	t.Run("SaveAndLoad", func(t *testing.T) {
		store := setup(t)
		ctx := context.Background()

		want := sample("user/" + uuid.NewString())
		require.NoError(t, store.Save(ctx, want))

		got, err := store.Load(ctx, want.UserID)
		require.NoError(t, err)
		assert.Equal(t, want.UserID, got.UserID)
		assert.True(t, want.SavedAt.Equal(got.SavedAt))
		assert.True(t, want.ExpiresAt.Equal(got.ExpiresAt))
		require.Len(t, got.Tasks, 2)
		assert.Equal(t, want.Tasks[0].ID, got.Tasks[0].ID)
		require.NotNil(t, got.Tasks[0].Deadline)
		assert.True(t, want.Tasks[0].Deadline.Equal(*got.Tasks[0].Deadline))
		assert.Nil(t, got.Tasks[1].Deadline)
		assert.Equal(t, want.Relations, got.Relations)
	})

	t.Run("SaveReplaces", func(t *testing.T) {
		store := setup(t)
		ctx := context.Background()

		snap := sample(uuid.NewString())
		require.NoError(t, store.Save(ctx, snap))

		snap.Tasks = snap.Tasks[:1]
		require.NoError(t, store.Save(ctx, snap))

		got, err := store.Load(ctx, snap.UserID)
		require.NoError(t, err)
		assert.Len(t, got.Tasks, 1)
	})

	t.Run("LoadMissing", func(t *testing.T) {
		store := setup(t)

		_, err := store.Load(context.Background(), uuid.NewString())
		assert.ErrorIs(t, err, snapshot.ErrNotFound)
	})

	t.Run("ListAndDelete", func(t *testing.T) {
		store := setup(t)
		ctx := context.Background()

		a := sample(uuid.NewString())
		b := sample("odd id with spaces/" + uuid.NewString())
		require.NoError(t, store.Save(ctx, a))
		require.NoError(t, store.Save(ctx, b))

		users, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, users, a.UserID)
		assert.Contains(t, users, b.UserID)

		require.NoError(t, store.Delete(ctx, a.UserID))
		require.NoError(t, store.Delete(ctx, a.UserID), "deleting twice is fine")

		users, err = store.List(ctx)
		require.NoError(t, err)
		assert.NotContains(t, users, a.UserID)
		assert.Contains(t, users, b.UserID)

		_, err = store.Load(ctx, a.UserID)
		assert.ErrorIs(t, err, snapshot.ErrNotFound)
	})
}

func sample(userID string) snapshot.Snapshot {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	deadline := now.Add(36 * time.Hour)
	return snapshot.Snapshot{
		UserEntry: cache.UserEntry{
			UserID: userID,
			Tasks: []domain.Task{
				{ID: "t1", UserID: userID, Title: "a", Status: domain.TaskStatusOngoing, Deadline: &deadline, Version: 1},
				{ID: "t2", UserID: userID, Title: "b", Status: domain.TaskStatusCompleted, Version: 3},
			},
			Relations: map[string]string{"t1": "l1"},
			ExpiresAt: now.Add(5 * time.Minute),
		},
		SavedAt: now,
	}
}
