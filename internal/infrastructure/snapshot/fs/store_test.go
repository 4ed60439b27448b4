package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/taskflow/internal/infrastructure/snapshot"
	"github.com/rezkam/taskflow/internal/infrastructure/snapshot/snapshottest"
)

func TestFSStore_Compliance(t *testing.T) {
	snapshottest.RunStoreComplianceTest(t, func(t *testing.T) snapshot.Store {
		store, err := NewStore(t.TempDir())
		require.NoError(t, err)
		return store
	})
}

func TestFSStore_ListIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".snapshot-123"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.json"), 0o755))

	users, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)
}
