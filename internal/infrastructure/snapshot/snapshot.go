// Package snapshot persists the in-memory task cache so that synced users
// keep the local filter path across restarts.
package snapshot

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/rezkam/taskflow/internal/infrastructure/cache"
)

// ErrNotFound is returned by Store.Load when no snapshot exists for the user.
var ErrNotFound = errors.New("snapshot not found")

// Snapshot is one user's cached state at SavedAt.
type Snapshot struct {
	cache.UserEntry
	SavedAt time.Time `json:"saved_at"`
}

// Store persists snapshots, one per user.
type Store interface {
	// Save writes s, replacing any previous snapshot of the user.
	Save(ctx context.Context, s Snapshot) error

	// Load returns the user's snapshot or ErrNotFound.
	Load(ctx context.Context, userID string) (*Snapshot, error)

	// List returns the IDs of users with a snapshot.
	List(ctx context.Context) ([]string, error)

	// Delete removes the user's snapshot. Deleting a missing snapshot is not an error.
	Delete(ctx context.Context, userID string) error
}

const fileExt = ".json"

// FileName maps a user ID to a flat, path-safe object name.
func FileName(userID string) string {
	return url.PathEscape(userID) + fileExt
}

// UserIDFromFileName reverses FileName. ok is false for names FileName
// could not have produced.
func UserIDFromFileName(name string) (string, bool) {
	escaped, found := strings.CutSuffix(name, fileExt)
	if !found || escaped == "" || strings.Contains(escaped, "/") {
		return "", false
	}
	userID, err := url.PathUnescape(escaped)
	if err != nil {
		return "", false
	}
	return userID, true
}
