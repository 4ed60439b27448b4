// Package gcs stores cache snapshots as JSON objects in a Google Cloud
// Storage bucket.
package gcs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/rezkam/taskflow/internal/infrastructure/snapshot"
)

// Store is a GCS-based implementation of snapshot.Store.
type Store struct {
	client *storage.Client
	bucket string
	prefix string
}

var _ snapshot.Store = (*Store)(nil)

// NewStore creates a new GCS store writing under prefix in bucketName.
// It assumes the client is authenticated (e.g. via GOOGLE_APPLICATION_CREDENTIALS).
func NewStore(ctx context.Context, bucketName, prefix string) (*Store, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return NewStoreWithClient(client, bucketName, prefix), nil
}

// NewStoreWithClient creates a store on an existing client.
func NewStoreWithClient(client *storage.Client, bucketName, prefix string) *Store {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &Store{
		client: client,
		bucket: bucketName,
		prefix: prefix,
	}
}

func (s *Store) objectName(userID string) string {
	return s.prefix + snapshot.FileName(userID)
}

func (s *Store) object(userID string) *storage.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(s.objectName(userID))
}

// Save writes the snapshot as a single object, replacing any previous one.
func (s *Store) Save(ctx context.Context, snap snapshot.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	w := s.object(snap.UserID).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write object: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize object: %w", err)
	}
	return nil
}

// Load reads the user's snapshot.
func (s *Store) Load(ctx context.Context, userID string) (*snapshot.Snapshot, error) {
	r, err := s.object(userID).NewReader(ctx)
	if err != nil {
		// Use errors.Is to handle wrapped errors from GCS client
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: %s", snapshot.ErrNotFound, userID)
		}
		return nil, fmt.Errorf("failed to read object: %w", err)
	}
	defer r.Close()

	var snap snapshot.Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snap, nil
}

// List returns the users with a snapshot under the prefix.
func (s *Store) List(ctx context.Context) ([]string, error) {
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: s.prefix})

	users := []string{}
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		rel := strings.TrimPrefix(attrs.Name, s.prefix)
		if path.Dir(rel) != "." {
			continue
		}
		if userID, ok := snapshot.UserIDFromFileName(rel); ok {
			users = append(users, userID)
		}
	}
	return users, nil
}

// Delete removes the user's snapshot object.
func (s *Store) Delete(ctx context.Context, userID string) error {
	if err := s.object(userID).Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
