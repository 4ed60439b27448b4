package task

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/rezkam/taskflow/internal/domain"
)

// Filter evaluation paths, recorded as the "path" metric attribute.
const (
	filterPathLocal  = "local"
	filterPathRemote = "remote"
)

// FilterTasks returns the user's non-deleted tasks matching filter.
//
// When the user's task collection is cached, the filter runs in memory over
// the cached copy; list membership is resolved from the relation cache or
// fetched once and cached. Otherwise the filter is translated into a
// repository query. Both paths select the same tasks.
//
// A repository failure returns nil and the error, never a partial result.
func (s *Service) FilterTasks(ctx context.Context, userID string, filter domain.TaskFilter) ([]domain.Task, error) {
	if userID == "" {
		return nil, domain.ErrUserRequired
	}

	tasks, ok, err := s.filterCached(ctx, userID, filter)
	if err != nil {
		return nil, err
	}
	if ok {
		s.recordFilter(ctx, filterPathLocal)
		return tasks, nil
	}

	tasks, err = s.repo.QueryTasks(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}

	s.recordFilter(ctx, filterPathRemote)
	return tasks, nil
}

// filterCached evaluates filter over the cached collection. ok is false when
// nothing is cached or a write invalidated the user while the filter ran, in
// which case the caller falls back to the repository.
func (s *Service) filterCached(ctx context.Context, userID string, filter domain.TaskFilter) (tasks []domain.Task, ok bool, err error) {
	gen := s.cache.Generation(userID)

	cached, ok := s.cache.Tasks(userID)
	if !ok {
		return nil, false, nil
	}

	var memberships map[string]string
	if filter.ListID != nil {
		m, err := s.memberships(ctx, userID, gen)
		if err != nil {
			return nil, false, err
		}
		memberships = m
	}

	if s.cache.Generation(userID) != gen {
		slog.DebugContext(ctx, "cached tasks invalidated during filter, querying repository",
			"user_id", userID)
		return nil, false, nil
	}
	return domain.FilterTasks(cached, filter, memberships), true, nil
}

// SyncTasks loads the user's full task collection and list memberships into
// the cache, switching later filters to the in-memory path. It returns the
// number of tasks loaded.
//
// If a write for the user lands while the collection is being read, the read
// is discarded and filters stay on the repository path.
func (s *Service) SyncTasks(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, domain.ErrUserRequired
	}

	gen := s.cache.Generation(userID)

	tasks, err := s.repo.FindUserTasks(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to load tasks: %w", err)
	}

	relations, err := s.repo.FindTaskListRelations(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to load list relations: %w", err)
	}

	if !s.cache.StoreTasks(userID, gen, tasks) ||
		!s.cache.StoreRelations(userID, gen, domain.MembershipIndex(relations)) {
		slog.DebugContext(ctx, "discarded task sync overtaken by a concurrent write",
			"user_id", userID)
	}

	return len(tasks), nil
}

func (s *Service) memberships(ctx context.Context, userID string, gen uint64) (map[string]string, error) {
	if m, ok := s.cache.Relations(userID); ok {
		return m, nil
	}

	relations, err := s.repo.FindTaskListRelations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load list relations: %w", err)
	}

	m := domain.MembershipIndex(relations)
	s.cache.StoreRelations(userID, gen, m)
	return m, nil
}

func (s *Service) recordFilter(ctx context.Context, path string) {
	s.filterRequests.Add(ctx, 1, metric.WithAttributes(attribute.String("path", path)))
}
