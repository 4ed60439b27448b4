package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/rezkam/taskflow/internal/domain"
	"github.com/rezkam/taskflow/internal/ptr"
)

const meterName = "github.com/rezkam/taskflow/internal/application/task"

// maxScoreUpdateAttempts bounds how often an update that recomputes the
// priority score is retried after a concurrent write moved the version.
const maxScoreUpdateAttempts = 3

// Service provides business logic for tasks and lists.
// It orchestrates operations using the Repository interface, keeps the
// per-user Cache coherent and publishes changes through the Notifier.
type Service struct {
	repo           Repository
	cache          Cache
	notifier       Notifier
	now            func() time.Time
	meterProvider  metric.MeterProvider
	filterRequests metric.Int64Counter
}

// Option is a functional option for configuring Service.
type Option func(*Service)

// WithClock sets the time source used for scoring and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithMeterProvider sets the meter provider used for service metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) {
		s.meterProvider = mp
	}
}

// NewService creates a new task service.
// A nil cache disables the in-memory filter path; a nil notifier drops events.
func NewService(repo Repository, cache Cache, notifier Notifier, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		cache:    cache,
		notifier: notifier,
		now:      time.Now,
	}
	if s.cache == nil {
		s.cache = noopCache{}
	}
	if s.notifier == nil {
		s.notifier = noopNotifier{}
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.meterProvider == nil {
		s.meterProvider = otel.GetMeterProvider()
	}
	counter, err := s.meterProvider.Meter(meterName).Int64Counter(
		"taskflow.filter.requests",
		metric.WithDescription("Task filter requests by evaluation path"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		slog.Warn("failed to create filter counter", "error", err)
		counter = noop.Int64Counter{}
	}
	s.filterRequests = counter

	return s
}

// CreateTaskInput carries the client-supplied fields of a new task.
// Nil numbers fall back to their defaults; out-of-range numbers are clamped.
type CreateTaskInput struct {
	Title       string
	Status      string
	Deadline    *time.Time
	ValueImpact *int
	Difficulty  *int
	ListID      *string
}

// CreateTask creates a task with its initial priority score.
func (s *Service) CreateTask(ctx context.Context, userID string, input CreateTaskInput) (*domain.Task, error) {
	if userID == "" {
		return nil, domain.ErrUserRequired
	}

	title, err := domain.NewTitle(input.Title)
	if err != nil {
		return nil, err
	}

	status := domain.TaskStatusOngoing
	if input.Status != "" {
		status, err = domain.NewTaskStatus(input.Status)
		if err != nil {
			return nil, err
		}
	}

	if input.ListID != nil {
		if err := validateID(*input.ListID, domain.ErrListNotFound); err != nil {
			return nil, err
		}
	}

	idObj, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate id: %w", err)
	}

	now := s.now().UTC()
	deadline := domain.NormalizeDeadline(input.Deadline)
	valueImpact := domain.ClampValueImpact(ptr.Deref(input.ValueImpact, domain.DefaultValueImpact))
	difficulty := domain.ClampDifficulty(ptr.Deref(input.Difficulty, domain.DefaultDifficulty))

	task := &domain.Task{
		ID:          idObj.String(),
		UserID:      userID,
		Title:       title.String(),
		Status:      status,
		Deadline:    deadline,
		ValueImpact: valueImpact,
		Difficulty:  difficulty,
		PriorityScore: domain.ComputeScore(domain.ScoreInput{
			ValueImpact: &valueImpact,
			Difficulty:  &difficulty,
			Deadline:    deadline,
		}, now),
		CreatedAt: now,
		UpdatedAt: now,
	}

	var created *domain.Task
	if input.ListID == nil {
		created, err = s.repo.CreateTask(ctx, task)
	} else {
		err = s.repo.Atomic(ctx, func(repo Repository) error {
			t, err := repo.CreateTask(ctx, task)
			if err != nil {
				return err
			}
			created = t
			return repo.SetTaskList(ctx, userID, t.ID, input.ListID)
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	s.cache.Invalidate(userID)
	s.publish(ctx, domain.TaskEventCreated, created)

	return created, nil
}

// GetTask retrieves a single task owned by userID.
func (s *Service) GetTask(ctx context.Context, userID, id string) (*domain.Task, error) {
	if userID == "" {
		return nil, domain.ErrUserRequired
	}
	if err := validateID(id, domain.ErrTaskNotFound); err != nil {
		return nil, err
	}

	return s.repo.FindTaskByID(ctx, userID, id)
}

// UpdateTask updates a task using field mask and optional etag for OCC.
// When the mask touches a priority input, the score is recomputed from the
// merged task and written in the same update.
func (s *Service) UpdateTask(ctx context.Context, params domain.UpdateTaskParams) (*domain.Task, error) {
	if params.UserID == "" {
		return nil, domain.ErrUserRequired
	}
	if err := validateID(params.TaskID, domain.ErrTaskNotFound); err != nil {
		return nil, err
	}

	// Etag should be a numeric string (version number)
	if params.Etag != nil {
		version, err := strconv.Atoi(*params.Etag)
		if err != nil || version < 1 {
			return nil, domain.ErrInvalidEtagFormat
		}
	}

	if err := params.Validate(); err != nil {
		return nil, err
	}

	if params.Title != nil {
		title, err := domain.NewTitle(*params.Title)
		if err != nil {
			return nil, err
		}
		params.Title = ptr.To(title.String())
	}

	if params.Status != nil {
		status, err := domain.NewTaskStatus(string(*params.Status))
		if err != nil {
			return nil, err
		}
		params.Status = &status
	}

	params.Deadline = domain.NormalizeDeadline(params.Deadline)
	if params.ValueImpact != nil {
		params.ValueImpact = ptr.To(domain.ClampValueImpact(*params.ValueImpact))
	}
	if params.Difficulty != nil {
		params.Difficulty = ptr.To(domain.ClampDifficulty(*params.Difficulty))
	}

	var (
		updated *domain.Task
		err     error
	)
	if params.TouchesScore() {
		updated, err = s.updateWithScore(ctx, params)
	} else {
		updated, err = s.repo.UpdateTask(ctx, params)
	}
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(params.UserID)
	eventType := domain.TaskEventUpdated
	if params.Has(domain.FieldIsDeleted) && updated.IsDeleted {
		eventType = domain.TaskEventDeleted
	}
	s.publish(ctx, eventType, updated)

	return updated, nil
}

// updateWithScore reads the current task, merges the update, recomputes the
// score and writes everything pinned to the version it read. Without a
// caller etag a conflicting concurrent write is retried.
func (s *Service) updateWithScore(ctx context.Context, params domain.UpdateTaskParams) (*domain.Task, error) {
	callerEtag := params.Etag
	params.UpdateMask = append(slices.Clone(params.UpdateMask), domain.FieldPriorityScore)

	for attempt := 1; ; attempt++ {
		existing, err := s.repo.FindTaskByID(ctx, params.UserID, params.TaskID)
		if err != nil {
			return nil, err
		}
		if callerEtag != nil && *callerEtag != existing.Etag() {
			return nil, fmt.Errorf("%w: expected version %s, current version %d",
				domain.ErrVersionConflict, *callerEtag, existing.Version)
		}

		merged := params.ApplyTo(*existing)
		params.PriorityScore = ptr.To(domain.ComputeScore(merged.ScoreInput(), s.now()))
		params.Etag = ptr.To(existing.Etag())

		updated, err := s.repo.UpdateTask(ctx, params)
		if err == nil {
			return updated, nil
		}
		if callerEtag != nil || !errors.Is(err, domain.ErrVersionConflict) || attempt == maxScoreUpdateAttempts {
			return nil, err
		}
		slog.DebugContext(ctx, "retrying score update after concurrent write",
			"task_id", params.TaskID,
			"attempt", attempt)
	}
}

// SoftDeleteTask marks a task deleted. It stays retrievable by ID but never
// appears in filter results.
func (s *Service) SoftDeleteTask(ctx context.Context, userID, id string) (*domain.Task, error) {
	return s.UpdateTask(ctx, domain.UpdateTaskParams{
		TaskID:     id,
		UserID:     userID,
		UpdateMask: []string{domain.FieldIsDeleted},
		IsDeleted:  ptr.To(true),
	})
}

// HardDeleteTask permanently removes a task.
func (s *Service) HardDeleteTask(ctx context.Context, userID, id string) error {
	if userID == "" {
		return domain.ErrUserRequired
	}
	if err := validateID(id, domain.ErrTaskNotFound); err != nil {
		return err
	}

	if err := s.repo.HardDeleteTask(ctx, userID, id); err != nil {
		return err
	}

	s.cache.Invalidate(userID)
	s.notifier.Publish(ctx, domain.TaskEvent{
		Type:       domain.TaskEventDeleted,
		UserID:     userID,
		TaskID:     id,
		OccurredAt: s.now().UTC(),
	})
	return nil
}

// PreviewScore computes the score a task with these inputs would get now.
func (s *Service) PreviewScore(in domain.ScoreInput) int {
	return domain.ComputeScore(in, s.now())
}

// CreateList creates a new list for userID.
func (s *Service) CreateList(ctx context.Context, userID, titleStr string) (*domain.TaskList, error) {
	if userID == "" {
		return nil, domain.ErrUserRequired
	}

	title, err := domain.NewTitle(titleStr)
	if err != nil {
		return nil, err
	}

	idObj, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate id: %w", err)
	}

	list, err := s.repo.CreateList(ctx, &domain.TaskList{
		ID:        idObj.String(),
		UserID:    userID,
		Title:     title.String(),
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create list: %w", err)
	}

	return list, nil
}

// ListLists returns the lists owned by userID.
func (s *Service) ListLists(ctx context.Context, userID string) ([]domain.TaskList, error) {
	if userID == "" {
		return nil, domain.ErrUserRequired
	}

	lists, err := s.repo.FindUserLists(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list lists: %w", err)
	}
	return lists, nil
}

// AssignTaskToList moves a task into listID, or out of any list when listID is nil.
func (s *Service) AssignTaskToList(ctx context.Context, userID, taskID string, listID *string) error {
	if userID == "" {
		return domain.ErrUserRequired
	}
	if err := validateID(taskID, domain.ErrTaskNotFound); err != nil {
		return err
	}
	if listID != nil {
		if err := validateID(*listID, domain.ErrListNotFound); err != nil {
			return err
		}
	}

	if err := s.repo.SetTaskList(ctx, userID, taskID, listID); err != nil {
		return err
	}

	s.cache.Invalidate(userID)
	s.notifier.Publish(ctx, domain.TaskEvent{
		Type:       domain.TaskEventListChanged,
		UserID:     userID,
		TaskID:     taskID,
		ListID:     listID,
		OccurredAt: s.now().UTC(),
	})
	return nil
}

func (s *Service) publish(ctx context.Context, eventType domain.TaskEventType, t *domain.Task) {
	snapshot := t.Clone()
	s.notifier.Publish(ctx, domain.TaskEvent{
		Type:       eventType,
		UserID:     t.UserID,
		TaskID:     t.ID,
		Task:       &snapshot,
		OccurredAt: s.now().UTC(),
	})
}

// validateID returns notFound for an empty id and domain.ErrInvalidID for
// anything that isn't a UUID.
func validateID(id string, notFound error) error {
	if id == "" {
		return notFound
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidID, err)
	}
	return nil
}
