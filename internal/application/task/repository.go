package task

import (
	"context"

	"github.com/rezkam/taskflow/internal/domain"
)

// Repository defines storage operations for tasks, lists and list membership.
// All create/update operations return the entity as persisted, including version.
// Every read and write is scoped to the owning user; another user's records
// behave as if they did not exist.
type Repository interface {
	// === Task Operations ===

	// CreateTask persists a new task.
	// Returns the created task with version populated by persistence layer.
	CreateTask(ctx context.Context, task *domain.Task) (*domain.Task, error)

	// FindTaskByID retrieves a single task, soft-deleted or not.
	// Returns domain.ErrTaskNotFound if the task doesn't exist for the user.
	FindTaskByID(ctx context.Context, userID, id string) (*domain.Task, error)

	// UpdateTask updates a task using field mask and optional etag.
	// Only updates fields specified in UpdateMask (priority_score included).
	// Returns the updated task with new version.
	// Returns domain.ErrTaskNotFound if the task doesn't exist for the user.
	// Returns domain.ErrVersionConflict if etag is provided and doesn't match current version.
	UpdateTask(ctx context.Context, params domain.UpdateTaskParams) (*domain.Task, error)

	// FindUserTasks returns every task of the user, soft-deleted included,
	// newest first (created_at DESC, id DESC).
	FindUserTasks(ctx context.Context, userID string) ([]domain.Task, error)

	// QueryTasks returns the user's non-deleted tasks matching filter, in the
	// same order as FindUserTasks. It must select exactly the tasks that
	// domain.FilterTasks selects from FindUserTasks and FindTaskListRelations.
	QueryTasks(ctx context.Context, userID string, filter domain.TaskFilter) ([]domain.Task, error)

	// HardDeleteTask permanently removes a task and its list membership.
	// Returns domain.ErrTaskNotFound if the task doesn't exist for the user.
	HardDeleteTask(ctx context.Context, userID, id string) error

	// === List Operations ===

	// CreateList persists a new list.
	CreateList(ctx context.Context, list *domain.TaskList) (*domain.TaskList, error)

	// FindUserLists returns the user's lists, newest first.
	FindUserLists(ctx context.Context, userID string) ([]domain.TaskList, error)

	// SetTaskList assigns a task to a list, replacing any previous membership.
	// A nil listID removes the task from its list.
	// Returns domain.ErrTaskNotFound or domain.ErrListNotFound when either
	// side doesn't exist for the user.
	SetTaskList(ctx context.Context, userID, taskID string, listID *string) error

	// FindTaskListRelations returns the list memberships of the user's tasks.
	FindTaskListRelations(ctx context.Context, userID string) ([]domain.TaskListRelation, error)

	// Atomic executes fn within a transaction.
	// All operations inside the callback succeed together or fail together.
	Atomic(ctx context.Context, fn func(repo Repository) error) error
}

// Cache holds per-user task collections for the in-memory filter path.
// Implementations must be safe for concurrent use and must return copies
// that callers may keep.
//
// Every Invalidate advances the user's generation. Data read from the
// repository is stored against the generation observed before the read, and
// the store is refused when an invalidation happened in between, so a write
// racing a sync can never be overwritten by the older read.
type Cache interface {
	Tasks(userID string) ([]domain.Task, bool)
	Relations(userID string) (map[string]string, bool)

	// Generation returns the user's current invalidation generation.
	Generation(userID string) uint64

	// StoreTasks caches tasks read at generation gen. It reports false and
	// stores nothing when the user has been invalidated since.
	StoreTasks(userID string, gen uint64, tasks []domain.Task) bool

	// StoreRelations caches the task-to-list index read at generation gen,
	// with the same rule as StoreTasks.
	StoreRelations(userID string, gen uint64, memberships map[string]string) bool

	Invalidate(userID string)
}

// Notifier publishes task changes to interested subscribers.
type Notifier interface {
	Publish(ctx context.Context, event domain.TaskEvent)
}

type noopCache struct{}

func (noopCache) Tasks(string) ([]domain.Task, bool) { return nil, false }
func (noopCache) Relations(string) (map[string]string, bool) { return nil, false }
func (noopCache) Generation(string) uint64 { return 0 }
func (noopCache) StoreTasks(string, uint64, []domain.Task) bool { return false }
func (noopCache) StoreRelations(string, uint64, map[string]string) bool { return false }
func (noopCache) Invalidate(string) {}

type noopNotifier struct{}

func (noopNotifier) Publish(context.Context, domain.TaskEvent) {}
