package cache

import (
	"errors"
	"maps"
	"sync"
	"time"

	"github.com/rezkam/taskflow/internal/application/task"
	"github.com/rezkam/taskflow/internal/domain"
)

// Restore refusals.
var (
	// ErrEntryExpired is returned by Restore for an entry past its expiry.
	ErrEntryExpired = errors.New("cache entry expired")

	// ErrEntrySuperseded is returned by Restore when the user was stored or
	// invalidated since the cache was created.
	ErrEntrySuperseded = errors.New("cache entry superseded")
)

// DefaultTTL is how long a synced task collection serves local filters.
const DefaultTTL = 5 * time.Minute

// Config holds configuration for UserTaskCache.
type Config struct {
	TTL time.Duration // lifetime of a synced collection; zero uses DefaultTTL
}

// UserEntry is one user's cached state, as exported for snapshots.
type UserEntry struct {
	UserID    string            `json:"user_id"`
	Tasks     []domain.Task     `json:"tasks"`
	Relations map[string]string `json:"relations,omitempty"` // nil when not cached
	ExpiresAt time.Time         `json:"expires_at"`
}

// UserTaskCache holds per-user task collections and list memberships.
// Every read and write copies, so callers never share memory with the cache.
//
// It records which users changed since the last DrainDirty so that a
// snapshot flusher only persists what moved, and a per-user generation that
// Invalidate advances so that stores of data read before a write are refused.
type UserTaskCache struct {
	ttl       time.Duration
	now       func() time.Time
	tasks     *TTLCache[string, []domain.Task]
	relations *TTLCache[string, map[string]string]

	// mu orders stores, invalidations and restores per user
	mu          sync.Mutex
	generations map[string]uint64
	dirty       map[string]struct{}
}

var _ task.Cache = (*UserTaskCache)(nil)

// Option is a functional option for configuring UserTaskCache.
type Option func(*UserTaskCache)

// WithClock sets the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(c *UserTaskCache) {
		c.now = now
	}
}

// NewUserTaskCache creates an empty cache.
func NewUserTaskCache(cfg Config, opts ...Option) *UserTaskCache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}

	c := &UserTaskCache{
		ttl:         cfg.TTL,
		now:         time.Now,
		generations: make(map[string]uint64),
		dirty:       make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.tasks = NewTTLCache[string, []domain.Task](c.now)
	c.relations = NewTTLCache[string, map[string]string](c.now)
	return c
}

// Tasks returns a copy of the user's cached collection.
func (c *UserTaskCache) Tasks(userID string) ([]domain.Task, bool) {
	tasks, ok := c.tasks.Get(userID)
	if !ok {
		return nil, false
	}
	return domain.CloneTasks(tasks), true
}

// Generation returns the user's invalidation generation.
func (c *UserTaskCache) Generation(userID string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[userID]
}

// StoreTasks caches a copy of tasks for the configured TTL unless the user
// was invalidated after generation gen.
func (c *UserTaskCache) StoreTasks(userID string, gen uint64, tasks []domain.Task) bool {
	stored := domain.CloneTasks(tasks)
	if stored == nil {
		stored = []domain.Task{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[userID] != gen {
		return false
	}
	c.tasks.Set(userID, stored, c.ttl)
	c.dirty[userID] = struct{}{}
	return true
}

// Relations returns a copy of the user's cached task-to-list index.
func (c *UserTaskCache) Relations(userID string) (map[string]string, bool) {
	m, ok := c.relations.Get(userID)
	if !ok {
		return nil, false
	}
	return maps.Clone(m), true
}

// StoreRelations caches a copy of the task-to-list index unless the user
// was invalidated after generation gen.
func (c *UserTaskCache) StoreRelations(userID string, gen uint64, memberships map[string]string) bool {
	stored := maps.Clone(memberships)
	if stored == nil {
		stored = map[string]string{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[userID] != gen {
		return false
	}
	c.relations.Set(userID, stored, c.ttl)
	c.dirty[userID] = struct{}{}
	return true
}

// Invalidate drops everything cached for the user and advances its generation.
func (c *UserTaskCache) Invalidate(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks.Delete(userID)
	c.relations.Delete(userID)
	c.generations[userID]++
	c.dirty[userID] = struct{}{}
}

// Users returns the users with a live task collection.
func (c *UserTaskCache) Users() []string {
	return c.tasks.Keys()
}

// Entry exports the user's cached state. ok is false when no task
// collection is cached.
func (c *UserTaskCache) Entry(userID string) (UserEntry, bool) {
	tasks, ok := c.tasks.Get(userID)
	if !ok {
		return UserEntry{}, false
	}
	expiresAt, _ := c.tasks.Expiry(userID)

	e := UserEntry{
		UserID:    userID,
		Tasks:     domain.CloneTasks(tasks),
		ExpiresAt: expiresAt,
	}
	if m, ok := c.relations.Get(userID); ok {
		e.Relations = maps.Clone(m)
	}
	return e, true
}

// Restore loads a previously exported entry, keeping its original expiry.
// It returns ErrEntryExpired for an expired entry and ErrEntrySuperseded when
// the user has been stored or invalidated since the cache was created, so a
// snapshot never replaces newer state.
func (c *UserTaskCache) Restore(e UserEntry) error {
	if !e.ExpiresAt.IsZero() && !e.ExpiresAt.After(c.now()) {
		return ErrEntryExpired
	}

	tasks := domain.CloneTasks(e.Tasks)
	if tasks == nil {
		tasks = []domain.Task{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, touched := c.generations[e.UserID]; touched {
		return ErrEntrySuperseded
	}
	if _, ok := c.tasks.Get(e.UserID); ok {
		return ErrEntrySuperseded
	}
	c.tasks.SetUntil(e.UserID, tasks, e.ExpiresAt)
	if e.Relations != nil {
		c.relations.SetUntil(e.UserID, maps.Clone(e.Relations), e.ExpiresAt)
	}
	return nil
}

// DrainDirty returns the users changed since the previous call and resets
// the set.
func (c *UserTaskCache) DrainDirty() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	users := make([]string, 0, len(c.dirty))
	for userID := range c.dirty {
		users = append(users, userID)
	}
	clear(c.dirty)
	return users
}

// PurgeExpired removes expired collections and returns how many were removed.
func (c *UserTaskCache) PurgeExpired() int {
	c.relations.PurgeExpired()
	return c.tasks.PurgeExpired()
}

// MarkDirty queues the user for the next DrainDirty.
func (c *UserTaskCache) MarkDirty(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dirty[userID] = struct{}{}
}
