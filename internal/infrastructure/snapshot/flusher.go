package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rezkam/taskflow/internal/infrastructure/cache"
)

// Defaults applied by NewFlusher.
const (
	DefaultFlushInterval    = 30 * time.Second
	DefaultOperationTimeout = 30 * time.Second
	DefaultConcurrency      = 20
)

// Flusher periodically writes changed cache entries to a Store and restores
// them on startup.
type Flusher struct {
	cache            *cache.UserTaskCache
	store            Store
	interval         time.Duration
	operationTimeout time.Duration
	concurrency      int
	now              func() time.Time
	mu               sync.Mutex // serializes flushes
	wg               sync.WaitGroup
}

// Option is a functional option for configuring Flusher.
type Option func(*Flusher)

// WithFlushInterval sets how often changed entries are written.
func WithFlushInterval(d time.Duration) Option {
	return func(f *Flusher) {
		f.interval = d
	}
}

// WithOperationTimeout bounds a single flush or restore pass.
func WithOperationTimeout(d time.Duration) Option {
	return func(f *Flusher) {
		f.operationTimeout = d
	}
}

// WithConcurrency limits parallel store operations.
func WithConcurrency(n int) Option {
	return func(f *Flusher) {
		f.concurrency = n
	}
}

// WithClock sets the time source stamped on snapshots.
func WithClock(now func() time.Time) Option {
	return func(f *Flusher) {
		f.now = now
	}
}

// NewFlusher creates a flusher for c backed by store.
func NewFlusher(c *cache.UserTaskCache, store Store, opts ...Option) *Flusher {
	f := &Flusher{
		cache:            c,
		store:            store,
		interval:         DefaultFlushInterval,
		operationTimeout: DefaultOperationTimeout,
		concurrency:      DefaultConcurrency,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.interval <= 0 {
		f.interval = DefaultFlushInterval
	}
	if f.operationTimeout <= 0 {
		f.operationTimeout = DefaultOperationTimeout
	}
	if f.concurrency <= 0 {
		f.concurrency = DefaultConcurrency
	}
	return f
}

// Start flushes on every tick until ctx is cancelled. Call Restore before
// the cache starts serving requests, and Shutdown afterwards for the final
// flush.
func (f *Flusher) Start(ctx context.Context) error {
	slog.InfoContext(ctx, "Snapshot flusher started", "interval", f.interval)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			f.wg.Go(func() {
				opCtx, cancel := context.WithTimeout(context.Background(), f.operationTimeout)
				defer cancel()
				if purged := f.cache.PurgeExpired(); purged > 0 {
					slog.DebugContext(opCtx, "Purged expired cache entries", "count", purged)
				}
				if err := f.FlushOnce(opCtx); err != nil {
					slog.ErrorContext(opCtx, "Error flushing snapshots", "error", err)
				}
			})
		case <-ctx.Done():
			slog.InfoContext(ctx, "Shutdown requested, waiting for in-flight flushes...")
			f.wg.Wait()
			slog.InfoContext(ctx, "Snapshot flusher stopped gracefully")
			return nil
		}
	}
}

// FlushOnce saves every user changed since the last flush and deletes the
// snapshots of users whose entry is gone. Users that fail are retried on
// the next flush.
func (f *Flusher) FlushOnce(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	users := f.cache.DrainDirty()
	if len(users) == 0 {
		return nil
	}

	var (
		errMu sync.Mutex
		errs  []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)

	for _, userID := range users {
		g.Go(func() error {
			err := f.flushUser(gctx, userID)
			if err != nil {
				f.cache.MarkDirty(userID)
				errMu.Lock()
				errs = append(errs, fmt.Errorf("user %s: %w", userID, err))
				errMu.Unlock()
			}
			// keep flushing other users
			return nil
		})
	}
	_ = g.Wait()

	slog.DebugContext(ctx, "Flushed cache snapshots",
		"users", len(users),
		"failed", len(errs))
	return errors.Join(errs...)
}

func (f *Flusher) flushUser(ctx context.Context, userID string) error {
	entry, ok := f.cache.Entry(userID)
	if !ok {
		return f.store.Delete(ctx, userID)
	}
	return f.store.Save(ctx, Snapshot{UserEntry: entry, SavedAt: f.now().UTC()})
}

// Restore loads every saved snapshot into the cache within the operation
// timeout and deletes the expired ones. Users whose cache state is newer than
// their snapshot keep it. It returns how many users were restored.
func (f *Flusher) Restore(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, f.operationTimeout)
	defer cancel()

	users, err := f.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list snapshots: %w", err)
	}

	var (
		mu       sync.Mutex
		restored int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)

	for _, userID := range users {
		g.Go(func() error {
			s, err := f.store.Load(gctx, userID)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					return nil
				}
				return fmt.Errorf("failed to load snapshot for %s: %w", userID, err)
			}

			switch err := f.cache.Restore(s.UserEntry); {
			case errors.Is(err, cache.ErrEntryExpired):
				if err := f.store.Delete(gctx, userID); err != nil {
					slog.WarnContext(gctx, "Failed to delete expired snapshot",
						"user_id", userID,
						"error", err)
				}
				return nil
			case errors.Is(err, cache.ErrEntrySuperseded):
				slog.DebugContext(gctx, "Skipped snapshot older than cached state", "user_id", userID)
				return nil
			case err != nil:
				return fmt.Errorf("failed to restore snapshot for %s: %w", userID, err)
			}

			mu.Lock()
			restored++
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return restored, err
	}
	return restored, nil
}

// Shutdown runs a final flush so changes since the last tick survive a restart.
func (f *Flusher) Shutdown(ctx context.Context) error {
	f.wg.Wait()
	if err := f.FlushOnce(ctx); err != nil {
		return fmt.Errorf("final snapshot flush failed: %w", err)
	}
	return nil
}
