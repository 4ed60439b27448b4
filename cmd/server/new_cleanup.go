package main

import (
	"context"
	"io"
	"log/slog"
)

// shutdowner abstracts the snapshot flusher so tests can verify cleanup
// ordering without real infrastructure.
type shutdowner interface {
	Shutdown(context.Context) error
}

// newCleanup builds the shutdown hook: final snapshot flush, then the
// snapshot backend, then the database. Nil arguments are skipped.
func newCleanup(ctx context.Context, flusher shutdowner, snapshots io.Closer, store io.Closer) func() {
	return func() {
		if flusher != nil {
			if err := flusher.Shutdown(ctx); err != nil {
				slog.ErrorContext(ctx, "failed to flush snapshots", slog.String("error", err.Error()))
			}
		}

		if snapshots != nil {
			if err := snapshots.Close(); err != nil {
				slog.ErrorContext(ctx, "failed to close snapshot store", slog.String("error", err.Error()))
			}
		}

		if store != nil {
			if err := store.Close(); err != nil {
				slog.ErrorContext(ctx, "failed to close store", slog.String("error", err.Error()))
			}
		}
	}
}
