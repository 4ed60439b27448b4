package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"golang.org/x/sync/errgroup"

	"github.com/rezkam/taskflow/internal/application/auth"
	"github.com/rezkam/taskflow/internal/application/task"
	"github.com/rezkam/taskflow/internal/config"
	"github.com/rezkam/taskflow/internal/infrastructure/cache"
	"github.com/rezkam/taskflow/internal/infrastructure/grpcserver"
	httpserver "github.com/rezkam/taskflow/internal/infrastructure/http"
	"github.com/rezkam/taskflow/internal/infrastructure/http/handler"
	"github.com/rezkam/taskflow/internal/infrastructure/observability"
	"github.com/rezkam/taskflow/internal/infrastructure/persistence/postgres"
	"github.com/rezkam/taskflow/internal/infrastructure/persistence/sqlite"
	"github.com/rezkam/taskflow/internal/infrastructure/realtime"
	"github.com/rezkam/taskflow/internal/infrastructure/snapshot"
	"github.com/rezkam/taskflow/internal/infrastructure/snapshot/fs"
	"github.com/rezkam/taskflow/internal/infrastructure/snapshot/gcs"
)

// DefaultShutdownTimeout bounds the whole graceful shutdown sequence.
const DefaultShutdownTimeout = 10 * time.Second

// store is what the server needs from a persistence backend.
type store interface {
	task.Repository
	Ping(ctx context.Context) error
	io.Closer
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Root context for normal operation; cancelled on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	providers, err := observability.Setup(ctx, observability.Config{
		Enabled:        cfg.Observability.OTelEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
	})
	if err != nil {
		return fmt.Errorf("failed to init observability: %w", err)
	}
	defer func() {
		// Collector may be unreachable
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "failed to shutdown observability providers", "error", err)
		}
	}()
	slog.SetDefault(providers.Logger)

	slog.InfoContext(ctx, "starting taskflow service", "driver", cfg.Database.Driver)

	db, err := openStore(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}

	authenticator, err := auth.NewAuthenticator(auth.Config{
		Secret:   []byte(cfg.Auth.Secret),
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
		TokenTTL: cfg.Auth.TokenTTL,
	})
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to create authenticator: %w", err)
	}

	taskCache := cache.NewUserTaskCache(cache.Config{TTL: cfg.Cache.TTL})
	hub := realtime.NewHub()
	svc := task.NewService(db, taskCache, hub, task.WithMeterProvider(providers.Meter))

	var (
		flusher      *snapshot.Flusher
		snapshotBase io.Closer
	)
	if cfg.Snapshot.Enabled() {
		snapStore, closer, err := openSnapshotStore(ctx, cfg.Snapshot)
		if err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to create snapshot store: %w", err)
		}
		snapshotBase = closer
		flusher = snapshot.NewFlusher(taskCache, snapStore,
			snapshot.WithFlushInterval(cfg.Snapshot.Interval),
			snapshot.WithOperationTimeout(cfg.Snapshot.OperationTimeout),
			snapshot.WithConcurrency(cfg.Snapshot.Concurrency),
		)

		// Finish before serving so no snapshot lands on top of a newer write.
		restored, err := flusher.Restore(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to restore cache snapshots, starting with a partial cache", "error", err)
		}
		slog.InfoContext(ctx, "Restored cache snapshots", "users", restored)
	}

	api := handler.NewTaskHandler(svc, hub, handler.WithAllowedOrigins(cfg.HTTP.AllowedOrigins))
	server := httpserver.NewAPIServer(api.Routes(), authenticator, httpserver.ServerConfig{
		Host:              cfg.HTTP.Host,
		Port:              cfg.HTTP.Port,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		MaxHeaderBytes:    cfg.HTTP.MaxHeaderBytes,
		MaxBodyBytes:      cfg.HTTP.MaxBodyBytes,
		AllowedOrigins:    cfg.HTTP.AllowedOrigins,
	})

	var (
		health    *grpcserver.HealthServer
		healthLis net.Listener
	)
	if cfg.GRPC.Enabled {
		health = grpcserver.NewHealthServer(db, grpcserver.Config{
			Host:                  cfg.GRPC.Host,
			Port:                  cfg.GRPC.Port,
			CheckInterval:         cfg.GRPC.CheckInterval,
			KeepaliveTime:         cfg.GRPC.KeepaliveTime,
			KeepaliveTimeout:      cfg.GRPC.KeepaliveTimeout,
			MaxConnectionIdle:     cfg.GRPC.MaxConnectionIdle,
			MaxConnectionAge:      cfg.GRPC.MaxConnectionAge,
			MaxConnectionAgeGrace: cfg.GRPC.MaxConnectionAgeGrace,
		})
		healthLis, err = health.Listen()
		if err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to listen for gRPC: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.InfoContext(gctx, "HTTP server listening", "address", server.Addr())
		if err := server.Start(); err != nil {
			return fmt.Errorf("failed to serve HTTP: %w", err)
		}
		return nil
	})

	if health != nil {
		g.Go(func() error {
			return health.Serve(healthLis)
		})
		g.Go(func() error {
			health.Watch(gctx)
			return nil
		})
	}

	if flusher != nil {
		g.Go(func() error {
			return flusher.Start(gctx)
		})
	}

	// Stop the servers once the group context ends, whether by signal or by failure
	g.Go(func() error {
		<-gctx.Done()
		slog.InfoContext(gctx, "shutting down")

		shutdownCtx, cancel := newShutdownContext(cfg.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.ErrorContext(shutdownCtx, "failed to shutdown HTTP server", "error", err)
		} else {
			slog.InfoContext(shutdownCtx, "HTTP server shutdown complete")
		}
		if health != nil {
			health.Shutdown(shutdownCtx)
		}
		return nil
	})

	runErr := g.Wait()

	// Flusher state must reach the snapshot store before its handles close
	shutdownCtx, shutdownCancel := newShutdownContext(cfg.ShutdownTimeout)
	defer shutdownCancel()
	var flusherShutdown shutdowner
	if flusher != nil {
		flusherShutdown = flusher
	}
	newCleanup(shutdownCtx, flusherShutdown, snapshotBase, db)()

	return runErr
}

// openStore opens the configured persistence backend.
func openStore(ctx context.Context, cfg config.DatabaseConfig) (store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		s, err := sqlite.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		slog.InfoContext(ctx, "storage initialized", "driver", cfg.Driver, "path", cfg.DSN)
		return s, nil
	default:
		s, err := postgres.Open(ctx, postgres.DBConfig{
			DSN:             cfg.DSN,
			MaxConns:        cfg.MaxConns,
			MinConns:        cfg.MinConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.ConnMaxIdleTime,
		})
		if err != nil {
			return nil, err
		}
		slog.InfoContext(ctx, "storage initialized", "driver", cfg.Driver, "url", maskPassword(cfg.DSN))
		return s, nil
	}
}

// openSnapshotStore opens the configured snapshot backend. The returned
// closer is nil when the backend holds no resources.
func openSnapshotStore(ctx context.Context, cfg config.SnapshotConfig) (snapshot.Store, io.Closer, error) {
	switch cfg.Backend {
	case config.SnapshotBackendGCS:
		s, err := gcs.NewStore(ctx, cfg.Bucket, cfg.Prefix)
		if err != nil {
			return nil, nil, err
		}
		slog.InfoContext(ctx, "snapshot store initialized", "backend", cfg.Backend, "bucket", cfg.Bucket)
		return s, s, nil
	default:
		s, err := fs.NewStore(cfg.Dir)
		if err != nil {
			return nil, nil, err
		}
		slog.InfoContext(ctx, "snapshot store initialized", "backend", cfg.Backend, "dir", cfg.Dir)
		return s, nil, nil
	}
}

// newShutdownContext creates a fresh context for graceful shutdown.
// The main context is already cancelled at shutdown time.
func newShutdownContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	return context.WithTimeout(context.Background(), timeout)
}

// maskPassword masks the password in a connection string for logging.
func maskPassword(connStr string) string {
	u, err := url.Parse(connStr)
	if err != nil {
		return "[REDACTED]"
	}
	if u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword(u.User.Username(), "xxxxxx")
		}
	}
	return u.String()
}
