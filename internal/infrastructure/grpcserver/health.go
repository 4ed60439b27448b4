// Package grpcserver runs the gRPC endpoint that reports service health.
package grpcserver

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

// ServiceName is the health service name reported alongside the overall ("") status.
const ServiceName = "taskflow.v1.TaskService"

// Default configuration values.
const (
	DefaultPort                  = "8080"
	DefaultCheckInterval         = 10 * time.Second
	DefaultCheckTimeout          = 2 * time.Second
	DefaultKeepaliveTime         = 5 * time.Minute
	DefaultKeepaliveTimeout      = 20 * time.Second
	DefaultMaxConnectionIdle     = 15 * time.Minute
	DefaultMaxConnectionAge      = 30 * time.Minute
	DefaultMaxConnectionAgeGrace = 5 * time.Second
	DefaultConnectionTimeout     = 2 * time.Minute
	DefaultEnforcementMinTime    = 5 * time.Second
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds gRPC server configuration.
type Config struct {
	Host                  string
	Port                  string
	CheckInterval         time.Duration
	KeepaliveTime         time.Duration
	KeepaliveTimeout      time.Duration
	MaxConnectionIdle     time.Duration
	MaxConnectionAge      time.Duration
	MaxConnectionAgeGrace time.Duration
	ConnectionTimeout     time.Duration
	EnforcementMinTime    time.Duration
	PermitWithoutStream   bool
}

func (c *Config) applyDefaults() {
	if c.Port == "" {
		c.Port = DefaultPort
	}
	setDefault := func(d *time.Duration, v time.Duration) {
		if *d <= 0 {
			*d = v
		}
	}
	setDefault(&c.CheckInterval, DefaultCheckInterval)
	setDefault(&c.KeepaliveTime, DefaultKeepaliveTime)
	setDefault(&c.KeepaliveTimeout, DefaultKeepaliveTimeout)
	setDefault(&c.MaxConnectionIdle, DefaultMaxConnectionIdle)
	setDefault(&c.MaxConnectionAge, DefaultMaxConnectionAge)
	setDefault(&c.MaxConnectionAgeGrace, DefaultMaxConnectionAgeGrace)
	setDefault(&c.ConnectionTimeout, DefaultConnectionTimeout)
	setDefault(&c.EnforcementMinTime, DefaultEnforcementMinTime)
}

// HealthServer serves grpc.health.v1.Health. Its status follows the pinger.
type HealthServer struct {
	server   *grpc.Server
	health   *health.Server
	pinger   Pinger
	interval time.Duration
	addr     string

	mu      sync.Mutex
	serving bool
}

// NewHealthServer creates the server. Status starts as NOT_SERVING until the
// first successful ping.
func NewHealthServer(pinger Pinger, cfg Config) *HealthServer {
	cfg.applyDefaults()

	server := grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle:     cfg.MaxConnectionIdle,
			MaxConnectionAge:      cfg.MaxConnectionAge,
			MaxConnectionAgeGrace: cfg.MaxConnectionAgeGrace,
			Time:                  cfg.KeepaliveTime,
			Timeout:               cfg.KeepaliveTimeout,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             cfg.EnforcementMinTime,
			PermitWithoutStream: cfg.PermitWithoutStream,
		}),
		grpc.ConnectionTimeout(cfg.ConnectionTimeout),
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
	)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(server, hs)

	return &HealthServer{
		server:   server,
		health:   hs,
		pinger:   pinger,
		interval: cfg.CheckInterval,
		addr:     net.JoinHostPort(cfg.Host, cfg.Port),
	}
}

// Addr returns the configured listen address.
func (s *HealthServer) Addr() string {
	return s.addr
}

// Listen opens the configured TCP address.
func (s *HealthServer) Listen() (net.Listener, error) {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}
	return lis, nil
}

// Serve blocks serving lis until Shutdown.
func (s *HealthServer) Serve(lis net.Listener) error {
	slog.Info("gRPC health server listening", "address", lis.Addr().String())
	if err := s.server.Serve(lis); err != nil {
		return fmt.Errorf("failed to serve gRPC: %w", err)
	}
	return nil
}

// Watch pings immediately and then every interval, updating the reported
// status, until ctx is cancelled.
func (s *HealthServer) Watch(ctx context.Context) {
	s.Check(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Check(ctx)
		}
	}
}

// Check pings once and updates the reported status.
func (s *HealthServer) Check(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, DefaultCheckTimeout)
	defer cancel()

	err := s.pinger.Ping(pingCtx)
	serving := err == nil

	s.mu.Lock()
	changed := serving != s.serving
	s.serving = serving
	s.mu.Unlock()

	if !changed {
		return
	}

	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
		slog.InfoContext(ctx, "health status changed", "status", status.String())
	} else {
		slog.WarnContext(ctx, "health status changed", "status", status.String(), "error", err)
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Shutdown marks every service NOT_SERVING and stops gracefully, forcing a
// stop when ctx expires first.
func (s *HealthServer) Shutdown(ctx context.Context) {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		slog.InfoContext(ctx, "gRPC server shutdown complete")
	case <-ctx.Done():
		slog.WarnContext(ctx, "gRPC server shutdown timed out, forcing stop")
		s.server.Stop()
	}
}
