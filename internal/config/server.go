// Package config loads binary configuration from TASKFLOW_* environment
// variables. Zero values mean "use the consuming package's default".
package config

import (
	"fmt"
	"time"

	"github.com/rezkam/taskflow/internal/env"
)

// ServerConfig holds all configuration for the server binary.
type ServerConfig struct {
	Database        DatabaseConfig
	HTTP            HTTPConfig
	GRPC            GRPCConfig
	Auth            AuthConfig
	Cache           CacheConfig
	Snapshot        SnapshotConfig
	Observability   ObservabilityConfig
	ShutdownTimeout time.Duration `env:"TASKFLOW_SHUTDOWN_TIMEOUT"`
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Host              string        `env:"TASKFLOW_HTTP_HOST"`
	Port              string        `env:"TASKFLOW_HTTP_PORT"`
	ReadTimeout       time.Duration `env:"TASKFLOW_HTTP_READ_TIMEOUT"`
	WriteTimeout      time.Duration `env:"TASKFLOW_HTTP_WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `env:"TASKFLOW_HTTP_IDLE_TIMEOUT"`
	ReadHeaderTimeout time.Duration `env:"TASKFLOW_HTTP_READ_HEADER_TIMEOUT"`
	MaxHeaderBytes    int           `env:"TASKFLOW_HTTP_MAX_HEADER_BYTES"`
	MaxBodyBytes      int64         `env:"TASKFLOW_HTTP_MAX_BODY_BYTES"`
	AllowedOrigins    []string      `env:"TASKFLOW_HTTP_ALLOWED_ORIGINS"`
}

// GRPCConfig holds configuration for the gRPC health endpoint.
type GRPCConfig struct {
	Enabled               bool          `env:"TASKFLOW_GRPC_ENABLED"`
	Host                  string        `env:"TASKFLOW_GRPC_HOST"`
	Port                  string        `env:"TASKFLOW_GRPC_PORT"`
	CheckInterval         time.Duration `env:"TASKFLOW_GRPC_HEALTH_CHECK_INTERVAL"`
	KeepaliveTime         time.Duration `env:"TASKFLOW_GRPC_KEEPALIVE_TIME"`
	KeepaliveTimeout      time.Duration `env:"TASKFLOW_GRPC_KEEPALIVE_TIMEOUT"`
	MaxConnectionIdle     time.Duration `env:"TASKFLOW_GRPC_MAX_CONNECTION_IDLE"`
	MaxConnectionAge      time.Duration `env:"TASKFLOW_GRPC_MAX_CONNECTION_AGE"`
	MaxConnectionAgeGrace time.Duration `env:"TASKFLOW_GRPC_MAX_CONNECTION_AGE_GRACE"`
}

// CacheConfig holds the per-user task cache configuration.
type CacheConfig struct {
	TTL time.Duration `env:"TASKFLOW_CACHE_TTL"`
}

// ObservabilityConfig holds observability configuration.
type ObservabilityConfig struct {
	OTelEnabled    bool   `env:"TASKFLOW_OTEL_ENABLED"`
	ServiceName    string `env:"OTEL_SERVICE_NAME"`
	ServiceVersion string `env:"TASKFLOW_VERSION"`
}

// LoadServerConfig loads and validates server configuration from environment.
func LoadServerConfig() (*ServerConfig, error) {
	cfg := &ServerConfig{}

	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to load server config: %w", err)
	}

	return cfg, nil
}
