package config

import (
	"errors"
	"fmt"
	"time"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Snapshot backends.
const (
	SnapshotBackendNone = ""
	SnapshotBackendFS   = "fs"
	SnapshotBackendGCS  = "gcs"
)

var (
	// ErrDSNRequired is returned when the database DSN is not configured.
	ErrDSNRequired = errors.New("TASKFLOW_DB_DSN is required")

	// ErrUnknownDriver is returned for an unsupported TASKFLOW_DB_DRIVER.
	ErrUnknownDriver = errors.New("unknown TASKFLOW_DB_DRIVER")

	// ErrUnknownSnapshotBackend is returned for an unsupported TASKFLOW_SNAPSHOT_BACKEND.
	ErrUnknownSnapshotBackend = errors.New("unknown TASKFLOW_SNAPSHOT_BACKEND")

	// ErrSnapshotLocationRequired is returned when the chosen backend has no location.
	ErrSnapshotLocationRequired = errors.New("snapshot location is required")
)

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	// Driver is "postgres" (default) or "sqlite".
	Driver string `env:"TASKFLOW_DB_DRIVER"`

	// DSN is a PostgreSQL connection string or an SQLite file path.
	DSN string `env:"TASKFLOW_DB_DSN"`

	// PostgreSQL pool settings (zero = use infrastructure defaults)
	MaxConns        int           `env:"TASKFLOW_DB_MAX_CONNS"`
	MinConns        int           `env:"TASKFLOW_DB_MIN_CONNS"`
	ConnMaxLifetime time.Duration `env:"TASKFLOW_DB_CONN_MAX_LIFETIME"`
	ConnMaxIdleTime time.Duration `env:"TASKFLOW_DB_CONN_MAX_IDLE_TIME"`
}

// Validate validates the database configuration.
func (c *DatabaseConfig) Validate() error {
	if c.Driver == "" {
		c.Driver = DriverPostgres
	}
	switch c.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("%w: %s", ErrUnknownDriver, c.Driver)
	}
	if c.DSN == "" {
		return ErrDSNRequired
	}
	return nil
}

// SnapshotConfig holds cache snapshot persistence configuration.
// An empty Backend disables snapshots.
type SnapshotConfig struct {
	Backend          string        `env:"TASKFLOW_SNAPSHOT_BACKEND"`
	Dir              string        `env:"TASKFLOW_SNAPSHOT_DIR"`
	Bucket           string        `env:"TASKFLOW_SNAPSHOT_BUCKET"`
	Prefix           string        `env:"TASKFLOW_SNAPSHOT_PREFIX"`
	Interval         time.Duration `env:"TASKFLOW_SNAPSHOT_INTERVAL"`
	OperationTimeout time.Duration `env:"TASKFLOW_SNAPSHOT_OPERATION_TIMEOUT"`
	Concurrency      int           `env:"TASKFLOW_SNAPSHOT_CONCURRENCY"`
}

// Validate validates the snapshot configuration.
func (c *SnapshotConfig) Validate() error {
	switch c.Backend {
	case SnapshotBackendNone:
	case SnapshotBackendFS:
		if c.Dir == "" {
			return fmt.Errorf("%w: TASKFLOW_SNAPSHOT_DIR", ErrSnapshotLocationRequired)
		}
	case SnapshotBackendGCS:
		if c.Bucket == "" {
			return fmt.Errorf("%w: TASKFLOW_SNAPSHOT_BUCKET", ErrSnapshotLocationRequired)
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownSnapshotBackend, c.Backend)
	}
	return nil
}

// Enabled reports whether a snapshot backend is configured.
func (c SnapshotConfig) Enabled() bool {
	return c.Backend != SnapshotBackendNone
}
