package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/rezkam/taskflow/internal/env"
)

// ErrSecretRequired is returned when no JWT signing secret is configured.
var ErrSecretRequired = errors.New("TASKFLOW_AUTH_SECRET is required")

// AuthConfig holds token configuration shared by the server and token binaries.
type AuthConfig struct {
	Secret   string        `env:"TASKFLOW_AUTH_SECRET"`
	Issuer   string        `env:"TASKFLOW_AUTH_ISSUER"`
	Audience string        `env:"TASKFLOW_AUTH_AUDIENCE"`
	TokenTTL time.Duration `env:"TASKFLOW_AUTH_TOKEN_TTL"`
}

// Validate validates the auth configuration.
// Secret strength is checked by the authenticator.
func (c *AuthConfig) Validate() error {
	if c.Secret == "" {
		return ErrSecretRequired
	}
	return nil
}

// TokenConfig holds configuration for the token binary.
type TokenConfig struct {
	Auth AuthConfig
}

// LoadTokenConfig loads configuration for the token binary.
func LoadTokenConfig() (*TokenConfig, error) {
	cfg := &TokenConfig{}

	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to load token config: %w", err)
	}

	return cfg, nil
}
