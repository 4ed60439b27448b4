package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rezkam/taskflow/internal/application/task"
	"github.com/rezkam/taskflow/internal/infrastructure/persistence/compliance"
	"github.com/rezkam/taskflow/internal/infrastructure/persistence/postgres"
)

func TestPostgresStore_Compliance(t *testing.T) {
	pgURL := os.Getenv("TEST_POSTGRES_URL")
	if pgURL == "" {
		t.Skip("TEST_POSTGRES_URL not set, skipping PostgreSQL tests")
	}

	store, err := postgres.Open(context.Background(), postgres.DBConfig{DSN: pgURL, MaxConns: 5})
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})

	compliance.RunRepositoryComplianceTest(t, func(t *testing.T) task.Repository {
		return store
	})
}
