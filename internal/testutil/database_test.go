package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetMigrationsPath(t *testing.T) {
	t.Run("finds postgres migrations from package directory", func(t *testing.T) {
		path, err := getMigrationsPath("postgres")
		require.NoError(t, err)
		assert.Contains(t, path, "migrations/postgres")
	})

	t.Run("unknown database type fails", func(t *testing.T) {
		_, err := getMigrationsPath("oracle")
		assert.Error(t, err)
	})
}

func TestTestDSNDefaults(t *testing.T) {
	t.Setenv("TEST_POSTGRES_DSN", "")
	t.Setenv("TEST_MYSQL_DSN", "")

	assert.Contains(t, GetPostgresTestDSN(), "postgres://")
	assert.Contains(t, GetMySQLTestDSN(), "tcp(")

	t.Setenv("TEST_POSTGRES_DSN", "postgres://override")
	assert.Equal(t, "postgres://override", GetPostgresTestDSN())
}
