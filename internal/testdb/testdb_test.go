package testdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldSkip(t *testing.T) {
	t.Setenv(EnvDatabaseURL, "")
	assert.True(t, ShouldSkip())

	t.Setenv(EnvDatabaseURL, "postgres://localhost/shannon_test")
	assert.False(t, ShouldSkip())
	assert.Equal(t, "postgres://localhost/shannon_test", DatabaseURL())
}

func TestOpenAndReset(t *testing.T) {
	db := Open(t)
	Reset(t, db)

	for _, table := range Tables {
		var n int
		require.NoError(t, db.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM "+table).Scan(&n))
		assert.Zero(t, n, table)
	}
}
