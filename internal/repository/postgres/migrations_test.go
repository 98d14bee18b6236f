package postgres

import (
	"io/fs"
	"strings"
	"testing"

	"portfolio-backend/internal/repository/postgres/migrations"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations(t *testing.T) {
	files, err := fs.Glob(migrations.Migrations, "*.sql")
	require.NoError(t, err)
	require.Equal(t, []string{"00001_create_messages.sql", "00002_create_admins.sql"}, files)

	for _, name := range files {
		body, err := fs.ReadFile(migrations.Migrations, name)
		require.NoError(t, err)
		assert.Contains(t, string(body), "-- +goose Up", name)
		assert.Contains(t, string(body), "-- +goose Down", name)
	}

	body, _ := fs.ReadFile(migrations.Migrations, files[0])
	assert.True(t, strings.Contains(string(body), "pg_notify('"+NotifyChannel+"'"))
	assert.Contains(t, string(body), "status IN ('new', 'read', 'replied')")
}
