package migrations

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Simplici0/haulrate/internal/db"
)

func TestMigratorUp(t *testing.T) {
	database, err := db.Open(filepath.Join(t.TempDir(), "migrate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	m := New("../../migrations", zap.NewNop())

	version, err := m.Up(database)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)

	// Re-running is a no-op.
	again, err := m.Up(database)
	require.NoError(t, err)
	assert.Equal(t, version, again)

	for _, table := range []string{"materials", "fee_templates"} {
		var name string
		err := database.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, table)
	}
}

func TestMigratorUp_MissingDir(t *testing.T) {
	database, err := db.Open(filepath.Join(t.TempDir(), "missing.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	_, err = New(filepath.Join(t.TempDir(), "nope"), nil).Up(database)
	require.Error(t, err)
}
