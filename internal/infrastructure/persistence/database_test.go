package persistence

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/docgen/backend/internal/infrastructure/config"
)

func TestNewDatabase_SQLite(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "docgen.db"),
		LogLevel:   "silent",
	}

	db, err := NewDatabase(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Ping())
	require.NoError(t, db.AutoMigrate())

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.MaxOpenConnections)

	for _, table := range []string{"templates", "artifacts", "quota_records", "quota_reservations"} {
		assert.True(t, db.DB.Migrator().HasTable(table), table)
	}
}

func TestNewDatabase_UnknownDriver(t *testing.T) {
	_, err := NewDatabase(&config.DatabaseConfig{Driver: "oracle"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestDatabase_Close(t *testing.T) {
	db, err := NewDatabase(&config.DatabaseConfig{Driver: "sqlite", SQLitePath: ":memory:"}, nil)
	require.NoError(t, err)
	require.NoError(t, db.Close())
	assert.Error(t, db.Ping())
}
