package db

import (
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tableExists(t *testing.T, database *DB, name string) bool {
	t.Helper()
	var n int
	err := database.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&n)
	require.NoError(t, err)
	return n > 0
}

func TestOpenDB_AppliesPragmas(t *testing.T) {
	t.Parallel()
	database, err := OpenDB(filepath.Join(t.TempDir(), "pragmas.db"))
	require.NoError(t, err)
	defer database.Close()

	var journal string
	require.NoError(t, database.QueryRow("PRAGMA journal_mode").Scan(&journal))
	assert.Equal(t, "wal", journal)

	var fk int
	require.NoError(t, database.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)

	var busy int
	require.NoError(t, database.QueryRow("PRAGMA busy_timeout").Scan(&busy))
	assert.Equal(t, 5000, busy)
}

func TestOpen_MigratesToLatest(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "tidy.db")

	database, err := Open(path)
	require.NoError(t, err)

	latest, err := LatestMigrationVersion(MigrationsFS())
	require.NoError(t, err)
	assert.Equal(t, uint(2), latest)

	version, dirty, err := database.MigrateVersion(MigrationsFS())
	require.NoError(t, err)
	assert.Equal(t, latest, version)
	assert.False(t, dirty)

	for _, table := range []string{"tracks", "track_observations", "tracker_state", "analyses"} {
		assert.True(t, tableExists(t, database, table), "table %s", table)
	}
	require.NoError(t, database.Close())

	// Reopening an up-to-date database is a no-op.
	again, err := Open(path)
	require.NoError(t, err)
	defer again.Close()
	version, _, err = again.MigrateVersion(MigrationsFS())
	require.NoError(t, err)
	assert.Equal(t, latest, version)
}

func TestMigrateDown(t *testing.T) {
	t.Parallel()
	database, err := Open(filepath.Join(t.TempDir(), "down.db"))
	require.NoError(t, err)
	defer database.Close()

	require.NoError(t, database.MigrateDown(MigrationsFS()))

	version, _, err := database.MigrateVersion(MigrationsFS())
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, tableExists(t, database, "analyses"))
	assert.True(t, tableExists(t, database, "tracks"))
}

func TestMigrateUp_CustomFS(t *testing.T) {
	t.Parallel()
	database, err := OpenDB(filepath.Join(t.TempDir(), "custom.db"))
	require.NoError(t, err)
	defer database.Close()

	version, _, err := database.MigrateVersion(fstest.MapFS{
		"000001_init.up.sql": &fstest.MapFile{Data: []byte("CREATE TABLE t1 (id INTEGER PRIMARY KEY);")},
	})
	require.NoError(t, err)
	assert.Equal(t, uint(0), version, "fresh database has no version")

	migrations := fstest.MapFS{
		"000001_init.up.sql":   &fstest.MapFile{Data: []byte("CREATE TABLE t1 (id INTEGER PRIMARY KEY);")},
		"000001_init.down.sql": &fstest.MapFile{Data: []byte("DROP TABLE t1;")},
		"000002_bad.up.sql":    &fstest.MapFile{Data: []byte("THIS IS NOT SQL;")},
		"000002_bad.down.sql":  &fstest.MapFile{Data: []byte("SELECT 1;")},
	}
	err = database.MigrateUp(migrations)
	assert.Error(t, err)
	assert.True(t, tableExists(t, database, "t1"), "first migration applied before the failure")
}

func TestLatestMigrationVersion(t *testing.T) {
	t.Parallel()

	v, err := LatestMigrationVersion(fstest.MapFS{
		"000003_c.up.sql":   &fstest.MapFile{},
		"000010_j.up.sql":   &fstest.MapFile{},
		"000010_j.down.sql": &fstest.MapFile{},
		"README.md":         &fstest.MapFile{},
	})
	require.NoError(t, err)
	assert.Equal(t, uint(10), v)

	_, err = LatestMigrationVersion(fstest.MapFS{"README.md": &fstest.MapFile{}})
	assert.Error(t, err)
}
