package sqlitemigrate

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "m.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestExtractUpMigration(t *testing.T) {
	content := "-- +migrate Up\nCREATE TABLE a (id INTEGER);\n-- +migrate Down\nDROP TABLE a;\n"
	assert.Equal(t, "\nCREATE TABLE a (id INTEGER);\n", ExtractUpMigration(content))
	assert.Equal(t, "CREATE TABLE b (id INTEGER);", ExtractUpMigration("CREATE TABLE b (id INTEGER);"))
	assert.Equal(t, "\nSELECT 1;", ExtractUpMigration("-- +migrate Up\nSELECT 1;"))
}

func TestApplyMigrationsOnce(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	fsys := fstest.MapFS{
		"sql/0002_add.sql":  {Data: []byte("-- +migrate Up\nALTER TABLE things ADD COLUMN label TEXT;\n")},
		"sql/0001_init.sql": {Data: []byte("-- +migrate Up\nCREATE TABLE things (id INTEGER PRIMARY KEY);\n-- +migrate Down\nDROP TABLE things;\n")},
		"sql/README.md":     {Data: []byte("ignored")},
	}

	require.NoError(t, ApplyMigrations(ctx, db, fsys, "sql"))
	require.NoError(t, ApplyMigrations(ctx, db, fsys, "sql"), "second run is a no-op")

	applied, err := Applied(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, []string{"sql/0001_init.sql", "sql/0002_add.sql"}, applied)

	_, err = db.ExecContext(ctx, "INSERT INTO things (id, label) VALUES (1, 'x')")
	assert.NoError(t, err)
}

func TestApplyMigrationsFailureRollsBack(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	fsys := fstest.MapFS{
		"0001_bad.sql": {Data: []byte("CREATE TABLE ok (id INTEGER);\nNOT VALID SQL;\n")},
	}

	assert.Error(t, ApplyMigrations(ctx, db, fsys, ""))

	applied, err := Applied(ctx, db)
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestApplyMigrationsRequiresDB(t *testing.T) {
	assert.Error(t, ApplyMigrations(context.Background(), nil, fstest.MapFS{}, ""))
}

func TestIsAlreadyExistsError(t *testing.T) {
	assert.False(t, IsAlreadyExistsError(assert.AnError))
	db := openDB(t)
	_, err := db.Exec("CREATE TABLE t (id INTEGER)")
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE t (id INTEGER)")
	require.Error(t, err)
	assert.True(t, IsAlreadyExistsError(err))
}
