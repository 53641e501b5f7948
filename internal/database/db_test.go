package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"ndta-news/pipeline/internal/database/migrations"
)

func TestNewDB_AppliesMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "pipeline.db")

	db, err := NewDB(NewConfig(path))
	require.NoError(t, err)
	defer db.Close()

	var tables []string
	require.NoError(t, db.Select(&tables, `SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name`))
	for _, want := range []string{"approved_content", "articles", "migrations", "reports", "scrape_runs", "sources", "transitions"} {
		require.Contains(t, tables, want)
	}

	// Reopening must not re-run applied migrations.
	require.NoError(t, db.Close())
	db, err = NewDB(NewConfig(path))
	require.NoError(t, err)
	defer db.Close()

	var applied int
	require.NoError(t, db.Get(&applied, `SELECT COUNT(*) FROM migrations`))
	require.Equal(t, 2, applied)
}

func TestMigrationsDown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.db")
	db, err := NewDB(NewConfig(path))
	require.NoError(t, err)
	defer db.Close()

	all, err := migrations.Load(migrations.Files, ".")
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "documents", all[0].Name)

	require.NoError(t, migrations.Down(context.Background(), db.DB.DB, all, 1))

	var n int
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'sources'`))
	require.Zero(t, n)
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'articles'`))
	require.Equal(t, 1, n)
}

func TestNewDB_ReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.db")
	rw, err := NewDB(NewConfig(path))
	require.NoError(t, err)
	require.NoError(t, rw.Close())

	cfg := NewConfig(path)
	cfg.ReadOnly = true
	ro, err := NewDB(cfg)
	require.NoError(t, err)
	defer ro.Close()

	_, err = ro.Exec(`DELETE FROM articles`)
	require.Error(t, err)
}
