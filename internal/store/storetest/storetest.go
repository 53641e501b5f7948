// Package storetest opens throwaway stores for tests.
package storetest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"ndta-news/pipeline/internal/database"
	"ndta-news/pipeline/internal/store"
)

// New returns a store backed by a fresh database in a temp dir.
func New(t testing.TB) *store.Store {
	t.Helper()
	db, err := database.NewDB(database.NewConfig(filepath.Join(t.TempDir(), "pipeline.db")))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return store.New(db)
}
