// Package testing provides testing utilities and helpers for the ledgerbridge project.
package testing

import (
	"path/filepath"
	"testing"

	"github.com/aristath/ledgerbridge/internal/store"
	"github.com/rs/zerolog"
)

// NewTestStore returns a SQLiteStore rooted in a fresh temporary directory.
// The directory is removed when the test ends.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	return store.NewSQLiteStore(filepath.Join(t.TempDir(), "stores"), zerolog.Nop())
}
