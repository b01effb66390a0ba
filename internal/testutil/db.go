package testutil

import (
	"path/filepath"
	"testing"

	"github.com/courtsidehq/courtside/internal/db"
	"github.com/courtsidehq/courtside/internal/store"
)

// NewTestDB creates a temporary SQLite database with migrations applied.
func NewTestDB(t *testing.T) *db.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	database, err := db.New(dbPath)
	if err != nil {
		t.Fatalf("create test db: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	return database
}

// NewTestStore creates a SQLite-backed store on a temporary database.
func NewTestStore(t *testing.T) *store.SQLite {
	t.Helper()

	st, err := store.NewSQLite(NewTestDB(t))
	if err != nil {
		t.Fatalf("create test store: %v", err)
	}
	return st
}
