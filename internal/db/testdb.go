package db

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/google/uuid"
)

// NewTestDB creates a fresh in-memory SQLite database with all migrations applied.
// Each call gets its own named shared-cache database so pooled connections
// see the same data.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}

	if err := Migrate(context.Background(), db); err != nil {
		db.Close()
		t.Fatalf("migrating test database: %v", err)
	}

	t.Cleanup(func() { db.Close() })

	return db
}
