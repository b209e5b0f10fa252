// Package testkit holds helpers shared by package tests.
package testkit

import (
	"database/sql"
	"testing"
	"time"

	"panelkit/internal/db"
	"panelkit/internal/migrate"
	"panelkit/internal/orm"
)

// OpenDB opens a migrated SQLite database inside t.TempDir.
func OpenDB(t testing.TB) *sql.DB {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

// Store returns a store over a fresh database whose clock advances one
// second per write, so created_at ordering is deterministic.
func Store(t testing.TB) *orm.Store {
	t.Helper()
	store := orm.NewStore(OpenDB(t))
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.Now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return store
}
