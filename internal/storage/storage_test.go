package storage

import (
	"context"
	"path/filepath"
	"testing"

	"carteira/internal/core"
	"carteira/internal/events"
)

// newTestDB opens a fresh database file under the test's temp directory.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "carteira.db"))
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// newTestStores wires stores onto a fresh database without demo seeding, so
// tests control their own data.
func newTestStores(t *testing.T) (*Stores, *events.Bus, *DB) {
	t.Helper()
	db := newTestDB(t)
	bus := events.NewBus()
	return NewStores(db, bus, Options{SeedDemoData: false}), bus, db
}

// mustCreateUser registers a user or fails the test.
func mustCreateUser(t *testing.T, s *Stores, id, name, email string) {
	t.Helper()
	if err := s.Users.CreateUser(context.Background(), id, name, email, "secret"); err != nil {
		t.Fatalf("create user %s: %v", id, err)
	}
}

// mustCreateCategory creates a category or fails the test.
func mustCreateCategory(t *testing.T, s *Stores, id, name, userID string) {
	t.Helper()
	c := core.Category{ID: id, Name: name, UserID: userID}
	if err := s.Categories.CreateCategory(context.Background(), c); err != nil {
		t.Fatalf("create category %s: %v", id, err)
	}
}
