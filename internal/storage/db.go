// Package storage is the persistent data layer: three related entities
// (users, categories, transactions) plus a one-row session table, kept in an
// embedded SQLite file. Schema creation is lazy and idempotent, first-run
// seeding is deterministic, and successful writes are announced on the
// change-notification bus.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DB is the single shared handle to the SQLite file. It is opened once at
// startup and reused by every store for the process lifetime; the engine
// serializes writers internally. Concurrent multi-process access is not
// supported.
type DB struct {
	sql    *sql.DB
	schema *schemaManager
}

// Open creates the database directory if needed and opens the SQLite file.
// Foreign-key enforcement is off by default in SQLite and must be requested
// per connection, so it is carried in the DSN to cover every pooled
// connection.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{
		sql:    db,
		schema: newSchemaManager(db),
	}, nil
}

func (d *DB) Close() error {
	if d.sql != nil {
		return d.sql.Close()
	}
	return nil
}

// IsConstraintViolation reports whether err is a SQLite constraint failure,
// such as a unique-email collision or a foreign-key violation.
func IsConstraintViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}
