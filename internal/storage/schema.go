package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
)

const (
	tableUsers        = "users"
	tableCategories   = "categories"
	tableTransactions = "transactions"
	tableSession      = "session"
)

// createTableSQL holds the full-constraint DDL for each table. Deleting a
// user cascades to everything it owns; deleting a category is restricted
// while transactions reference it.
var createTableSQL = map[string]string{
	tableUsers: `CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY NOT NULL,
		name TEXT,
		email TEXT UNIQUE,
		password TEXT
	)`,
	tableCategories: `CREATE TABLE IF NOT EXISTS categories (
		id TEXT PRIMARY KEY NOT NULL,
		name TEXT NOT NULL,
		user_id TEXT NOT NULL,
		FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
	)`,
	tableTransactions: `CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY NOT NULL,
		title TEXT,
		amount REAL,
		type TEXT,
		date TEXT,
		category_id TEXT,
		notes TEXT,
		user_id TEXT,
		FOREIGN KEY(category_id) REFERENCES categories(id) ON DELETE RESTRICT,
		FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
	)`,
	tableSession: `CREATE TABLE IF NOT EXISTS session (
		key TEXT PRIMARY KEY NOT NULL,
		value TEXT
	)`,
}

// tableDeps lists the foreign-key targets that must exist before a table is
// created. A failure here is fatal for the operation: proceeding would leave
// a dangling foreign key.
var tableDeps = map[string][]string{
	tableCategories:   {tableUsers},
	tableTransactions: {tableUsers, tableCategories},
}

type columnSpec struct {
	name string
	ddl  string
}

// additiveColumns are columns that joined the transactions schema after its
// first released revision. An older on-disk table is detected by inspecting
// live column metadata and patched with additive ALTERs that keep existing
// rows intact.
var additiveColumns = map[string][]columnSpec{
	tableTransactions: {
		{name: "type", ddl: "ALTER TABLE transactions ADD COLUMN type TEXT"},
		{name: "notes", ddl: "ALTER TABLE transactions ADD COLUMN notes TEXT"},
		{name: "category_id", ddl: "ALTER TABLE transactions ADD COLUMN category_id TEXT REFERENCES categories(id) ON DELETE RESTRICT"},
		{name: "user_id", ddl: "ALTER TABLE transactions ADD COLUMN user_id TEXT REFERENCES users(id) ON DELETE CASCADE"},
	},
}

// schemaManager performs lazy, idempotent schema creation and additive
// migration. ensure is safe to call before every store operation and does
// the actual work once per table per process lifetime.
type schemaManager struct {
	db   *sql.DB
	mu   sync.Mutex
	done map[string]bool
}

func newSchemaManager(db *sql.DB) *schemaManager {
	return &schemaManager{db: db, done: make(map[string]bool)}
}

func (m *schemaManager) ensure(ctx context.Context, table string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ensureLocked(ctx, table)
}

func (m *schemaManager) ensureLocked(ctx context.Context, table string) error {
	if m.done[table] {
		return nil
	}

	for _, dep := range tableDeps[table] {
		if err := m.ensureLocked(ctx, dep); err != nil {
			return fmt.Errorf("ensure foreign-key target %s: %w", dep, err)
		}
	}

	ddl, ok := createTableSQL[table]
	if !ok {
		return fmt.Errorf("unknown table %q", table)
	}
	if _, err := m.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}

	// Additive column failures are non-fatal: the table is usable without
	// them and the next startup retries.
	if err := m.backfillColumns(ctx, table); err != nil {
		slog.WarnContext(ctx, "Schema migration check failed", "table", table, "error", err)
	}

	m.done[table] = true
	return nil
}

func (m *schemaManager) backfillColumns(ctx context.Context, table string) error {
	specs := additiveColumns[table]
	if len(specs) == 0 {
		return nil
	}

	existing, err := m.columns(ctx, table)
	if err != nil {
		return fmt.Errorf("inspect columns: %w", err)
	}

	for _, spec := range specs {
		if existing[spec.name] {
			continue
		}
		if _, err := m.db.ExecContext(ctx, spec.ddl); err != nil {
			slog.WarnContext(ctx, "Additive column migration failed",
				"table", table, "column", spec.name, "error", err)
			continue
		}
		slog.InfoContext(ctx, "Added missing column", "table", table, "column", spec.name)
	}
	return nil
}

// columns returns the live column set of a table via PRAGMA table_info.
func (m *schemaManager) columns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := m.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("pragma table_info: %w", err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notnull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan table_info row: %w", err)
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// tableExists asks the catalog directly whether a table has been created
// yet, instead of inferring it from driver error strings.
func (m *schemaManager) tableExists(ctx context.Context, table string) (bool, error) {
	var n int
	err := m.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query sqlite_master: %w", err)
	}
	return n > 0, nil
}
