package storage

import (
	"carteira/internal/events"
)

// Options tunes store construction.
type Options struct {
	// SeedDemoData enables first-run seeding of the demo account, the
	// sample categories and the sample transactions.
	SeedDemoData bool
}

// Stores bundles the data layer around one shared database handle and one
// notification bus.
type Stores struct {
	Users        *UserStore
	Categories   *CategoryStore
	Transactions *TransactionStore
	Session      *SessionStore
}

func NewStores(db *DB, bus *events.Bus, opts Options) *Stores {
	users := NewUserStore(db, opts.SeedDemoData)
	categories := NewCategoryStore(db, bus)
	session := NewSessionStore(db)
	transactions := NewTransactionStore(db, bus, session, users, categories, opts.SeedDemoData)

	return &Stores{
		Users:        users,
		Categories:   categories,
		Transactions: transactions,
		Session:      session,
	}
}
