package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"carteira/internal/core"
	"carteira/internal/events"
)

// dateLayout is the stored ISO-8601 form. Fixed-width UTC strings keep
// lexicographic and chronological order identical, which the date DESC
// queries rely on.
const dateLayout = "2006-01-02T15:04:05.000Z07:00"

// TransactionStore owns financial entries scoped per user and per category.
// When no user id is supplied the acting user is resolved from the session.
type TransactionStore struct {
	db         *DB
	bus        *events.Bus
	session    *SessionStore
	users      *UserStore
	categories *CategoryStore

	seedDemo bool
	seed     sync.Once
	mu       sync.Mutex // serializes reassign against the delete guard
}

func NewTransactionStore(db *DB, bus *events.Bus, session *SessionStore, users *UserStore, categories *CategoryStore, seedDemo bool) *TransactionStore {
	return &TransactionStore{
		db:         db,
		bus:        bus,
		session:    session,
		users:      users,
		categories: categories,
		seedDemo:   seedDemo,
	}
}

func (s *TransactionStore) ensure(ctx context.Context) error {
	if err := s.db.schema.ensure(ctx, tableTransactions); err != nil {
		return err
	}
	if s.seedDemo {
		s.seed.Do(func() { s.seedSampleData(ctx) })
	}
	return nil
}

// resolveUser picks the acting user: the explicit argument when given,
// otherwise the session user.
func (s *TransactionStore) resolveUser(ctx context.Context, userID string) (string, error) {
	if userID != "" {
		return userID, nil
	}
	current, err := s.session.CurrentUserID(ctx)
	if err != nil {
		return "", err
	}
	if current == "" {
		return "", core.ErrNoSessionUser
	}
	return current, nil
}

// GetTransactions returns the user's transactions ordered by date
// descending. An empty userID resolves the current session user.
func (s *TransactionStore) GetTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, err
	}

	uid, err := s.resolveUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	return s.queryTransactions(ctx, `
		SELECT id, title, amount, type, date, category_id, notes, user_id
		FROM transactions WHERE user_id = ? ORDER BY date DESC`, uid)
}

// AllTransactions returns every transaction regardless of owner.
//
// Deprecated: this is the legacy no-scope read kept for compatibility with
// data written before transactions carried a user id. New callers should use
// GetTransactions.
func (s *TransactionStore) AllTransactions(ctx context.Context) ([]core.Transaction, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, err
	}
	return s.queryTransactions(ctx, `
		SELECT id, title, amount, type, date, category_id, notes, user_id
		FROM transactions ORDER BY date DESC`)
}

// GetTransactionsByCategory returns the user's transactions referencing one
// category, newest first. It backs the "used by" inspection a caller runs
// before attempting to delete a category.
func (s *TransactionStore) GetTransactionsByCategory(ctx context.Context, userID, categoryID string) ([]core.Transaction, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, err
	}
	return s.queryTransactions(ctx, `
		SELECT id, title, amount, type, date, category_id, notes, user_id
		FROM transactions WHERE user_id = ? AND category_id = ? ORDER BY date DESC`,
		userID, categoryID)
}

// AddTransaction persists a new entry and announces the change. Missing
// pieces are filled in: a fresh id, the session user, type income, date now.
// The amount is stored as a non-negative magnitude whatever the caller's
// sign convention. A dangling category or user reference surfaces as a
// constraint violation.
func (s *TransactionStore) AddTransaction(ctx context.Context, t core.Transaction) (*core.Transaction, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, err
	}

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	uid, err := s.resolveUser(ctx, t.UserID)
	if err != nil {
		return nil, err
	}
	t.UserID = uid

	if t.Title == "" {
		t.Title = "Untitled"
	}
	if !t.Type.Valid() {
		t.Type = core.Income
	}
	if t.Date.IsZero() {
		t.Date = time.Now()
	}
	t.Amount = core.Magnitude(t.Amount)

	if err := s.insertTransaction(ctx, t); err != nil {
		return nil, err
	}
	s.bus.Publish(events.TransactionsChanged)
	return &t, nil
}

func (s *TransactionStore) insertTransaction(ctx context.Context, t core.Transaction) error {
	_, err := s.db.sql.ExecContext(ctx, `
		INSERT OR REPLACE INTO transactions (id, title, amount, type, date, category_id, notes, user_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, t.Amount, string(t.Type), t.Date.UTC().Format(dateLayout),
		t.CategoryID, t.Notes, t.UserID)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// UpdateTransaction replaces the full record identified by its id and
// announces the change.
func (s *TransactionStore) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	if err := s.ensure(ctx); err != nil {
		return err
	}

	if !t.Type.Valid() {
		t.Type = core.Income
	}
	t.Amount = core.Magnitude(t.Amount)

	_, err := s.db.sql.ExecContext(ctx, `
		UPDATE transactions SET title = ?, amount = ?, type = ?, date = ?, category_id = ?, notes = ?, user_id = ?
		WHERE id = ?`,
		t.Title, t.Amount, string(t.Type), t.Date.UTC().Format(dateLayout),
		t.CategoryID, t.Notes, t.UserID, t.ID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	s.bus.Publish(events.TransactionsChanged)
	return nil
}

// DeleteTransaction removes an entry by id and announces the change.
func (s *TransactionStore) DeleteTransaction(ctx context.Context, id string) error {
	if err := s.ensure(ctx); err != nil {
		return err
	}

	if _, err := s.db.sql.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	s.bus.Publish(events.TransactionsChanged)
	return nil
}

// ReassignCategory moves every transaction the user has under oldCategoryID
// over to newCategoryID. It is the escape hatch that makes the guarded
// category delete actionable: reassign, then retry the delete.
func (s *TransactionStore) ReassignCategory(ctx context.Context, oldCategoryID, newCategoryID, userID string) error {
	if err := s.ensure(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.sql.ExecContext(ctx, `
		UPDATE transactions SET category_id = ? WHERE category_id = ? AND user_id = ?`,
		newCategoryID, oldCategoryID, userID)
	if err != nil {
		return fmt.Errorf("reassign category: %w", err)
	}
	s.bus.Publish(events.TransactionsChanged)
	return nil
}

// Summary totals the user's income and expenses. An empty userID resolves
// the current session user.
func (s *TransactionStore) Summary(ctx context.Context, userID string) (core.Summary, error) {
	if err := s.ensure(ctx); err != nil {
		return core.Summary{}, err
	}

	uid, err := s.resolveUser(ctx, userID)
	if err != nil {
		return core.Summary{}, err
	}

	var sum core.Summary
	err = s.db.sql.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN type = 'expense' THEN 0 ELSE amount END), 0),
			COALESCE(SUM(CASE WHEN type = 'expense' THEN amount ELSE 0 END), 0)
		FROM transactions WHERE user_id = ?`, uid).Scan(&sum.Income, &sum.Expense)
	if err != nil {
		return core.Summary{}, fmt.Errorf("sum transactions: %w", err)
	}
	sum.Balance = sum.Income - sum.Expense
	return sum, nil
}

func (s *TransactionStore) queryTransactions(ctx context.Context, query string, args ...any) ([]core.Transaction, error) {
	rows, err := s.db.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanTransaction tolerates NULLs in every column a legacy row may lack.
func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t          core.Transaction
		title      sql.NullString
		amount     sql.NullFloat64
		typ        sql.NullString
		date       sql.NullString
		categoryID sql.NullString
		notes      sql.NullString
		userID     sql.NullString
	)
	if err := row.Scan(&t.ID, &title, &amount, &typ, &date, &categoryID, &notes, &userID); err != nil {
		return core.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}
	t.Title = title.String
	t.Amount = amount.Float64
	t.Type = core.TransactionType(typ.String)
	t.CategoryID = categoryID.String
	t.Notes = notes.String
	t.UserID = userID.String

	if date.Valid {
		parsed, err := parseDate(date.String)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("parse transaction date %q: %w", date.String, err)
		}
		t.Date = parsed
	}
	return t, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
