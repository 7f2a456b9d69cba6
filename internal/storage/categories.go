package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"carteira/internal/core"
	"carteira/internal/events"
)

// CategoryStore owns named groupings scoped per user. Names are unique per
// user, compared case-insensitively; deletion is guarded while transactions
// still reference the category.
type CategoryStore struct {
	db  *DB
	bus *events.Bus

	// mu serializes compound read-then-write operations (usage-gated
	// delete); group collapses concurrent get-or-create calls for the same
	// (user, name) key. The single-process assumption makes this enough to
	// keep the no-duplicate invariant.
	mu    sync.Mutex
	group singleflight.Group
}

func NewCategoryStore(db *DB, bus *events.Bus) *CategoryStore {
	return &CategoryStore{db: db, bus: bus}
}

func (s *CategoryStore) ensure(ctx context.Context) error {
	return s.db.schema.ensure(ctx, tableCategories)
}

// GetCategories returns every category owned by the user, ordered by name
// with case-insensitive collation.
func (s *CategoryStore) GetCategories(ctx context.Context, userID string) ([]core.Category, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.sql.QueryContext(ctx, `
		SELECT id, name, user_id FROM categories WHERE user_id = ? ORDER BY name COLLATE NOCASE`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("get categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.UserID); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateCategory upserts a category by primary key.
func (s *CategoryStore) CreateCategory(ctx context.Context, c core.Category) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := s.ensure(ctx); err != nil {
		return err
	}
	return s.createCategory(ctx, c)
}

func (s *CategoryStore) createCategory(ctx context.Context, c core.Category) error {
	_, err := s.db.sql.ExecContext(ctx, `
		INSERT OR REPLACE INTO categories (id, name, user_id) VALUES (?, ?, ?)`,
		c.ID, c.Name, c.UserID)
	if err != nil {
		return fmt.Errorf("upsert category: %w", err)
	}
	return nil
}

// GetCategoryByName performs a case-insensitive exact match scoped to the
// user. Returns (nil, nil) when no category of that name exists.
func (s *CategoryStore) GetCategoryByName(ctx context.Context, name, userID string) (*core.Category, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, err
	}
	return s.categoryByName(ctx, name, userID)
}

func (s *CategoryStore) categoryByName(ctx context.Context, name, userID string) (*core.Category, error) {
	var c core.Category
	err := s.db.sql.QueryRowContext(ctx, `
		SELECT id, name, user_id FROM categories WHERE lower(name) = ? AND user_id = ? LIMIT 1`,
		strings.ToLower(strings.TrimSpace(name)), userID).
		Scan(&c.ID, &c.Name, &c.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get category by name: %w", err)
	}
	return &c, nil
}

// GetOrCreateCategoryByName returns the existing category matching name for
// the user, or creates one with a fresh id and announces the change. This is
// the path that lets a transaction form introduce a brand-new category
// inline. Concurrent calls for the same (user, name) collapse onto a single
// lookup-then-insert, so no duplicate rows appear.
func (s *CategoryStore) GetOrCreateCategoryByName(ctx context.Context, name, userID string) (*core.Category, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, err
	}

	key := userID + "\x00" + strings.ToLower(strings.TrimSpace(name))
	v, err, _ := s.group.Do(key, func() (any, error) {
		existing, err := s.categoryByName(ctx, name, userID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}

		c := core.Category{
			ID:     uuid.NewString(),
			Name:   strings.TrimSpace(name),
			UserID: userID,
		}
		if err := c.Validate(); err != nil {
			return nil, err
		}
		if err := s.createCategory(ctx, c); err != nil {
			return nil, err
		}
		s.bus.Publish(events.CategoriesChanged)
		return &c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*core.Category), nil
}

// UpdateCategory renames a category by id.
func (s *CategoryStore) UpdateCategory(ctx context.Context, c core.Category) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := s.ensure(ctx); err != nil {
		return err
	}

	_, err := s.db.sql.ExecContext(ctx, `UPDATE categories SET name = ? WHERE id = ?`, c.Name, c.ID)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return nil
}

// DeleteCategory removes a category, but only when no transaction
// references it; otherwise it fails with core.ErrHasDependents so the caller
// can reassign the dependents and retry. A not-yet-created transactions
// table counts as zero dependents.
func (s *CategoryStore) DeleteCategory(ctx context.Context, id string) error {
	if err := s.ensure(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	count, err := s.dependentCount(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return core.ErrHasDependents
	}

	if _, err := s.db.sql.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return nil
}

func (s *CategoryStore) dependentCount(ctx context.Context, id string) (int, error) {
	exists, err := s.db.schema.tableExists(ctx, tableTransactions)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, nil
	}

	var n int
	err = s.db.sql.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE category_id = ?`, id).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count dependent transactions: %w", err)
	}
	return n, nil
}

// GetCategoryUsageCounts maps each category id to the number of the user's
// transactions referencing it. An absent transactions table yields an empty
// map.
func (s *CategoryStore) GetCategoryUsageCounts(ctx context.Context, userID string) (map[string]int, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	exists, err := s.db.schema.tableExists(ctx, tableTransactions)
	if err != nil {
		return nil, err
	}
	if !exists {
		return counts, nil
	}

	rows, err := s.db.sql.QueryContext(ctx, `
		SELECT category_id, COUNT(*) FROM transactions WHERE user_id = ? GROUP BY category_id`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("count category usage: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id sql.NullString
			n  int
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("scan usage count: %w", err)
		}
		if id.Valid {
			counts[id.String] = n
		}
	}
	return counts, rows.Err()
}
