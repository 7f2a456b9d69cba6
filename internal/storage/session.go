package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const sessionKeyCurrentUser = "currentUser"

// SessionStore persists the single currently-authenticated user id so the
// other stores can resolve an implicit caller identity. Absence of the row
// means signed out.
type SessionStore struct {
	db *DB
}

func NewSessionStore(db *DB) *SessionStore {
	return &SessionStore{db: db}
}

func (s *SessionStore) ensure(ctx context.Context) error {
	return s.db.schema.ensure(ctx, tableSession)
}

// SetCurrentUserID records the signed-in user. An empty id signs out.
func (s *SessionStore) SetCurrentUserID(ctx context.Context, id string) error {
	if err := s.ensure(ctx); err != nil {
		return err
	}

	if id == "" {
		_, err := s.db.sql.ExecContext(ctx, `DELETE FROM session WHERE key = ?`, sessionKeyCurrentUser)
		if err != nil {
			return fmt.Errorf("clear session: %w", err)
		}
		return nil
	}

	_, err := s.db.sql.ExecContext(ctx, `
		INSERT OR REPLACE INTO session (key, value) VALUES (?, ?)`,
		sessionKeyCurrentUser, id)
	if err != nil {
		return fmt.Errorf("set session user: %w", err)
	}
	return nil
}

// CurrentUserID returns the signed-in user id, or "" when signed out.
func (s *SessionStore) CurrentUserID(ctx context.Context) (string, error) {
	if err := s.ensure(ctx); err != nil {
		return "", err
	}

	var id string
	err := s.db.sql.QueryRowContext(ctx, `
		SELECT value FROM session WHERE key = ? LIMIT 1`, sessionKeyCurrentUser).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get session user: %w", err)
	}
	return id, nil
}

// Clear signs the current user out.
func (s *SessionStore) Clear(ctx context.Context) error {
	return s.SetCurrentUserID(ctx, "")
}
