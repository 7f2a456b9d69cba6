package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/badoux/checkmail"
	"golang.org/x/crypto/bcrypt"

	"carteira/internal/core"
)

// Demo account created on first run so login works immediately.
const (
	DemoUserID       = "default-user"
	DemoUserName     = "Usuário"
	DemoUserEmail    = "user@example.com"
	DemoUserPassword = "user123"
)

// UserStore owns user identity and credential records. Lookup misses are
// returned as (nil, nil), not as errors.
type UserStore struct {
	db       *DB
	seedDemo bool
	seed     sync.Once
}

func NewUserStore(db *DB, seedDemo bool) *UserStore {
	return &UserStore{db: db, seedDemo: seedDemo}
}

func (s *UserStore) ensure(ctx context.Context) error {
	if err := s.db.schema.ensure(ctx, tableUsers); err != nil {
		return err
	}
	if s.seedDemo {
		s.seed.Do(func() { s.seedDemoUser(ctx) })
	}
	return nil
}

// seedDemoUser creates the deterministic demo account unless a row with its
// email already exists. Failures are logged and skipped so startup never
// aborts over seeding.
func (s *UserStore) seedDemoUser(ctx context.Context) {
	existing, err := s.credentialByEmail(ctx, DemoUserEmail)
	if err != nil {
		slog.WarnContext(ctx, "Failed to check for demo user", "error", err)
		return
	}
	if existing != nil {
		return
	}
	if err := s.createUser(ctx, DemoUserID, DemoUserName, DemoUserEmail, DemoUserPassword); err != nil {
		slog.WarnContext(ctx, "Failed to seed demo user", "error", err)
		return
	}
	slog.InfoContext(ctx, "Seeded demo user", "email", DemoUserEmail)
}

// CreateUser upserts a user by primary key. The email is trimmed, lowered
// and checked for shape; the password is stored as a bcrypt hash, never in
// clear. A unique-email collision with a different id surfaces as a
// constraint violation (see IsConstraintViolation).
func (s *UserStore) CreateUser(ctx context.Context, id, name, email, password string) error {
	if err := s.ensure(ctx); err != nil {
		return err
	}
	return s.createUser(ctx, id, name, email, password)
}

func (s *UserStore) createUser(ctx context.Context, id, name, email, password string) error {
	email = normalizeEmail(email)
	if err := checkmail.ValidateFormat(email); err != nil {
		return fmt.Errorf("validate email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	_, err = s.db.sql.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, email = excluded.email, password = excluded.password`,
		id, name, email, string(hash))
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// GetUserByEmail returns the user with its credential hash, matched
// case-insensitively, or (nil, nil) when no such user exists.
func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*core.Credential, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, err
	}
	return s.credentialByEmail(ctx, email)
}

func (s *UserStore) credentialByEmail(ctx context.Context, email string) (*core.Credential, error) {
	var c core.Credential
	err := s.db.sql.QueryRowContext(ctx, `
		SELECT id, name, email, password FROM users WHERE lower(email) = ? LIMIT 1`,
		normalizeEmail(email)).Scan(&c.ID, &c.Name, &c.Email, &c.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &c, nil
}

// GetUserByID returns the public user view, or (nil, nil) when absent.
func (s *UserStore) GetUserByID(ctx context.Context, id string) (*core.User, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, err
	}

	var u core.User
	err := s.db.sql.QueryRowContext(ctx, `
		SELECT id, name, email FROM users WHERE id = ? LIMIT 1`, id).
		Scan(&u.ID, &u.Name, &u.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return &u, nil
}

// AuthenticateUser verifies a credential pair and returns the public user
// view on success. Missing user and wrong password collapse to the same
// ErrInvalidCredentials so the outcome never reveals which check failed.
func (s *UserStore) AuthenticateUser(ctx context.Context, email, password string) (*core.User, error) {
	cred, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, core.ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)) != nil {
		return nil, core.ErrInvalidCredentials
	}
	return &cred.User, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
