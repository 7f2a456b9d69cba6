package core

import (
	"errors"
	"math"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

type (
	// TransactionType distinguishes money coming in from money going out.
	// The stored amount is always a non-negative magnitude; the sign is
	// derived from the type.
	TransactionType string

	// User is the public view of an account, without the credential.
	User struct {
		ID    string
		Name  string
		Email string
	}

	// Credential is a user record together with its bcrypt password hash.
	// Only credential lookups used for authentication return it.
	Credential struct {
		User
		PasswordHash string
	}

	// Category is a named grouping of transactions owned by one user.
	// Names are unique per user, compared case-insensitively.
	Category struct {
		ID     string
		Name   string
		UserID string
	}

	Transaction struct {
		ID         string
		Title      string
		Amount     float64 // non-negative magnitude
		Type       TransactionType
		Date       time.Time
		CategoryID string
		Notes      string
		UserID     string
	}

	// Summary aggregates a user's transactions into income and expense
	// totals and the resulting net balance.
	Summary struct {
		Income  float64
		Expense float64
		Balance float64
	}
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrHasDependents      = errors.New("category has transactions and cannot be deleted")
	ErrNoSessionUser      = errors.New("no user in session")
	ErrEmptyName          = errors.New("empty name")
	ErrInvalidType        = errors.New("invalid transaction type")
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// Sign returns +1 for income and -1 for expense.
func (t TransactionType) Sign() float64 {
	if t == Expense {
		return -1
	}
	return 1
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	return nil
}

// SignedAmount returns the amount with the sign implied by the type,
// suitable for balance arithmetic.
func (t Transaction) SignedAmount() float64 {
	return t.Type.Sign() * t.Amount
}

// Magnitude coerces a raw caller-supplied amount to the stored form: a
// non-negative magnitude regardless of the caller's sign convention.
func Magnitude(amount float64) float64 {
	return math.Abs(amount)
}
