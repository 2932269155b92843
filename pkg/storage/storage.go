package storage

import (
	"context"
	"errors"

	"github.com/ogulcanaydogan/spendwatch/pkg/model"
)

var (
	// ErrNotFound is returned when a keyed record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a conditional create finds an existing record.
	ErrConflict = errors.New("already exists")
)

// ExpenseStore persists expense records keyed by (userId, expenseId).
type ExpenseStore interface {
	// PutExpense persists a record, replacing any record with the same key.
	PutExpense(ctx context.Context, record *model.ExpenseRecord) error

	// DeleteExpense removes a record and returns what was stored.
	// Returns ErrNotFound if the user owns no such record.
	DeleteExpense(ctx context.Context, userID, expenseID string) (*model.ExpenseRecord, error)

	// QueryByUserAndDate returns every record of one user for one calendar day.
	QueryByUserAndDate(ctx context.Context, userID, date string) ([]model.ExpenseRecord, error)

	// QueryExpenses returns a user's records matching the filter, in no particular order.
	QueryExpenses(ctx context.Context, userID string, filter model.ExpenseFilter) ([]model.ExpenseRecord, error)

	// ScanAll returns every stored record. Intended for small data sets only.
	ScanAll(ctx context.Context) ([]model.ExpenseRecord, error)
}

// UserStore persists user accounts keyed by lower-cased email.
type UserStore interface {
	// CreateUser stores a new account. Returns ErrConflict if the email is taken.
	CreateUser(ctx context.Context, user *model.UserAccount) error

	// GetUserByEmail returns the account for email or ErrNotFound.
	GetUserByEmail(ctx context.Context, email string) (*model.UserAccount, error)
}

// Storage is the full persistence layer.
type Storage interface {
	ExpenseStore
	UserStore

	// Close releases resources.
	Close() error
}
