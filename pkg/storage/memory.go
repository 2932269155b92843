package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ogulcanaydogan/spendwatch/pkg/model"
)

type expenseKey struct {
	userID    string
	expenseID string
}

// Memory is an in-process Storage. Contents are lost on Close.
type Memory struct {
	mu       sync.RWMutex
	expenses map[expenseKey]model.ExpenseRecord
	users    map[string]model.UserAccount
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		expenses: make(map[expenseKey]model.ExpenseRecord),
		users:    make(map[string]model.UserAccount),
	}
}

func (m *Memory) PutExpense(_ context.Context, record *model.ExpenseRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.expenses[expenseKey{record.UserID, record.ExpenseID}] = *record
	return nil
}

func (m *Memory) DeleteExpense(_ context.Context, userID, expenseID string) (*model.ExpenseRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := expenseKey{userID, expenseID}
	r, ok := m.expenses[key]
	if !ok {
		return nil, fmt.Errorf("expense %q: %w", expenseID, ErrNotFound)
	}
	delete(m.expenses, key)
	return &r, nil
}

func (m *Memory) QueryByUserAndDate(_ context.Context, userID, date string) ([]model.ExpenseRecord, error) {
	return m.collect(func(r model.ExpenseRecord) bool {
		return r.UserID == userID && r.Date == date
	}), nil
}

func (m *Memory) QueryExpenses(_ context.Context, userID string, filter model.ExpenseFilter) ([]model.ExpenseRecord, error) {
	return m.collect(func(r model.ExpenseRecord) bool {
		return r.UserID == userID && filter.Matches(r)
	}), nil
}

func (m *Memory) ScanAll(_ context.Context) ([]model.ExpenseRecord, error) {
	return m.collect(func(model.ExpenseRecord) bool { return true }), nil
}

func (m *Memory) CreateUser(_ context.Context, user *model.UserAccount) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[user.Email]; exists {
		return fmt.Errorf("user %q: %w", user.Email, ErrConflict)
	}
	m.users[user.Email] = *user
	return nil
}

func (m *Memory) GetUserByEmail(_ context.Context, email string) (*model.UserAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[email]
	if !ok {
		return nil, fmt.Errorf("user %q: %w", email, ErrNotFound)
	}
	return &u, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expenses = make(map[expenseKey]model.ExpenseRecord)
	m.users = make(map[string]model.UserAccount)
	return nil
}

func (m *Memory) collect(keep func(model.ExpenseRecord) bool) []model.ExpenseRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.ExpenseRecord
	for _, r := range m.expenses {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}
