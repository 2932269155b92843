package storage_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ogulcanaydogan/spendwatch/pkg/model"
	"github.com/ogulcanaydogan/spendwatch/pkg/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *storage.SQLStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := storage.NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func expense(userID, expenseID, amount, category, date string) *model.ExpenseRecord {
	return &model.ExpenseRecord{
		UserID:    userID,
		ExpenseID: expenseID,
		Amount:    decimal.RequireFromString(amount),
		Category:  category,
		Date:      date,
		CreatedAt: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestSQLite_PutAndQueryByUserAndDate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.PutExpense(ctx, expense("u1", "e1", "20", "Food", "2024-01-01")))
	require.NoError(t, db.PutExpense(ctx, expense("u1", "e2", "35.10", "Transport", "2024-01-01")))
	require.NoError(t, db.PutExpense(ctx, expense("u1", "e3", "7", "Food", "2024-01-02")))
	require.NoError(t, db.PutExpense(ctx, expense("u2", "e4", "99", "Food", "2024-01-01")))

	got, err := db.QueryByUserAndDate(ctx, "u1", "2024-01-01")
	require.NoError(t, err)
	require.Len(t, got, 2)

	total := decimal.Zero
	for _, r := range got {
		assert.Equal(t, "u1", r.UserID)
		assert.Equal(t, "2024-01-01", r.Date)
		total = total.Add(r.Amount)
	}
	assert.True(t, decimal.RequireFromString("55.10").Equal(total), "total %s", total)
}

func TestSQLite_AmountIsExact(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.PutExpense(ctx, expense("u1", "e1", "0.1", "Food", "2024-01-01")))
	require.NoError(t, db.PutExpense(ctx, expense("u1", "e2", "0.2", "Food", "2024-01-01")))

	got, err := db.QueryByUserAndDate(ctx, "u1", "2024-01-01")
	require.NoError(t, err)

	total := decimal.Zero
	for _, r := range got {
		total = total.Add(r.Amount)
	}
	assert.Equal(t, "0.3", total.String())
}

func TestSQLite_PutExpense_Replaces(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.PutExpense(ctx, expense("u1", "e1", "10", "Food", "2024-01-01")))
	require.NoError(t, db.PutExpense(ctx, expense("u1", "e1", "12.5", "Food", "2024-01-01")))

	all, err := db.ScanAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "12.5", all[0].Amount.String())
}

func TestSQLite_QueryExpenses_Filters(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.PutExpense(ctx, expense("u1", "e1", "10", "Food", "2024-01-01")))
	require.NoError(t, db.PutExpense(ctx, expense("u1", "e2", "20", "Rent", "2024-01-15")))
	require.NoError(t, db.PutExpense(ctx, expense("u1", "e3", "30", "Food", "2024-01-31")))
	require.NoError(t, db.PutExpense(ctx, expense("u2", "e4", "40", "Food", "2024-01-15")))

	all, err := db.QueryExpenses(ctx, "u1", model.ExpenseFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	food, err := db.QueryExpenses(ctx, "u1", model.ExpenseFilter{Category: "Food"})
	require.NoError(t, err)
	assert.Len(t, food, 2)

	// Bounds are inclusive
	ranged, err := db.QueryExpenses(ctx, "u1", model.ExpenseFilter{StartDate: "2024-01-15", EndDate: "2024-01-31"})
	require.NoError(t, err)
	assert.Len(t, ranged, 2)

	none, err := db.QueryExpenses(ctx, "u1", model.ExpenseFilter{Category: "Rent", EndDate: "2024-01-10"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLite_DeleteExpense(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.PutExpense(ctx, expense("u1", "e1", "10", "Food", "2024-01-01")))

	prev, err := db.DeleteExpense(ctx, "u1", "e1")
	require.NoError(t, err)
	assert.Equal(t, "e1", prev.ExpenseID)
	assert.Equal(t, "10", prev.Amount.String())

	_, err = db.DeleteExpense(ctx, "u1", "e1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSQLite_DeleteExpense_OtherUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.PutExpense(ctx, expense("u1", "e1", "10", "Food", "2024-01-01")))

	_, err := db.DeleteExpense(ctx, "u2", "e1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	all, err := db.ScanAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSQLite_Users(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	user := &model.UserAccount{Email: "ann@example.com", UserID: "u1", PasswordHash: "hash"}
	require.NoError(t, db.CreateUser(ctx, user))
	assert.False(t, user.CreatedAt.IsZero())

	got, err := db.GetUserByEmail(ctx, "ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "hash", got.PasswordHash)

	err = db.CreateUser(ctx, &model.UserAccount{Email: "ann@example.com", UserID: "u2", PasswordHash: "x"})
	assert.ErrorIs(t, err, storage.ErrConflict)

	_, err = db.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSQLite_ReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "test.db")
	ctx := context.Background()

	db, err := storage.NewSQLite(dbPath)
	require.NoError(t, err)
	require.NoError(t, db.PutExpense(ctx, expense("u1", "e1", "10", "Food", "2024-01-01")))
	require.NoError(t, db.Close())

	db, err = storage.NewSQLite(dbPath)
	require.NoError(t, err)
	defer db.Close()

	all, err := db.ScanAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Equal(t, storage.DialectSQLite, db.Dialect())
}
