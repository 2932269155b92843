package storage_test

import (
	"context"
	"testing"

	"github.com/ogulcanaydogan/spendwatch/pkg/model"
	"github.com/ogulcanaydogan/spendwatch/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_ExpenseLifecycle(t *testing.T) {
	m := storage.NewMemory()
	ctx := context.Background()

	require.NoError(t, m.PutExpense(ctx, expense("u1", "e1", "20", "Food", "2024-01-01")))
	require.NoError(t, m.PutExpense(ctx, expense("u1", "e2", "35", "Rent", "2024-01-01")))
	require.NoError(t, m.PutExpense(ctx, expense("u2", "e3", "5", "Food", "2024-01-01")))

	day, err := m.QueryByUserAndDate(ctx, "u1", "2024-01-01")
	require.NoError(t, err)
	assert.Len(t, day, 2)

	food, err := m.QueryExpenses(ctx, "u1", model.ExpenseFilter{Category: "Food"})
	require.NoError(t, err)
	assert.Len(t, food, 1)

	all, err := m.ScanAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	prev, err := m.DeleteExpense(ctx, "u1", "e1")
	require.NoError(t, err)
	assert.Equal(t, "20", prev.Amount.String())

	_, err = m.DeleteExpense(ctx, "u1", "e1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestMemory_Users(t *testing.T) {
	m := storage.NewMemory()
	ctx := context.Background()

	require.NoError(t, m.CreateUser(ctx, &model.UserAccount{Email: "a@b.c", UserID: "u1"}))
	err := m.CreateUser(ctx, &model.UserAccount{Email: "a@b.c", UserID: "u2"})
	assert.ErrorIs(t, err, storage.ErrConflict)

	u, err := m.GetUserByEmail(ctx, "a@b.c")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.UserID)

	_, err = m.GetUserByEmail(ctx, "x@y.z")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
