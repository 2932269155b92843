package tracker_test

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/ogulcanaydogan/spendwatch/pkg/model"
	"github.com/ogulcanaydogan/spendwatch/pkg/storage"
	"github.com/ogulcanaydogan/spendwatch/pkg/tracker"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExpenseService(t *testing.T) (*tracker.ExpenseService, *storage.Memory, *recordingNotifier) {
	t.Helper()
	notifier := &recordingNotifier{}
	ev, store := newTestEvaluator(t, notifier)
	svc := tracker.NewExpenseService(store, ev, testLogger())
	return svc, store, notifier
}

func TestExpenseService_Create(t *testing.T) {
	svc, store, notifier := newTestExpenseService(t)
	ctx := context.Background()
	fixed := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return fixed })

	rec, err := svc.Create(ctx, "u1", tracker.NewExpense{
		Amount:   "12.50",
		Category: " Food ",
		Date:     "2024-03-15",
		Notes:    "lunch",
	})
	require.NoError(t, err)
	assert.Equal(t, "u1", rec.UserID)
	assert.Regexp(t, regexp.MustCompile(`^exp_1710498600000_[0-9a-f]{9}$`), rec.ExpenseID)
	assert.True(t, decimal.RequireFromString("12.5").Equal(rec.Amount))
	assert.Equal(t, "Food", rec.Category)
	assert.Equal(t, "lunch", rec.Notes)
	assert.True(t, fixed.Equal(rec.CreatedAt))

	stored, err := store.QueryByUserAndDate(ctx, "u1", "2024-03-15")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, rec.ExpenseID, stored[0].ExpenseID)
	assert.Empty(t, notifier.published())
}

func TestExpenseService_Create_Validation(t *testing.T) {
	svc, store, _ := newTestExpenseService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   tracker.NewExpense
		want string
	}{
		{"missing amount", tracker.NewExpense{Category: "Food", Date: "2024-03-15"}, tracker.MsgMissingFields},
		{"missing category", tracker.NewExpense{Amount: "5", Category: "   ", Date: "2024-03-15"}, tracker.MsgMissingFields},
		{"missing date", tracker.NewExpense{Amount: "5", Category: "Food"}, tracker.MsgMissingFields},
		{"zero amount", tracker.NewExpense{Amount: "0", Category: "Food", Date: "2024-03-15"}, tracker.MsgInvalidAmount},
		{"negative amount", tracker.NewExpense{Amount: "-3", Category: "Food", Date: "2024-03-15"}, tracker.MsgInvalidAmount},
		{"non numeric amount", tracker.NewExpense{Amount: "abc", Category: "Food", Date: "2024-03-15"}, tracker.MsgInvalidAmount},
		{"huge exponent", tracker.NewExpense{Amount: "1e50000000", Category: "Food", Date: "2024-03-15"}, tracker.MsgInvalidAmount},
		{"huge negative exponent", tracker.NewExpense{Amount: "1e-2000000000", Category: "Food", Date: "2024-03-15"}, tracker.MsgInvalidAmount},
		{"above maximum", tracker.NewExpense{Amount: "1000000000001", Category: "Food", Date: "2024-03-15"}, tracker.MsgInvalidAmount},
		{"too many digits", tracker.NewExpense{Amount: strings.Repeat("1", 40), Category: "Food", Date: "2024-03-15"}, tracker.MsgInvalidAmount},
		{"bad date", tracker.NewExpense{Amount: "5", Category: "Food", Date: "15/03/2024"}, tracker.MsgInvalidDate},
		{"impossible date", tracker.NewExpense{Amount: "5", Category: "Food", Date: "2024-02-30"}, tracker.MsgInvalidDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, "u1", tt.in)
			var verr *tracker.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.want, verr.Message)
		})
	}

	all, err := store.ScanAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestExpenseService_Create_AmountBounds(t *testing.T) {
	svc, _, _ := newTestExpenseService(t)
	ctx := context.Background()

	for _, amount := range []string{"0.01", "12.345", "1e12", "2.5E3"} {
		rec, err := svc.Create(ctx, "u1", tracker.NewExpense{Amount: amount, Category: "Food", Date: "2024-03-15"})
		require.NoError(t, err, amount)
		assert.True(t, decimal.RequireFromString(amount).Equal(rec.Amount), amount)
	}
	assert.True(t, tracker.MaxAmount.Equal(decimal.RequireFromString("1000000000000")))
}

func TestExpenseService_Create_CrossesThreshold(t *testing.T) {
	svc, _, notifier := newTestExpenseService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "u1", tracker.NewExpense{Amount: "20", Category: "Food", Date: "2024-03-15"})
	require.NoError(t, err)
	assert.Empty(t, notifier.published())

	_, err = svc.Create(ctx, "u1", tracker.NewExpense{Amount: "35", Category: "Transport", Date: "2024-03-15"})
	require.NoError(t, err)

	got := notifier.published()
	require.Len(t, got, 1)
	assert.Equal(t, "Daily expense threshold exceeded! You've spent $55.00 today (threshold: $50).", got[0].Message)

	// Every further write over the threshold alerts again.
	_, err = svc.Create(ctx, "u1", tracker.NewExpense{Amount: "1", Category: "Food", Date: "2024-03-15"})
	require.NoError(t, err)
	assert.Len(t, notifier.published(), 2)
}

func TestExpenseService_Create_EvaluatesRecordDate(t *testing.T) {
	svc, _, notifier := newTestExpenseService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "u1", tracker.NewExpense{Amount: "45", Category: "Food", Date: "2024-03-14"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, "u1", tracker.NewExpense{Amount: "45", Category: "Food", Date: "2024-03-15"})
	require.NoError(t, err)

	assert.Empty(t, notifier.published())
}

func TestExpenseService_Create_NotifierFailureDoesNotFail(t *testing.T) {
	notifier := &recordingNotifier{fail: errors.New("topic missing")}
	ev, store := newTestEvaluator(t, notifier)
	svc := tracker.NewExpenseService(store, ev, testLogger())

	rec, err := svc.Create(context.Background(), "u1", tracker.NewExpense{Amount: "75", Category: "Rent", Date: "2024-03-15"})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ExpenseID)
}

func TestExpenseService_Create_ReadFailureDoesNotFail(t *testing.T) {
	store := storage.NewMemory()
	ev := tracker.NewEvaluator(brokenStore{ExpenseStore: store}, &recordingNotifier{}, tracker.EvaluatorOptions{}, nil, testLogger())
	svc := tracker.NewExpenseService(store, ev, testLogger())

	_, err := svc.Create(context.Background(), "u1", tracker.NewExpense{Amount: "75", Category: "Rent", Date: "2024-03-15"})
	require.NoError(t, err)
}

func TestExpenseService_List(t *testing.T) {
	svc, store, _ := newTestExpenseService(t)
	ctx := context.Background()

	early := time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)
	for _, r := range []model.ExpenseRecord{
		{UserID: "u1", ExpenseID: "a", Amount: decimal.RequireFromString("10.10"), Category: "Food", Date: "2024-03-14", CreatedAt: early},
		{UserID: "u1", ExpenseID: "b", Amount: decimal.RequireFromString("0.2"), Category: "Food", Date: "2024-03-15", CreatedAt: early},
		{UserID: "u1", ExpenseID: "c", Amount: decimal.RequireFromString("5"), Category: "Transport", Date: "2024-03-15", CreatedAt: late},
		{UserID: "u2", ExpenseID: "d", Amount: decimal.RequireFromString("99"), Category: "Food", Date: "2024-03-15", CreatedAt: late},
	} {
		require.NoError(t, store.PutExpense(ctx, &r))
	}

	listing, err := svc.List(ctx, "u1", model.ExpenseFilter{})
	require.NoError(t, err)
	require.Equal(t, 3, listing.Count)
	assert.Equal(t, "c", listing.Expenses[0].ExpenseID)
	assert.Equal(t, "b", listing.Expenses[1].ExpenseID)
	assert.Equal(t, "a", listing.Expenses[2].ExpenseID)
	assert.True(t, decimal.RequireFromString("15.3").Equal(listing.Total))
	assert.True(t, decimal.RequireFromString("10.3").Equal(listing.CategoryTotals["Food"]))
	assert.True(t, decimal.RequireFromString("5").Equal(listing.CategoryTotals["Transport"]))

	filtered, err := svc.List(ctx, "u1", model.ExpenseFilter{Category: "Food", StartDate: "2024-03-15"})
	require.NoError(t, err)
	require.Equal(t, 1, filtered.Count)
	assert.Equal(t, "b", filtered.Expenses[0].ExpenseID)
}

func TestExpenseService_List_Empty(t *testing.T) {
	svc, _, _ := newTestExpenseService(t)

	listing, err := svc.List(context.Background(), "nobody", model.ExpenseFilter{})
	require.NoError(t, err)
	assert.NotNil(t, listing.Expenses)
	assert.Equal(t, 0, listing.Count)
	assert.True(t, listing.Total.IsZero())
	assert.Empty(t, listing.CategoryTotals)
}

func TestExpenseService_Delete(t *testing.T) {
	svc, _, _ := newTestExpenseService(t)
	ctx := context.Background()

	rec, err := svc.Create(ctx, "u1", tracker.NewExpense{Amount: "5", Category: "Food", Date: "2024-03-15"})
	require.NoError(t, err)

	_, err = svc.Delete(ctx, "u2", rec.ExpenseID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	prev, err := svc.Delete(ctx, "u1", rec.ExpenseID)
	require.NoError(t, err)
	assert.Equal(t, rec.ExpenseID, prev.ExpenseID)

	_, err = svc.Delete(ctx, "u1", rec.ExpenseID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = svc.Delete(ctx, "u1", " ")
	var verr *tracker.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, tracker.MsgMissingExpense, verr.Message)
}

func TestNewExpenseID(t *testing.T) {
	at := time.UnixMilli(1710000000123)
	a := tracker.NewExpenseID(at)
	b := tracker.NewExpenseID(at)
	assert.Regexp(t, `^exp_1710000000123_[0-9a-f]{9}$`, a)
	assert.NotEqual(t, a, b)
}
