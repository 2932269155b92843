package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ogulcanaydogan/spendwatch/pkg/model"
	"github.com/ogulcanaydogan/spendwatch/pkg/storage"
	"github.com/shopspring/decimal"
)

// Validation messages returned to API callers.
const (
	MsgMissingFields  = "Missing required fields: amount, category, date"
	MsgInvalidAmount  = "Amount must be a positive number"
	MsgInvalidDate    = "Date must be in YYYY-MM-DD format"
	MsgMissingExpense = "Expense ID is required"
)

// Accepted amount range. Amounts are checked on their decimal text before any
// arithmetic so oversized exponents are never expanded.
const (
	maxAmountText  = 32
	maxAmountScale = 10
	maxAmountExp   = 12
)

// MaxAmount is the largest single expense accepted.
var MaxAmount = decimal.New(1, maxAmountExp)

// ValidationError reports bad caller input. Nothing is written when it is returned.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NewExpense is the caller-supplied part of an expense. Amount is the decimal
// text as sent by the client.
type NewExpense struct {
	Amount   string
	Category string
	Date     string
	Notes    string
}

// ExpenseService creates, lists and deletes expenses, and re-checks the daily
// threshold after every successful create.
type ExpenseService struct {
	store     storage.ExpenseStore
	evaluator *Evaluator
	now       func() time.Time
	logger    *slog.Logger
}

// NewExpenseService creates an expense service. A nil evaluator disables the
// per-write threshold check.
func NewExpenseService(store storage.ExpenseStore, evaluator *Evaluator, logger *slog.Logger) *ExpenseService {
	return &ExpenseService{
		store:     store,
		evaluator: evaluator,
		now:       time.Now,
		logger:    logger,
	}
}

// WithClock replaces the time source used for createdAt and expense ids.
func (s *ExpenseService) WithClock(now func() time.Time) *ExpenseService {
	s.now = now
	return s
}

// Create validates and stores an expense, then evaluates the owner's total for
// the expense's date. The threshold check never fails the create.
func (s *ExpenseService) Create(ctx context.Context, userID string, in NewExpense) (*model.ExpenseRecord, error) {
	record, err := s.build(userID, in)
	if err != nil {
		return nil, err
	}

	if err := s.store.PutExpense(ctx, record); err != nil {
		return nil, fmt.Errorf("store expense: %w", err)
	}

	s.logger.Info("expense created",
		"user_id", userID,
		"expense_id", record.ExpenseID,
		"amount", record.Amount.String(),
		"category", record.Category,
		"date", record.Date,
	)

	if s.evaluator != nil {
		if _, err := s.evaluator.EvaluateDay(ctx, userID, record.Date); err != nil {
			s.logger.Error("threshold check failed", "user_id", userID, "date", record.Date, "error", err)
		}
	}

	return record, nil
}

// List returns the user's expenses matching filter, newest date first, with totals.
func (s *ExpenseService) List(ctx context.Context, userID string, filter model.ExpenseFilter) (*model.ExpenseListing, error) {
	records, err := s.store.QueryExpenses(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}

	slices.SortStableFunc(records, func(a, b model.ExpenseRecord) int {
		if c := strings.Compare(b.Date, a.Date); c != 0 {
			return c
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	listing := &model.ExpenseListing{
		Expenses:       records,
		Total:          decimal.Zero,
		CategoryTotals: make(map[string]decimal.Decimal),
		Count:          len(records),
	}
	if listing.Expenses == nil {
		listing.Expenses = []model.ExpenseRecord{}
	}
	for _, r := range records {
		listing.Total = listing.Total.Add(r.Amount)
		listing.CategoryTotals[r.Category] = listing.CategoryTotals[r.Category].Add(r.Amount)
	}
	return listing, nil
}

// Delete removes one of the user's expenses and returns it.
// A missing or foreign record yields storage.ErrNotFound.
func (s *ExpenseService) Delete(ctx context.Context, userID, expenseID string) (*model.ExpenseRecord, error) {
	if strings.TrimSpace(expenseID) == "" {
		return nil, &ValidationError{Message: MsgMissingExpense}
	}

	prev, err := s.store.DeleteExpense(ctx, userID, expenseID)
	if err != nil {
		return nil, fmt.Errorf("delete expense: %w", err)
	}

	s.logger.Info("expense deleted", "user_id", userID, "expense_id", expenseID)
	return prev, nil
}

func (s *ExpenseService) build(userID string, in NewExpense) (*model.ExpenseRecord, error) {
	amountText := strings.TrimSpace(in.Amount)
	category := strings.TrimSpace(in.Category)
	date := strings.TrimSpace(in.Date)
	if amountText == "" || category == "" || date == "" {
		return nil, &ValidationError{Message: MsgMissingFields}
	}

	amount, ok := parseAmount(amountText)
	if !ok {
		return nil, &ValidationError{Message: MsgInvalidAmount}
	}
	if !model.ValidDate(date) {
		return nil, &ValidationError{Message: MsgInvalidDate}
	}

	now := s.now().UTC()
	return &model.ExpenseRecord{
		UserID:    userID,
		ExpenseID: NewExpenseID(now),
		Amount:    amount,
		Category:  category,
		Date:      date,
		Notes:     in.Notes,
		CreatedAt: now,
	}, nil
}

func parseAmount(text string) (decimal.Decimal, bool) {
	if len(text) > maxAmountText {
		return decimal.Decimal{}, false
	}
	amount, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Decimal{}, false
	}
	if exp := amount.Exponent(); exp < -maxAmountScale || exp > maxAmountExp {
		return decimal.Decimal{}, false
	}
	if !amount.IsPositive() || amount.GreaterThan(MaxAmount) {
		return decimal.Decimal{}, false
	}
	return amount, true
}

// NewExpenseID returns an id of the form exp_<unix millis>_<9 random chars>.
func NewExpenseID(t time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("exp_%d_%s", t.UnixMilli(), suffix)
}
