package model

import (
	"time"

	"github.com/jinzhu/now"
	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-day format of ExpenseRecord.Date.
const DateLayout = "2006-01-02"

// ExpenseRecord is a single expense owned by one user. Records are never updated.
type ExpenseRecord struct {
	UserID    string          `json:"userId" db:"user_id"`
	ExpenseID string          `json:"expenseId" db:"expense_id"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	Category  string          `json:"category" db:"category"`
	Date      string          `json:"date" db:"date"`
	Notes     string          `json:"notes" db:"notes"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
}

// UserAccount is a registered user. Email is stored lower-cased.
type UserAccount struct {
	Email        string    `json:"email" db:"email"`
	UserID       string    `json:"userId" db:"user_id"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// ExpenseFilter narrows an expense listing. Empty fields match everything,
// and date bounds are inclusive.
type ExpenseFilter struct {
	Category  string `json:"category,omitempty"`
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
}

// Matches reports whether r passes the filter.
func (f ExpenseFilter) Matches(r ExpenseRecord) bool {
	if f.Category != "" && r.Category != f.Category {
		return false
	}
	if f.StartDate != "" && r.Date < f.StartDate {
		return false
	}
	if f.EndDate != "" && r.Date > f.EndDate {
		return false
	}
	return true
}

// ExpenseListing is a filtered set of expenses with exact totals.
type ExpenseListing struct {
	Expenses       []ExpenseRecord            `json:"expenses"`
	Total          decimal.Decimal            `json:"total"`
	CategoryTotals map[string]decimal.Decimal `json:"categoryTotals"`
	Count          int                        `json:"count"`
}

// Decision is the outcome of evaluating one user's spending for one day.
type Decision struct {
	UserID      string          `json:"userId" yaml:"userId"`
	Date        string          `json:"date" yaml:"date"`
	Total       decimal.Decimal `json:"total" yaml:"total"`
	ShouldAlert bool            `json:"shouldAlert" yaml:"shouldAlert"`
	Message     string          `json:"message" yaml:"message"`
	Notified    bool            `json:"notified" yaml:"notified"`
}

// SweepReport summarizes one run over every user's spending for today.
type SweepReport struct {
	Message      string     `json:"message" yaml:"message"`
	Date         string     `json:"date" yaml:"date"`
	UsersChecked int        `json:"usersChecked" yaml:"usersChecked"`
	AlertsSent   int        `json:"alertsSent" yaml:"alertsSent"`
	Failures     int        `json:"failures" yaml:"failures"`
	Alerts       []Decision `json:"alerts" yaml:"alerts"`
}

// Period defines a reporting window.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// ValidDate reports whether s is a YYYY-MM-DD calendar day.
func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// DayIn returns the calendar day of t in loc.
func DayIn(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}

// PeriodBounds returns the first and last calendar day of the period containing t,
// evaluated in t's location. Weeks start on Monday.
func PeriodBounds(period Period, t time.Time) (start, end string) {
	cfg := &now.Config{WeekStartDay: time.Monday, TimeLocation: t.Location()}
	n := cfg.With(t)

	var s, e time.Time
	switch period {
	case PeriodWeekly:
		s, e = n.BeginningOfWeek(), n.EndOfWeek()
	case PeriodMonthly:
		s, e = n.BeginningOfMonth(), n.EndOfMonth()
	default:
		s, e = n.BeginningOfDay(), n.EndOfDay()
	}
	return s.Format(DateLayout), e.Format(DateLayout)
}
