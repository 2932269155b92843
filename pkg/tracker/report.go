package tracker

import (
	"slices"

	"github.com/ogulcanaydogan/spendwatch/pkg/model"
	"github.com/shopspring/decimal"
)

// DayTotal is one user's spending on one day, compared with the threshold.
type DayTotal struct {
	UserID    string          `json:"userId" yaml:"userId"`
	Date      string          `json:"date" yaml:"date"`
	Count     int             `json:"count" yaml:"count"`
	Total     decimal.Decimal `json:"total" yaml:"total"`
	OverLimit bool            `json:"overLimit" yaml:"overLimit"`
}

// DailyTotals groups records by user and date and evaluates each group without
// notifying anyone. Rows are ordered by date descending, then user.
func DailyTotals(records []model.ExpenseRecord, threshold decimal.Decimal) []DayTotal {
	type key struct{ user, date string }
	groups := make(map[key][]model.ExpenseRecord)
	for _, r := range records {
		k := key{r.UserID, r.Date}
		groups[k] = append(groups[k], r)
	}

	out := make([]DayTotal, 0, len(groups))
	for k, recs := range groups {
		d := Evaluate(k.user, k.date, recs, threshold)
		out = append(out, DayTotal{
			UserID:    k.user,
			Date:      k.date,
			Count:     len(recs),
			Total:     d.Total,
			OverLimit: d.ShouldAlert,
		})
	}

	slices.SortFunc(out, func(a, b DayTotal) int {
		switch {
		case a.Date > b.Date:
			return -1
		case a.Date < b.Date:
			return 1
		case a.UserID < b.UserID:
			return -1
		case a.UserID > b.UserID:
			return 1
		}
		return 0
	})
	return out
}
