package cli

import (
	"errors"
	"fmt"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/ogulcanaydogan/spendwatch/pkg/auth"
	"github.com/ogulcanaydogan/spendwatch/pkg/model"
	"github.com/ogulcanaydogan/spendwatch/pkg/storage"
	"github.com/ogulcanaydogan/spendwatch/pkg/tracker"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show a user's expenses for the current period",
	Long: `List one user's expenses for the current day, week or month with totals per
category and per day. Days over the daily threshold are flagged.`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringP("email", "e", "", "Account email")
	reportCmd.Flags().StringP("period", "P", "daily", "Report period (daily, weekly, monthly)")
	reportCmd.Flags().StringP("category", "c", "", "Filter by category")
	reportCmd.Flags().StringP("output", "o", outputTable, "Output format (table, json, yaml)")
	_ = reportCmd.MarkFlagRequired("email")
}

type expenseReport struct {
	Email          string                     `json:"email" yaml:"email"`
	UserID         string                     `json:"userId" yaml:"userId"`
	Period         model.Period               `json:"period" yaml:"period"`
	StartDate      string                     `json:"startDate" yaml:"startDate"`
	EndDate        string                     `json:"endDate" yaml:"endDate"`
	Threshold      decimal.Decimal            `json:"threshold" yaml:"threshold"`
	Total          decimal.Decimal            `json:"total" yaml:"total"`
	Count          int                        `json:"count" yaml:"count"`
	CategoryTotals map[string]decimal.Decimal `json:"categoryTotals" yaml:"categoryTotals"`
	Days           []tracker.DayTotal         `json:"days" yaml:"days"`
	Expenses       []model.ExpenseRecord      `json:"expenses" yaml:"expenses"`
}

func runReport(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	email, _ := cmd.Flags().GetString("email")
	period, _ := cmd.Flags().GetString("period")
	category, _ := cmd.Flags().GetString("category")
	format, _ := cmd.Flags().GetString("output")

	p := model.Period(period)
	if !slices.Contains([]model.Period{model.PeriodDaily, model.PeriodWeekly, model.PeriodMonthly}, p) {
		return fmt.Errorf("unknown period %q (want daily, weekly or monthly)", period)
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := a.store.GetUserByEmail(cmd.Context(), auth.NormalizeEmail(email))
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("no account for %s", email)
	}
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	start, end := model.PeriodBounds(p, time.Now().In(loc))
	listing, err := a.expenses.List(cmd.Context(), user.UserID, model.ExpenseFilter{
		Category:  category,
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		return fmt.Errorf("list expenses: %w", err)
	}

	rep := expenseReport{
		Email:          user.Email,
		UserID:         user.UserID,
		Period:         p,
		StartDate:      start,
		EndDate:        end,
		Threshold:      a.evaluator.Threshold(),
		Total:          listing.Total,
		Count:          listing.Count,
		CategoryTotals: listing.CategoryTotals,
		Days:           tracker.DailyTotals(listing.Expenses, a.evaluator.Threshold()),
		Expenses:       listing.Expenses,
	}

	return render(cmd.OutOrStdout(), format, rep, func(w *tabwriter.Writer) {
		printReport(w, &rep)
	})
}

func printReport(w *tabwriter.Writer, r *expenseReport) {
	fmt.Fprintf(w, "=== Expense Report (%s) ===\n", r.Period)
	fmt.Fprintf(w, "Account:\t%s\n", r.Email)
	fmt.Fprintf(w, "Period:\t%s to %s\n", r.StartDate, r.EndDate)
	fmt.Fprintf(w, "Total:\t$%s\n", r.Total.StringFixed(2))
	fmt.Fprintf(w, "Expenses:\t%d\n", r.Count)

	if len(r.CategoryTotals) > 0 {
		cats := make([]string, 0, len(r.CategoryTotals))
		for c := range r.CategoryTotals {
			cats = append(cats, c)
		}
		slices.Sort(cats)

		fmt.Fprintf(w, "\nBy Category:\n")
		fmt.Fprintf(w, "  CATEGORY\tTOTAL\n")
		for _, c := range cats {
			fmt.Fprintf(w, "  %s\t$%s\n", c, r.CategoryTotals[c].StringFixed(2))
		}
	}

	if len(r.Days) > 0 {
		fmt.Fprintf(w, "\nBy Day (threshold $%s):\n", r.Threshold.String())
		fmt.Fprintf(w, "  DATE\tCOUNT\tTOTAL\t\n")
		for _, d := range r.Days {
			flag := ""
			if d.OverLimit {
				flag = "OVER"
			}
			fmt.Fprintf(w, "  %s\t%d\t$%s\t%s\n", d.Date, d.Count, d.Total.StringFixed(2), flag)
		}
	}

	if len(r.Expenses) > 0 {
		fmt.Fprintf(w, "\nExpenses:\n")
		fmt.Fprintf(w, "  DATE\tID\tCATEGORY\tAMOUNT\tNOTES\n")
		for _, e := range r.Expenses {
			fmt.Fprintf(w, "  %s\t%s\t%s\t$%s\t%s\n", e.Date, e.ExpenseID, e.Category, e.Amount.StringFixed(2), e.Notes)
		}
	}
}
