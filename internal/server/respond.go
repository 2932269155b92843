package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ogulcanaydogan/spendwatch/pkg/model"
)

// expenseView renders amounts as JSON numbers.
type expenseView struct {
	UserID    string      `json:"userId"`
	ExpenseID string      `json:"expenseId"`
	Amount    json.Number `json:"amount"`
	Category  string      `json:"category"`
	Date      string      `json:"date"`
	Notes     string      `json:"notes"`
	CreatedAt time.Time   `json:"createdAt"`
}

type listingView struct {
	Expenses       []expenseView          `json:"expenses"`
	Total          json.Number            `json:"total"`
	CategoryTotals map[string]json.Number `json:"categoryTotals"`
	Count          int                    `json:"count"`
}

func newExpenseView(r model.ExpenseRecord) expenseView {
	return expenseView{
		UserID:    r.UserID,
		ExpenseID: r.ExpenseID,
		Amount:    json.Number(r.Amount.String()),
		Category:  r.Category,
		Date:      r.Date,
		Notes:     r.Notes,
		CreatedAt: r.CreatedAt,
	}
}

func newListingView(l *model.ExpenseListing) listingView {
	v := listingView{
		Expenses:       make([]expenseView, 0, len(l.Expenses)),
		Total:          json.Number(l.Total.String()),
		CategoryTotals: make(map[string]json.Number, len(l.CategoryTotals)),
		Count:          l.Count,
	}
	for _, r := range l.Expenses {
		v.Expenses = append(v.Expenses, newExpenseView(r))
	}
	for cat, total := range l.CategoryTotals {
		v.CategoryTotals[cat] = json.Number(total.String())
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) serverError(w http.ResponseWriter, op string, err error) {
	s.logger.Error(op, "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error":   "Internal server error",
		"message": err.Error(),
	})
}

// decodeBody reads a JSON request body into v and answers 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
