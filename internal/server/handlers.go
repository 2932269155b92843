package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ogulcanaydogan/spendwatch/pkg/auth"
	"github.com/ogulcanaydogan/spendwatch/pkg/model"
	"github.com/ogulcanaydogan/spendwatch/pkg/storage"
	"github.com/ogulcanaydogan/spendwatch/pkg/tracker"
)

const maxBodyBytes = 1 << 20

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type createExpenseRequest struct {
	Amount   json.RawMessage `json:"amount"`
	Category string          `json:"category"`
	Date     string          `json:"date"`
	Notes    string          `json:"notes"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "OK",
		"message": "Expense Tracker API is running",
	})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := s.auth.Signup(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, auth.ErrCredentialsRequired):
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	case errors.Is(err, auth.ErrPasswordTooShort):
		writeError(w, http.StatusBadRequest, "Password must be at least 8 characters")
		return
	case errors.Is(err, auth.ErrUserExists):
		writeError(w, http.StatusConflict, "User already exists")
		return
	case err != nil:
		s.serverError(w, "signup", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"message": "User created successfully",
		"userId":  user.UserID,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	token, user, err := s.auth.Login(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, auth.ErrCredentialsRequired):
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	case err != nil:
		s.serverError(w, "login", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"token":   token,
		"user": auth.Identity{
			UserID: user.UserID,
			Email:  user.Email,
		},
	})
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req createExpenseRequest
	if !decodeBody(w, r, &req) {
		return
	}

	id := identityFrom(r.Context())
	rec, err := s.expenses.Create(r.Context(), id.UserID, tracker.NewExpense{
		Amount:   amountText(req.Amount),
		Category: req.Category,
		Date:     req.Date,
		Notes:    req.Notes,
	})
	var verr *tracker.ValidationError
	if errors.As(err, &verr) {
		writeError(w, http.StatusBadRequest, verr.Message)
		return
	}
	if err != nil {
		s.serverError(w, "create expense", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Expense created successfully",
		"expense": newExpenseView(*rec),
	})
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.ExpenseFilter{
		Category:  q.Get("category"),
		StartDate: q.Get("startDate"),
		EndDate:   q.Get("endDate"),
	}

	id := identityFrom(r.Context())
	listing, err := s.expenses.List(r.Context(), id.UserID, filter)
	if err != nil {
		s.serverError(w, "list expenses", err)
		return
	}

	writeJSON(w, http.StatusOK, newListingView(listing))
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	expenseID := chi.URLParam(r, "id")

	id := identityFrom(r.Context())
	_, err := s.expenses.Delete(r.Context(), id.UserID, expenseID)
	var verr *tracker.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Message)
		return
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "Expense not found")
		return
	case err != nil:
		s.serverError(w, "delete expense", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message":   "Expense deleted successfully",
		"expenseId": expenseID,
	})
}

// amountText accepts a JSON number or a numeric string. An absent or null amount
// yields "" so the service reports the missing field. Any other JSON value is
// passed through as raw text and rejected by the service as an invalid amount.
func amountText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}
