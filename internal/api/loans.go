package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/posoja/internal/lending"
	"github.com/erazemk/posoja/internal/model"
)

// LoansHandler handles loans and their conversations.
type LoansHandler struct {
	Lending *lending.Service
}

type createLoanRequest struct {
	CopyID int64 `json:"copy_id" validate:"required,gt=0"`
}

type statusRequest struct {
	Status          model.LoanStatus `json:"status" validate:"required,oneof=APPROVED ACTIVE RETURNED CANCELED"`
	ExpectedVersion int64            `json:"expected_version" validate:"gte=0"`
}

type dueDateRequest struct {
	DueDate         string `json:"due_date" validate:"required"`
	ExpectedVersion int64  `json:"expected_version" validate:"gte=0"`
}

type messageRequest struct {
	Body string `json:"body" validate:"required"`
}

// Create handles POST /api/loans.
func (h *LoansHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createLoanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	claims := GetClaims(r.Context())
	v, err := h.Lending.Borrow(r.Context(), claims.UserID, req.CopyID)
	if err != nil {
		lendingError(w, err, "request loan")
		return
	}

	slog.Info("loan requested", "user", claims.Username, "loan", v.ID, "copy", v.CopyID, "book", v.BookTitle)
	jsonResponse(w, http.StatusCreated, v)
}

// List handles GET /api/loans?as=borrower|owner.
func (h *LoansHandler) List(w http.ResponseWriter, r *http.Request) {
	as := lending.Party(r.URL.Query().Get("as"))
	if as == "" {
		as = lending.PartyBorrower
	}

	claims := GetClaims(r.Context())
	loans, err := h.Lending.ListLoans(r.Context(), claims.UserID, as)
	if err != nil {
		lendingError(w, err, "list loans")
		return
	}
	if loans == nil {
		loans = []model.Loan{}
	}
	jsonResponse(w, http.StatusOK, loans)
}

// Get handles GET /api/loans/{id}.
func (h *LoansHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	claims := GetClaims(r.Context())
	v, err := h.Lending.GetLoan(r.Context(), id, claims.UserID)
	if err != nil {
		lendingError(w, err, "get loan")
		return
	}
	jsonResponse(w, http.StatusOK, v)
}

// UpdateStatus handles POST /api/loans/{id}/status.
func (h *LoansHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.transition(w, r, id, req.Status, req.ExpectedVersion)
}

// Return handles POST /api/loans/{id}/return.
func (h *LoansHandler) Return(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	h.transition(w, r, id, model.LoanReturned, 0)
}

func (h *LoansHandler) transition(w http.ResponseWriter, r *http.Request, id int64, to model.LoanStatus, version int64) {
	claims := GetClaims(r.Context())
	l, err := h.Lending.Transition(r.Context(), id, claims.UserID, to, version)
	if err != nil {
		lendingError(w, err, "update loan")
		return
	}

	slog.Info("loan status changed", "user", claims.Username, "loan", l.ID, "status", l.Status)
	h.respond(w, r, l.ID)
}

// SetDueDate handles PUT /api/loans/{id}/due-date. The date is YYYY-MM-DD or RFC 3339.
func (h *LoansHandler) SetDueDate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req dueDateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	due, err := parseDueDate(req.DueDate)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "due_date must be YYYY-MM-DD or RFC 3339")
		return
	}

	claims := GetClaims(r.Context())
	l, err := h.Lending.SetDueDate(r.Context(), id, claims.UserID, due, req.ExpectedVersion)
	if err != nil {
		lendingError(w, err, "set due date")
		return
	}

	slog.Info("loan due date set", "user", claims.Username, "loan", l.ID, "due", l.DueAt)
	h.respond(w, r, l.ID)
}

// parseDueDate reads a due date. A bare date means the end of that day in UTC,
// so the loan is not overdue until the day has passed.
func parseDueDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
	}
	return time.Parse(time.RFC3339, s)
}

// respond writes the loan as the caller sees it, with their next actions.
func (h *LoansHandler) respond(w http.ResponseWriter, r *http.Request, id int64) {
	v, err := h.Lending.GetLoan(r.Context(), id, GetClaims(r.Context()).UserID)
	if err != nil {
		lendingError(w, err, "get loan")
		return
	}
	jsonResponse(w, http.StatusOK, v)
}

// Messages handles GET /api/loans/{id}/messages.
func (h *LoansHandler) Messages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	claims := GetClaims(r.Context())
	msgs, err := h.Lending.Messages(r.Context(), id, claims.UserID)
	if err != nil {
		lendingError(w, err, "list messages")
		return
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	jsonResponse(w, http.StatusOK, msgs)
}

// PostMessage handles POST /api/loans/{id}/messages.
func (h *LoansHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req messageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	claims := GetClaims(r.Context())
	m, err := h.Lending.PostMessage(r.Context(), id, claims.UserID, req.Body)
	if err != nil {
		lendingError(w, err, "post message")
		return
	}
	jsonResponse(w, http.StatusCreated, m)
}
