package model

import "time"

// LoanStatus is the stored lifecycle state of a loan.
type LoanStatus string

// Loan statuses. Overdue is never stored; see Loan.Overdue.
const (
	LoanRequested LoanStatus = "REQUESTED"
	LoanApproved  LoanStatus = "APPROVED"
	LoanActive    LoanStatus = "ACTIVE"
	LoanReturned  LoanStatus = "RETURNED"
	LoanCanceled  LoanStatus = "CANCELED"

	LoanOverdue LoanStatus = "OVERDUE"
)

// Valid reports whether s is a storable status.
func (s LoanStatus) Valid() bool {
	switch s {
	case LoanRequested, LoanApproved, LoanActive, LoanReturned, LoanCanceled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are possible from s.
func (s LoanStatus) Terminal() bool {
	return s == LoanReturned || s == LoanCanceled
}

// Loan is a single borrowing of one copy by one borrower.
type Loan struct {
	ID          int64      `json:"id"`
	CopyID      int64      `json:"copy_id"`
	BorrowerID  int64      `json:"borrower_id"`
	Status      LoanStatus `json:"status"`
	RequestedAt time.Time  `json:"requested_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	ReturnedAt  *time.Time `json:"returned_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Version     int64      `json:"version"`

	// Joined fields (not always populated).
	BookID       int64  `json:"book_id,omitempty"`
	BookTitle    string `json:"book_title,omitempty"`
	OwnerID      int64  `json:"owner_id,omitempty"`
	OwnerName    string `json:"owner_name,omitempty"`
	BorrowerName string `json:"borrower_name,omitempty"`

	// Read-time classification, filled by Classify.
	IsOverdue     bool       `json:"overdue"`
	DisplayStatus LoanStatus `json:"display_status,omitempty"`
}

// Overdue reports whether the loan is active and past its due date at now.
func (l *Loan) Overdue(now time.Time) bool {
	return l.Status == LoanActive && l.DueAt != nil && now.After(*l.DueAt)
}

// Classify fills the read-time fields for now without touching Status.
func (l *Loan) Classify(now time.Time) {
	l.IsOverdue = l.Overdue(now)
	l.DisplayStatus = l.Status
	if l.IsOverdue {
		l.DisplayStatus = LoanOverdue
	}
}
