package model

import (
	"testing"
	"time"
)

func TestLoanOverdue(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)

	tests := []struct {
		name   string
		status LoanStatus
		due    *time.Time
		want   bool
	}{
		{"active past due", LoanActive, &past, true},
		{"active not yet due", LoanActive, &future, false},
		{"active without due date", LoanActive, nil, false},
		{"approved past due", LoanApproved, &past, false},
		{"returned past due", LoanReturned, &past, false},
	}

	for _, tt := range tests {
		l := &Loan{Status: tt.status, DueAt: tt.due}
		if got := l.Overdue(now); got != tt.want {
			t.Errorf("%s: Overdue = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestLoanClassifyKeepsStatus(t *testing.T) {
	now := time.Now()
	due := now.Add(-time.Hour)
	l := &Loan{Status: LoanActive, DueAt: &due}

	l.Classify(now)

	if l.Status != LoanActive {
		t.Errorf("expected stored status ACTIVE, got %s", l.Status)
	}
	if !l.IsOverdue || l.DisplayStatus != LoanOverdue {
		t.Errorf("expected overdue classification, got overdue=%v display=%s", l.IsOverdue, l.DisplayStatus)
	}
}

func TestLoanStatusTerminal(t *testing.T) {
	for _, s := range []LoanStatus{LoanReturned, LoanCanceled} {
		if !s.Terminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}
	for _, s := range []LoanStatus{LoanRequested, LoanApproved, LoanActive} {
		if s.Terminal() {
			t.Errorf("expected %s to be non-terminal", s)
		}
	}
	if LoanOverdue.Valid() {
		t.Error("OVERDUE must not be a storable status")
	}
}
