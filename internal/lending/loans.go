package lending

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/erazemk/posoja/internal/model"
	"github.com/erazemk/posoja/internal/store"
)

// MaxMessageLength is the longest chat message a party may post.
const MaxMessageLength = 2000

// EventKind identifies what happened to a loan.
type EventKind string

const (
	EventRequested     EventKind = "requested"
	EventStatusChanged EventKind = "status_changed"
	EventDueDateSet    EventKind = "due_date_set"
)

// Event describes a committed loan change.
type Event struct {
	Kind    EventKind
	Loan    model.Loan
	ActorID int64
	From    model.LoanStatus
	To      model.LoanStatus
}

// LoanView is a loan together with what the viewer may do with it.
type LoanView struct {
	*model.Loan
	Actions []Action `json:"actions"`
}

// RequestLoan opens a loan of copyID for borrowerID.
func (s *Service) RequestLoan(ctx context.Context, borrowerID, copyID int64) (*model.Loan, error) {
	if _, err := s.isAdmin(ctx, borrowerID); err != nil {
		return nil, err
	}
	c, err := s.GetCopy(ctx, copyID)
	if err != nil {
		return nil, err
	}
	if c.OwnerID == borrowerID {
		return nil, errorf(ErrValidation, "cannot loan your own copy")
	}
	if !c.AvailableForLoan {
		return nil, errorf(ErrValidation, "copy is not available for loan")
	}

	now := s.now()
	l, err := store.CreateLoan(ctx, s.DB, copyID, borrowerID, now)
	if errors.Is(err, store.ErrUnavailable) {
		return nil, errorf(ErrValidation, "copy is not available for loan")
	}
	if errors.Is(err, store.ErrOpenLoan) {
		return nil, errorf(ErrConflict, "copy already has an open loan")
	}
	if err != nil {
		return nil, err
	}

	s.emit(ctx, Event{Kind: EventRequested, Loan: *l, ActorID: borrowerID, To: l.Status})
	l.Classify(now)
	return l, nil
}

// loadLoan fetches a loan and the capacities in which actorID acts on it.
func (s *Service) loadLoan(ctx context.Context, loanID, actorID int64) (*model.Loan, []Party, error) {
	admin, err := s.isAdmin(ctx, actorID)
	if err != nil {
		return nil, nil, err
	}
	l, err := store.GetLoan(ctx, s.DB, loanID)
	if err != nil {
		return nil, nil, err
	}
	if l == nil {
		return nil, nil, errorf(ErrNotFound, "loan %d not found", loanID)
	}
	return l, partiesOf(l, actorID, admin), nil
}

// Transition moves a loan to a new status. If expectedVersion is non-zero
// it must match the loan's current version.
func (s *Service) Transition(ctx context.Context, loanID, actorID int64, to model.LoanStatus, expectedVersion int64) (*model.Loan, error) {
	l, parties, err := s.loadLoan(ctx, loanID, actorID)
	if err != nil {
		return nil, err
	}
	if expectedVersion != 0 && expectedVersion != l.Version {
		return nil, staleError()
	}
	if err := checkTransition(l.Status, to, parties); err != nil {
		return nil, err
	}

	from := l.Status
	now := s.now()
	l.Status = to
	l.UpdatedAt = now

	var available *bool
	switch to {
	case model.LoanActive:
		l.StartedAt = &now
		available = new(bool)
	case model.LoanReturned:
		l.ReturnedAt = &now
		c, err := store.GetCopy(ctx, s.DB, l.CopyID)
		if err != nil {
			return nil, err
		}
		reoffer := c != nil && c.DeletedAt == nil && c.Location != nil && c.Location.Known()
		available = &reoffer
	}

	err = store.UpdateLoan(ctx, s.DB, l, available)
	if errors.Is(err, store.ErrStale) {
		return nil, staleError()
	}
	if err != nil {
		return nil, err
	}

	s.emit(ctx, Event{Kind: EventStatusChanged, Loan: *l, ActorID: actorID, From: from, To: to})
	l.Classify(now)
	return l, nil
}

// Approve accepts a requested loan.
func (s *Service) Approve(ctx context.Context, loanID, actorID int64) (*model.Loan, error) {
	return s.Transition(ctx, loanID, actorID, model.LoanApproved, 0)
}

// Cancel withdraws a loan that has not started.
func (s *Service) Cancel(ctx context.Context, loanID, actorID int64) (*model.Loan, error) {
	return s.Transition(ctx, loanID, actorID, model.LoanCanceled, 0)
}

// HandOver records that the copy changed hands.
func (s *Service) HandOver(ctx context.Context, loanID, actorID int64) (*model.Loan, error) {
	return s.Transition(ctx, loanID, actorID, model.LoanActive, 0)
}

// Return records that the copy came back to its owner.
func (s *Service) Return(ctx context.Context, loanID, actorID int64) (*model.Loan, error) {
	return s.Transition(ctx, loanID, actorID, model.LoanReturned, 0)
}

// SetDueDate sets or replaces the due date of an open loan.
func (s *Service) SetDueDate(ctx context.Context, loanID, actorID int64, due time.Time, expectedVersion int64) (*model.Loan, error) {
	if due.IsZero() {
		return nil, errorf(ErrValidation, "due date is required")
	}
	l, parties, err := s.loadLoan(ctx, loanID, actorID)
	if err != nil {
		return nil, err
	}
	if expectedVersion != 0 && expectedVersion != l.Version {
		return nil, staleError()
	}
	if err := checkDueDate(l.Status, parties); err != nil {
		return nil, err
	}

	now := s.now()
	due = due.UTC()
	l.DueAt = &due
	l.UpdatedAt = now

	err = store.UpdateLoan(ctx, s.DB, l, nil)
	if errors.Is(err, store.ErrStale) {
		return nil, staleError()
	}
	if err != nil {
		return nil, err
	}

	s.emit(ctx, Event{Kind: EventDueDateSet, Loan: *l, ActorID: actorID, From: l.Status, To: l.Status})
	l.Classify(now)
	return l, nil
}

// GetLoan returns a loan to one of its parties or an admin.
func (s *Service) GetLoan(ctx context.Context, loanID, requesterID int64) (*LoanView, error) {
	l, parties, err := s.loadLoan(ctx, loanID, requesterID)
	if err != nil {
		return nil, err
	}
	if len(parties) == 0 {
		return nil, errorf(ErrAuthorization, "not a party to this loan")
	}
	l.Classify(s.now())
	return &LoanView{Loan: l, Actions: actionsFor(l, parties)}, nil
}

// ListLoans returns the user's loans as borrower or as owner, newest first.
func (s *Service) ListLoans(ctx context.Context, userID int64, as Party) ([]model.Loan, error) {
	var loans []model.Loan
	var err error
	switch as {
	case PartyBorrower:
		loans, err = store.ListLoansByBorrower(ctx, s.DB, userID)
	case PartyOwner:
		loans, err = store.ListLoansByOwner(ctx, s.DB, userID)
	default:
		return nil, errorf(ErrValidation, "unknown role %q, expected borrower or owner", as)
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	for i := range loans {
		loans[i].Classify(now)
	}
	return loans, nil
}

// Messages returns a loan's conversation to one of its parties or an admin.
func (s *Service) Messages(ctx context.Context, loanID, requesterID int64) ([]model.Message, error) {
	if _, err := s.GetLoan(ctx, loanID, requesterID); err != nil {
		return nil, err
	}
	return store.ListMessages(ctx, s.DB, loanID)
}

// PostMessage appends a user-authored message to a loan's conversation.
func (s *Service) PostMessage(ctx context.Context, loanID, authorID int64, body string) (*model.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, errorf(ErrValidation, "message is empty")
	}
	if utf8.RuneCountInString(body) > MaxMessageLength {
		return nil, errorf(ErrValidation, "message is longer than %d characters", MaxMessageLength)
	}
	if _, err := s.GetLoan(ctx, loanID, authorID); err != nil {
		return nil, err
	}
	return store.AppendMessage(ctx, s.DB, loanID, &authorID, model.MessageUser, body)
}
