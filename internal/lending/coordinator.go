package lending

import (
	"context"

	"github.com/erazemk/posoja/internal/model"
	"github.com/erazemk/posoja/internal/store"
)

// Availability is what a user sees when looking for a copy of a book.
type Availability struct {
	Own *model.Copy `json:"own"`
	Match
}

// OwnerView is an owner's copy of a book and its current loan, if any.
type OwnerView struct {
	Copy    *model.Copy `json:"copy"`
	Loan    *model.Loan `json:"loan"`
	Actions []Action    `json:"actions"`
}

// AvailableCopies ranks the copies of a book that viewerID could borrow by
// distance from from. The viewer's own copy is reported separately.
func (s *Service) AvailableCopies(ctx context.Context, bookID, viewerID int64, from *model.Point) (*Availability, error) {
	copies, err := s.ListAvailableCopiesForBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	own, err := s.FindOwnerCopy(ctx, viewerID, bookID)
	if err != nil {
		return nil, err
	}

	others := make([]model.Copy, 0, len(copies))
	for _, c := range copies {
		if c.OwnerID != viewerID {
			others = append(others, c)
		}
	}

	return &Availability{Own: own, Match: MatchCopies(from, others)}, nil
}

// Borrow requests a loan and returns it with the borrower's next actions.
func (s *Service) Borrow(ctx context.Context, borrowerID, copyID int64) (*LoanView, error) {
	l, err := s.RequestLoan(ctx, borrowerID, copyID)
	if err != nil {
		return nil, err
	}
	return &LoanView{Loan: l, Actions: Actions(l, PartyBorrower)}, nil
}

// OwnerView returns the owner's copy of a book with its open loan and the
// actions the owner can take on it. Copy is nil if the owner has none.
func (s *Service) OwnerView(ctx context.Context, ownerID, bookID int64) (*OwnerView, error) {
	if err := s.requireBook(ctx, bookID); err != nil {
		return nil, err
	}
	c, err := s.FindOwnerCopy(ctx, ownerID, bookID)
	if err != nil {
		return nil, err
	}
	v := &OwnerView{Copy: c, Actions: []Action{}}
	if c == nil {
		return v, nil
	}

	l, err := store.FindOpenLoan(ctx, s.DB, c.ID)
	if err != nil {
		return nil, err
	}
	if l != nil {
		l.Classify(s.now())
		v.Loan = l
		v.Actions = Actions(l, PartyOwner)
	}
	return v, nil
}
