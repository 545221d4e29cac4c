package lending

import (
	"slices"

	"github.com/erazemk/posoja/internal/model"
)

// Party is the capacity in which a user acts on a loan.
type Party string

const (
	PartyBorrower Party = "borrower"
	PartyOwner    Party = "owner"
	PartyAdmin    Party = "admin"
)

// Action names an operation a party may perform on a loan in its current state.
type Action struct {
	Name string           `json:"action"`
	To   model.LoanStatus `json:"to,omitempty"`
}

// Action names.
const (
	ActionApprove    = "approve"
	ActionCancel     = "cancel"
	ActionHandOver   = "hand_over"
	ActionReturn     = "return"
	ActionSetDueDate = "set_due_date"
)

type rule struct {
	name    string
	from    model.LoanStatus
	to      model.LoanStatus
	parties []Party
}

var transitions = []rule{
	{ActionApprove, model.LoanRequested, model.LoanApproved, []Party{PartyOwner, PartyAdmin}},
	{ActionCancel, model.LoanRequested, model.LoanCanceled, []Party{PartyBorrower, PartyOwner, PartyAdmin}},
	// A pickup can still fall through after approval. Once handed over, only a return ends the loan.
	{ActionCancel, model.LoanApproved, model.LoanCanceled, []Party{PartyBorrower, PartyOwner, PartyAdmin}},
	{ActionHandOver, model.LoanApproved, model.LoanActive, []Party{PartyOwner, PartyAdmin}},
	{ActionReturn, model.LoanActive, model.LoanReturned, []Party{PartyOwner, PartyAdmin}},
}

var dueDateParties = []Party{PartyOwner, PartyAdmin}

func (r rule) allows(parties []Party) bool {
	return anyOf(r.parties, parties)
}

func anyOf(allowed, held []Party) bool {
	for _, p := range held {
		if slices.Contains(allowed, p) {
			return true
		}
	}
	return false
}

func findRule(from, to model.LoanStatus) (rule, bool) {
	for _, r := range transitions {
		if r.from == from && r.to == to {
			return r, true
		}
	}
	return rule{}, false
}

// partiesOf returns every capacity in which userID acts on l.
func partiesOf(l *model.Loan, userID int64, admin bool) []Party {
	var ps []Party
	if l.BorrowerID == userID {
		ps = append(ps, PartyBorrower)
	}
	if l.OwnerID == userID {
		ps = append(ps, PartyOwner)
	}
	if admin {
		ps = append(ps, PartyAdmin)
	}
	return ps
}

// checkTransition decides whether parties may move a loan from one status to another.
func checkTransition(from, to model.LoanStatus, parties []Party) error {
	if len(parties) == 0 {
		return errorf(ErrAuthorization, "not a party to this loan")
	}
	r, ok := findRule(from, to)
	if !ok {
		return &TransitionError{From: from, To: to}
	}
	if !r.allows(parties) {
		return errorf(ErrAuthorization, "%s is not allowed to move a loan from %s to %s", parties[0], from, to)
	}
	return nil
}

func checkDueDate(status model.LoanStatus, parties []Party) error {
	if len(parties) == 0 {
		return errorf(ErrAuthorization, "not a party to this loan")
	}
	if status.Terminal() {
		return &TransitionError{From: status, Action: "set the due date of"}
	}
	if !anyOf(dueDateParties, parties) {
		return errorf(ErrAuthorization, "only the owner can set the due date")
	}
	return nil
}

// Actions lists what a party may do with a loan in its current status.
func Actions(l *model.Loan, party Party) []Action {
	actions := []Action{}
	for _, r := range transitions {
		if r.from == l.Status && slices.Contains(r.parties, party) {
			actions = append(actions, Action{Name: r.name, To: r.to})
		}
	}
	if !l.Status.Terminal() && slices.Contains(dueDateParties, party) {
		actions = append(actions, Action{Name: ActionSetDueDate})
	}
	return actions
}

func actionsFor(l *model.Loan, parties []Party) []Action {
	seen := map[Action]bool{}
	actions := []Action{}
	for _, p := range parties {
		for _, a := range Actions(l, p) {
			if !seen[a] {
				seen[a] = true
				actions = append(actions, a)
			}
		}
	}
	return actions
}
