package lending

import (
	"errors"
	"fmt"

	"github.com/erazemk/posoja/internal/model"
	"github.com/erazemk/posoja/internal/store"
)

// Error kinds. Every error returned by Service that is not an internal
// failure wraps exactly one of these; match with errors.Is.
var (
	ErrValidation        = errors.New("validation failed")
	ErrAuthorization     = errors.New("not authorized")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInvalidTransition = errors.New("invalid transition")
)

// TransitionError reports a state change the loan state machine rejects.
type TransitionError struct {
	From model.LoanStatus
	To   model.LoanStatus
	// Action is set for operations that do not change status, like setting a due date.
	Action string
}

func (e *TransitionError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("invalid transition: cannot %s a loan in state %s", e.Action, e.From)
	}
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

// Is makes errors.Is(err, ErrInvalidTransition) match.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// IsRetryable reports whether err was caused by a concurrent modification
// and the operation may succeed if repeated against fresh state.
func IsRetryable(err error) bool {
	return errors.Is(err, store.ErrStale)
}

func errorf(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

func staleError() error {
	return fmt.Errorf("%w: %w", ErrConflict, store.ErrStale)
}
