// Package lending coordinates physical-copy loans between users: the copy
// registry, proximity matching of available copies, the loan state machine
// and the system messages that narrate each loan.
//
// All operations take the acting user's ID explicitly; authorization is
// decided per call from the copy's owner, the loan's borrower and the
// actor's role in the user directory.
package lending

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/erazemk/posoja/internal/model"
	"github.com/erazemk/posoja/internal/photos"
	"github.com/erazemk/posoja/internal/store"
)

// UserDirectory resolves users. Unknown users yield an error wrapping store.ErrUnknown.
type UserDirectory interface {
	UserName(ctx context.Context, userID int64) (string, error)
	UserRole(ctx context.Context, userID int64) (string, error)
}

// BookCatalog resolves book titles. Unknown books yield an error wrapping store.ErrUnknown.
type BookCatalog interface {
	BookTitle(ctx context.Context, bookID int64) (string, error)
}

// ChatStore receives loan conversation messages.
type ChatStore interface {
	AppendMessage(ctx context.Context, loanID int64, authorID *int64, body, kind string) (int64, error)
}

// Hook observes committed loan changes. It cannot fail the change it observes.
type Hook interface {
	LoanChanged(ctx context.Context, ev Event)
}

// Service implements the lending operations on top of the database.
type Service struct {
	DB    *sql.DB
	Users UserDirectory
	Books BookCatalog
	Hooks []Hook

	// Photos stores copy photos; photo operations fail when it is nil.
	Photos photos.Store

	// Now returns the current time; defaults to time.Now.
	Now func() time.Time
}

// NewService creates a lending service.
func NewService(db *sql.DB, users UserDirectory, books BookCatalog, hooks ...Hook) *Service {
	return &Service{
		DB:    db,
		Users: users,
		Books: books,
		Hooks: hooks,
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// isAdmin resolves the actor's role. Unknown actors are not authorized to do anything.
func (s *Service) isAdmin(ctx context.Context, userID int64) (bool, error) {
	role, err := s.Users.UserRole(ctx, userID)
	if errors.Is(err, store.ErrUnknown) {
		return false, errorf(ErrAuthorization, "unknown user %d", userID)
	}
	if err != nil {
		return false, fmt.Errorf("resolving user role: %w", err)
	}
	return role == model.RoleAdmin, nil
}

func (s *Service) requireBook(ctx context.Context, bookID int64) error {
	_, err := s.Books.BookTitle(ctx, bookID)
	if errors.Is(err, store.ErrUnknown) {
		return errorf(ErrNotFound, "book %d not found", bookID)
	}
	if err != nil {
		return fmt.Errorf("resolving book: %w", err)
	}
	return nil
}

func (s *Service) emit(ctx context.Context, ev Event) {
	for _, h := range s.Hooks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("loan hook panicked", "loan", ev.Loan.ID, "event", ev.Kind, "panic", r)
				}
			}()
			h.LoanChanged(ctx, ev)
		}()
	}
}
