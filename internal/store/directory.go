package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrUnknown is returned by Directory lookups for missing or deleted records.
var ErrUnknown = errors.New("unknown record")

// Directory exposes users, book titles and loan conversations stored in the
// database through the narrow lookups the lending core consumes.
type Directory struct {
	DB *sql.DB
}

// UserRole returns the role of a live user.
func (d *Directory) UserRole(ctx context.Context, userID int64) (string, error) {
	u, err := GetUser(ctx, d.DB, userID)
	if err != nil {
		return "", err
	}
	if u == nil || u.DeletedAt != nil {
		return "", fmt.Errorf("user %d: %w", userID, ErrUnknown)
	}
	return u.Role, nil
}

// UserName returns the username of a user, deleted or not.
func (d *Directory) UserName(ctx context.Context, userID int64) (string, error) {
	u, err := GetUser(ctx, d.DB, userID)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", fmt.Errorf("user %d: %w", userID, ErrUnknown)
	}
	return u.Username, nil
}

// BookTitle returns the title of a live book.
func (d *Directory) BookTitle(ctx context.Context, bookID int64) (string, error) {
	b, err := GetBook(ctx, d.DB, bookID)
	if err != nil {
		return "", err
	}
	if b == nil || b.DeletedAt != nil {
		return "", fmt.Errorf("book %d: %w", bookID, ErrUnknown)
	}
	return b.Title, nil
}

// AppendMessage writes a message to a loan's conversation and returns its ID.
func (d *Directory) AppendMessage(ctx context.Context, loanID int64, authorID *int64, body, kind string) (int64, error) {
	m, err := AppendMessage(ctx, d.DB, loanID, authorID, kind, body)
	if err != nil {
		return 0, err
	}
	return m.ID, nil
}
