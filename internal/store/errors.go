package store

import (
	"errors"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("duplicate record")

	// ErrStale is returned when a versioned update finds a newer version.
	ErrStale = errors.New("record was modified concurrently")

	// ErrOpenLoan is returned when a copy already has a non-terminal loan.
	ErrOpenLoan = errors.New("copy already has an open loan")

	// ErrUnavailable is returned when a loan is requested for a copy that is
	// deleted or not offered for loan.
	ErrUnavailable = errors.New("copy is not available for loan")
)

// isUniqueViolation reports whether err is a SQLite unique or primary key
// constraint failure.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}
