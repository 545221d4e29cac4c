package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/posoja/internal/model"
)

const loanColumns = `l.id, l.copy_id, l.borrower_id, l.status, l.requested_at, l.started_at,
	l.due_at, l.returned_at, l.updated_at, l.version,
	c.book_id, b.title AS book_title, c.owner_id, o.username AS owner_name, br.username AS borrower_name`

const loanJoins = `FROM loans l
	JOIN copies c ON c.id = l.copy_id
	JOIN books b ON b.id = c.book_id
	JOIN users o ON o.id = c.owner_id
	JOIN users br ON br.id = l.borrower_id`

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// CreateLoan records a new loan request in the REQUESTED state.
// It returns ErrUnavailable if the copy is not offered for loan and
// ErrOpenLoan if the copy already has a non-terminal loan.
func CreateLoan(ctx context.Context, db *sql.DB, copyID, borrowerID int64, now time.Time) (*model.Loan, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	offered, err := isOffered(ctx, tx, copyID)
	if err != nil {
		return nil, err
	}
	if !offered {
		return nil, ErrUnavailable
	}

	open, err := hasOpenLoan(ctx, tx, copyID)
	if err != nil {
		return nil, err
	}
	if open {
		return nil, ErrOpenLoan
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO loans (copy_id, borrower_id, status, requested_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		copyID, borrowerID, string(model.LoanRequested), now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrOpenLoan
		}
		return nil, fmt.Errorf("creating loan: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting loan id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing loan: %w", err)
	}

	return GetLoan(ctx, db, id)
}

// GetLoan returns a loan by ID.
func GetLoan(ctx context.Context, db *sql.DB, id int64) (*model.Loan, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+loanColumns+` `+loanJoins+` WHERE l.id = ?`, id,
	)
	l, err := scanLoan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting loan: %w", err)
	}
	return l, nil
}

// FindOpenLoan returns the non-terminal loan of a copy, or nil if there is none.
func FindOpenLoan(ctx context.Context, db *sql.DB, copyID int64) (*model.Loan, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+loanColumns+` `+loanJoins+`
		 WHERE l.copy_id = ? AND l.status IN ('REQUESTED', 'APPROVED', 'ACTIVE')`, copyID,
	)
	l, err := scanLoan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding open loan: %w", err)
	}
	return l, nil
}

// ListLoansByBorrower returns the loans a user has requested, newest first.
func ListLoansByBorrower(ctx context.Context, db *sql.DB, borrowerID int64) ([]model.Loan, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+loanColumns+` `+loanJoins+`
		 WHERE l.borrower_id = ?
		 ORDER BY l.requested_at DESC, l.id DESC`, borrowerID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing borrower loans: %w", err)
	}
	defer rows.Close()

	return scanLoans(rows)
}

// ListLoansByOwner returns the loans against a user's copies, newest first.
func ListLoansByOwner(ctx context.Context, db *sql.DB, ownerID int64) ([]model.Loan, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+loanColumns+` `+loanJoins+`
		 WHERE c.owner_id = ?
		 ORDER BY l.requested_at DESC, l.id DESC`, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing owner loans: %w", err)
	}
	defer rows.Close()

	return scanLoans(rows)
}

// UpdateLoan writes the mutable fields of l if its stored version still equals
// l.Version, and bumps the version. If copyAvailable is non-nil the copy's
// availability is set in the same transaction. A concurrent modification
// yields ErrStale and leaves both records unchanged.
func UpdateLoan(ctx context.Context, db *sql.DB, l *model.Loan, copyAvailable *bool) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE loans SET status = ?, started_at = ?, due_at = ?, returned_at = ?,
		        updated_at = ?, version = version + 1
		 WHERE id = ? AND version = ?`,
		string(l.Status), l.StartedAt, l.DueAt, l.ReturnedAt, l.UpdatedAt, l.ID, l.Version,
	)
	if err != nil {
		return fmt.Errorf("updating loan: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking loan update: %w", err)
	}
	if n == 0 {
		return ErrStale
	}

	if copyAvailable != nil {
		_, err = tx.ExecContext(ctx,
			`UPDATE copies SET is_available_for_loan = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			*copyAvailable, l.CopyID,
		)
		if err != nil {
			return fmt.Errorf("updating copy availability: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing loan update: %w", err)
	}

	l.Version++
	return nil
}

func isOffered(ctx context.Context, q querier, copyID int64) (bool, error) {
	var offered bool
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM copies
		 WHERE id = ? AND is_available_for_loan = 1 AND deleted_at IS NULL)`, copyID,
	).Scan(&offered)
	if err != nil {
		return false, fmt.Errorf("checking copy availability: %w", err)
	}
	return offered, nil
}

func hasOpenLoan(ctx context.Context, q querier, copyID int64) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM loans
		 WHERE copy_id = ? AND status IN ('REQUESTED', 'APPROVED', 'ACTIVE')`, copyID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking open loans: %w", err)
	}
	return count > 0, nil
}

func scanLoan(row rowScanner) (*model.Loan, error) {
	l := &model.Loan{}
	err := row.Scan(&l.ID, &l.CopyID, &l.BorrowerID, &l.Status, &l.RequestedAt, &l.StartedAt,
		&l.DueAt, &l.ReturnedAt, &l.UpdatedAt, &l.Version,
		&l.BookID, &l.BookTitle, &l.OwnerID, &l.OwnerName, &l.BorrowerName)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func scanLoans(rows *sql.Rows) ([]model.Loan, error) {
	var loans []model.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning loan: %w", err)
		}
		loans = append(loans, *l)
	}
	return loans, rows.Err()
}
