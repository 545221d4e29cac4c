package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/posoja/internal/model"
)

const copyColumns = `c.id, c.book_id, c.owner_id, c.is_available_for_loan, c.latitude, c.longitude,
	c.photo_key, c.photo_mime, c.created_at, c.updated_at, c.deleted_at,
	b.title AS book_title, u.username AS owner_name`

const copyJoins = `FROM copies c
	JOIN books b ON b.id = c.book_id
	JOIN users u ON u.id = c.owner_id`

// CreateCopy registers a physical copy of a book for an owner.
// It returns ErrDuplicate if the owner already has a live copy of the book.
func CreateCopy(ctx context.Context, db *sql.DB, ownerID, bookID int64, available bool, loc *model.Point) (*model.Copy, error) {
	lat, lon := pointArgs(loc)
	result, err := db.ExecContext(ctx,
		`INSERT INTO copies (book_id, owner_id, is_available_for_loan, latitude, longitude)
		 VALUES (?, ?, ?, ?, ?)`,
		bookID, ownerID, available, lat, lon,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("creating copy: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting copy id: %w", err)
	}

	return GetCopy(ctx, db, id)
}

// GetCopy returns a copy by ID, including soft-deleted ones.
func GetCopy(ctx context.Context, db *sql.DB, id int64) (*model.Copy, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+copyColumns+` `+copyJoins+` WHERE c.id = ?`, id,
	)
	c, err := scanCopy(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting copy: %w", err)
	}
	return c, nil
}

// FindOwnerCopy returns the owner's live copy of a book, or nil if there is none.
func FindOwnerCopy(ctx context.Context, db *sql.DB, ownerID, bookID int64) (*model.Copy, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+copyColumns+` `+copyJoins+`
		 WHERE c.owner_id = ? AND c.book_id = ? AND c.deleted_at IS NULL`, ownerID, bookID,
	)
	c, err := scanCopy(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding owner copy: %w", err)
	}
	return c, nil
}

// ListAvailableCopies returns all live copies of a book offered for loan.
// The order is unspecified.
func ListAvailableCopies(ctx context.Context, db *sql.DB, bookID int64) ([]model.Copy, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+copyColumns+` `+copyJoins+`
		 WHERE c.book_id = ? AND c.deleted_at IS NULL AND c.is_available_for_loan = 1
		   AND u.deleted_at IS NULL`, bookID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing available copies: %w", err)
	}
	defer rows.Close()

	return scanCopies(rows)
}

// ListOwnerCopies returns all live copies registered by an owner.
func ListOwnerCopies(ctx context.Context, db *sql.DB, ownerID int64) ([]model.Copy, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+copyColumns+` `+copyJoins+`
		 WHERE c.owner_id = ? AND c.deleted_at IS NULL
		 ORDER BY b.title`, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing owner copies: %w", err)
	}
	defer rows.Close()

	return scanCopies(rows)
}

// UpdateCopy sets a copy's availability and pickup location.
func UpdateCopy(ctx context.Context, db *sql.DB, id int64, available bool, loc *model.Point) error {
	lat, lon := pointArgs(loc)
	_, err := db.ExecContext(ctx,
		`UPDATE copies SET is_available_for_loan = ?, latitude = ?, longitude = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		available, lat, lon, id,
	)
	if err != nil {
		return fmt.Errorf("updating copy: %w", err)
	}
	return nil
}

// SetCopyPhoto records where a copy's photo is stored.
func SetCopyPhoto(ctx context.Context, db *sql.DB, id int64, key, mime string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE copies SET photo_key = ?, photo_mime = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		key, mime, id,
	)
	if err != nil {
		return fmt.Errorf("setting copy photo: %w", err)
	}
	return nil
}

// DeleteCopy soft-deletes a copy. It fails with ErrOpenLoan while the copy
// has a non-terminal loan.
func DeleteCopy(ctx context.Context, db *sql.DB, id int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	open, err := hasOpenLoan(ctx, tx, id)
	if err != nil {
		return err
	}
	if open {
		return ErrOpenLoan
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE copies SET deleted_at = CURRENT_TIMESTAMP, is_available_for_loan = 0
		 WHERE id = ? AND deleted_at IS NULL`, id,
	)
	if err != nil {
		return fmt.Errorf("deleting copy: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing copy deletion: %w", err)
	}
	return nil
}

func pointArgs(p *model.Point) (any, any) {
	if p == nil {
		return nil, nil
	}
	return p.Lat, p.Lon
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCopy(row rowScanner) (*model.Copy, error) {
	c := &model.Copy{}
	var lat, lon sql.NullFloat64
	var photoKey, photoMime sql.NullString
	err := row.Scan(&c.ID, &c.BookID, &c.OwnerID, &c.AvailableForLoan, &lat, &lon,
		&photoKey, &photoMime, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt,
		&c.BookTitle, &c.OwnerName)
	if err != nil {
		return nil, err
	}
	if lat.Valid && lon.Valid {
		c.Location = &model.Point{Lat: lat.Float64, Lon: lon.Float64}
	}
	c.PhotoKey = photoKey.String
	c.PhotoMime = photoMime.String
	return c, nil
}

func scanCopies(rows *sql.Rows) ([]model.Copy, error) {
	var copies []model.Copy
	for rows.Next() {
		c, err := scanCopy(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning copy: %w", err)
		}
		copies = append(copies, *c)
	}
	return copies, rows.Err()
}
