package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/posoja/internal/model"
)

// CreateBook adds a title to the catalog.
func CreateBook(ctx context.Context, db *sql.DB, title, author, isbn string) (*model.Book, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO books (title, author, isbn) VALUES (?, ?, ?)`,
		title, author, isbn,
	)
	if err != nil {
		return nil, fmt.Errorf("creating book: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting book id: %w", err)
	}

	return GetBook(ctx, db, id)
}

// GetBook returns a book by ID, including soft-deleted ones.
func GetBook(ctx context.Context, db *sql.DB, id int64) (*model.Book, error) {
	b := &model.Book{}
	var author, isbn sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT id, title, author, isbn, created_at, deleted_at
		 FROM books WHERE id = ?`, id,
	).Scan(&b.ID, &b.Title, &author, &isbn, &b.CreatedAt, &b.DeletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting book: %w", err)
	}
	b.Author = author.String
	b.ISBN = isbn.String
	return b, nil
}

// ListBooks returns all non-deleted books, optionally filtered by a title substring.
func ListBooks(ctx context.Context, db *sql.DB, query string) ([]model.Book, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, title, author, isbn, created_at, deleted_at
		 FROM books
		 WHERE deleted_at IS NULL AND (? = '' OR title LIKE '%' || ? || '%')
		 ORDER BY title`, query, query,
	)
	if err != nil {
		return nil, fmt.Errorf("listing books: %w", err)
	}
	defer rows.Close()

	var books []model.Book
	for rows.Next() {
		var b model.Book
		var author, isbn sql.NullString
		if err := rows.Scan(&b.ID, &b.Title, &author, &isbn, &b.CreatedAt, &b.DeletedAt); err != nil {
			return nil, fmt.Errorf("scanning book: %w", err)
		}
		b.Author = author.String
		b.ISBN = isbn.String
		books = append(books, b)
	}
	return books, rows.Err()
}

// DeleteBook soft-deletes a book together with its copies. It fails with
// ErrOpenLoan if any copy of the book has a non-terminal loan.
func DeleteBook(ctx context.Context, db *sql.DB, id int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var open int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM loans l
		 JOIN copies c ON c.id = l.copy_id
		 WHERE c.book_id = ? AND l.status IN ('REQUESTED', 'APPROVED', 'ACTIVE')`, id,
	).Scan(&open)
	if err != nil {
		return fmt.Errorf("checking open loans: %w", err)
	}
	if open > 0 {
		return ErrOpenLoan
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE copies SET deleted_at = CURRENT_TIMESTAMP, is_available_for_loan = 0
		 WHERE book_id = ? AND deleted_at IS NULL`, id,
	)
	if err != nil {
		return fmt.Errorf("deleting book copies: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE books SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`, id,
	)
	if err != nil {
		return fmt.Errorf("deleting book: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing book deletion: %w", err)
	}
	return nil
}
