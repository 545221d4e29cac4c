package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/posoja/internal/model"
)

// AppendMessage adds a message to a loan's conversation. authorID is nil
// for messages written by the platform itself.
func AppendMessage(ctx context.Context, db *sql.DB, loanID int64, authorID *int64, kind, body string) (*model.Message, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO loan_messages (loan_id, author_id, kind, body) VALUES (?, ?, ?, ?)`,
		loanID, authorID, kind, body,
	)
	if err != nil {
		return nil, fmt.Errorf("appending message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting message id: %w", err)
	}

	m := &model.Message{}
	var authorName sql.NullString
	err = db.QueryRowContext(ctx,
		`SELECT m.id, m.loan_id, m.author_id, m.kind, m.body, m.created_at, u.username
		 FROM loan_messages m LEFT JOIN users u ON u.id = m.author_id
		 WHERE m.id = ?`, id,
	).Scan(&m.ID, &m.LoanID, &m.AuthorID, &m.Kind, &m.Body, &m.CreatedAt, &authorName)
	if err != nil {
		return nil, fmt.Errorf("reading appended message: %w", err)
	}
	m.AuthorName = authorName.String
	return m, nil
}

// ListMessages returns a loan's conversation in the order it was written.
func ListMessages(ctx context.Context, db *sql.DB, loanID int64) ([]model.Message, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT m.id, m.loan_id, m.author_id, m.kind, m.body, m.created_at, u.username
		 FROM loan_messages m LEFT JOIN users u ON u.id = m.author_id
		 WHERE m.loan_id = ?
		 ORDER BY m.id`, loanID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		var m model.Message
		var authorName sql.NullString
		if err := rows.Scan(&m.ID, &m.LoanID, &m.AuthorID, &m.Kind, &m.Body, &m.CreatedAt, &authorName); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.AuthorName = authorName.String
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
