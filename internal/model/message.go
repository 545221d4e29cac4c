package model

import "time"

// Message kinds.
const (
	MessageUser   = "user"
	MessageSystem = "system"
	MessageStatus = "status"
)

// Message is an entry in a loan's conversation. System and status
// messages have no author.
type Message struct {
	ID        int64     `json:"id"`
	LoanID    int64     `json:"loan_id"`
	AuthorID  *int64    `json:"author_id,omitempty"`
	Kind      string    `json:"kind"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`

	AuthorName string `json:"author_name,omitempty"`
}
