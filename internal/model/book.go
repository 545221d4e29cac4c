package model

import "time"

// Book is a catalog title. Physical copies of it are tracked separately.
type Book struct {
	ID        int64      `json:"id"`
	Title     string     `json:"title"`
	Author    string     `json:"author,omitempty"`
	ISBN      string     `json:"isbn,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}
