package model

import "time"

// Point is a geographic coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the point lies within the WGS84 ranges.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// Known reports whether the point is a usable pickup location.
// (0, 0) is treated as "unknown".
func (p Point) Known() bool {
	return p.Valid() && !(p.Lat == 0 && p.Lon == 0)
}

// Copy is one user's physical copy of a book that may be lent out.
type Copy struct {
	ID               int64      `json:"id"`
	BookID           int64      `json:"book_id"`
	OwnerID          int64      `json:"owner_id"`
	AvailableForLoan bool       `json:"is_available_for_loan"`
	Location         *Point     `json:"location,omitempty"`
	PhotoKey         string     `json:"-"`
	PhotoMime        string     `json:"photo_mime,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	DeletedAt        *time.Time `json:"deleted_at,omitempty"`

	// Joined fields (not always populated).
	BookTitle string `json:"book_title,omitempty"`
	OwnerName string `json:"owner_name,omitempty"`
}
