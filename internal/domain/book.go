package domain

import "time"

// Rating represents a single user's grade for a book, embedded in the book record.
type Rating struct {
	UserID string `json:"userId"`
	Grade  int    `json:"grade"`
}

// Book represents the canonical book entity in the database/service.
type Book struct {
	ID            string
	OwnerID       string
	Title         string
	Author        string
	Genre         string
	Year          int
	ImageURL      string
	Ratings       []Rating
	AverageRating float64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
