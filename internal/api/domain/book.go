package domain

import "time"

// Genre is a book category.
type Genre struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Book is a catalog item.
type Book struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Author    string    `json:"author"`
	Price     float64   `json:"price"`
	Image     string    `json:"image,omitempty"`
	GenreID   int64     `json:"genre_id"`
	GenreName string    `json:"genre_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Stock tracks available quantity for a book.
type Stock struct {
	BookID   int64 `json:"book_id"`
	Quantity int   `json:"quantity"`
}

// BookFilter narrows catalog listings.
type BookFilter struct {
	SearchTerm string
	GenreID    int64
}
