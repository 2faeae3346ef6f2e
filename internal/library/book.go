package library

import (
	"errors"
	"strings"
)

// ErrInvalidBook is returned when a book is missing a required field.
var ErrInvalidBook = errors.New("book is missing a required field")

// Book is a bibliographic record in the library. ID is assigned by the
// repository on insert and never changes afterwards.
type Book struct {
	ID      int64  `json:"id" db:"id"`
	Title   string `json:"title" db:"title"`
	Author  string `json:"author" db:"author"`
	Summary string `json:"summary" db:"summary"`
}

// NewBook is the payload for adding a book.
type NewBook struct {
	Title   string `json:"title" validate:"required,notblank"`
	Author  string `json:"author" validate:"required,notblank"`
	Summary string `json:"summary" validate:"required,notblank"`
}

// Valid reports whether every field carries text. It mirrors the notblank
// rule of the struct tags for callers that bypass HTTP validation.
func (nb NewBook) Valid() bool {
	return strings.TrimSpace(nb.Title) != "" &&
		strings.TrimSpace(nb.Author) != "" &&
		strings.TrimSpace(nb.Summary) != ""
}

// WithID turns the payload into a stored book.
func (nb NewBook) WithID(id int64) Book {
	return Book{
		ID:      id,
		Title:   nb.Title,
		Author:  nb.Author,
		Summary: nb.Summary,
	}
}
