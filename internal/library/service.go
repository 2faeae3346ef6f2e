package library

import (
	"context"
	"fmt"
)

// Service provides the library use cases on top of a Repository.
type Service struct {
	repo Repository
}

// NewService creates a new library service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns all books; never nil.
func (s *Service) List(ctx context.Context) ([]Book, error) {
	books, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	if books == nil {
		books = []Book{}
	}
	return books, nil
}

// Create adds a book and returns it with its assigned id. Requests reaching
// the HTTP handler are already validated; the Valid check guards other callers.
func (s *Service) Create(ctx context.Context, nb NewBook) (Book, error) {
	if !nb.Valid() {
		return Book{}, ErrInvalidBook
	}
	book, err := s.repo.Insert(ctx, nb)
	if err != nil {
		return Book{}, fmt.Errorf("create book: %w", err)
	}
	return book, nil
}
