package library

import (
	"context"
)

//go:generate mockgen -destination=mock_repository.go -package=library bookthing/internal/library Repository

// Repository defines the contract for book storage.
type Repository interface {
	// ListAll returns every book ordered by id. An empty store yields an empty, non-nil slice.
	ListAll(ctx context.Context) ([]Book, error)
	// Insert stores the book and returns it with its assigned id.
	Insert(ctx context.Context, book NewBook) (Book, error)
	// DeleteAll removes every book and reports how many were removed.
	DeleteAll(ctx context.Context) (int64, error)
}
