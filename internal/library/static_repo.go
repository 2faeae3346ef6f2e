package library

import (
	"context"
	"sync"
)

// DefaultCatalog is served when no database is attached and used by cmd/seed.
var DefaultCatalog = []NewBook{
	{
		Title:   "The Left Hand of Darkness",
		Author:  "Ursula K. Le Guin",
		Summary: "An envoy to the planet Gethen tries to bring its people into an interstellar union.",
	},
	{
		Title:   "Invisible Cities",
		Author:  "Italo Calvino",
		Summary: "Marco Polo describes to Kublai Khan a series of imagined cities.",
	},
	{
		Title:   "The Structure of Scientific Revolutions",
		Author:  "Thomas S. Kuhn",
		Summary: "An account of how scientific fields move between periods of normal science and paradigm shifts.",
	},
}

// StaticRepo is an in-memory Repository.
type StaticRepo struct {
	mu     sync.RWMutex
	books  []Book
	lastID int64
}

// NewStaticRepo returns a repository preloaded with seed, ids starting at 1.
func NewStaticRepo(seed []NewBook) *StaticRepo {
	r := &StaticRepo{}
	for _, nb := range seed {
		r.lastID++
		r.books = append(r.books, nb.WithID(r.lastID))
	}
	return r
}

func (r *StaticRepo) ListAll(ctx context.Context) ([]Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Book, len(r.books))
	copy(out, r.books)
	return out, nil
}

func (r *StaticRepo) Insert(ctx context.Context, nb NewBook) (Book, error) {
	if err := ctx.Err(); err != nil {
		return Book{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	// ids are never reused, even after DeleteAll
	r.lastID++
	b := nb.WithID(r.lastID)
	r.books = append(r.books, b)
	return b, nil
}

func (r *StaticRepo) DeleteAll(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	n := int64(len(r.books))
	r.books = nil
	return n, nil
}
