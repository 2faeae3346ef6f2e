package library

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"bookthing/internal/store"
)

const (
	defaultTable = "books"
	colID        = "id"
	colTitle     = "title"
	colAuthor    = "author"
	colSummary   = "summary"
)

// SQLRepo keeps books in the relational store, building statements with goqu.
type SQLRepo struct {
	db    *store.DB
	table string
}

// NewSQLRepo returns a repository over the books table of db.
func NewSQLRepo(db *store.DB) *SQLRepo {
	return &SQLRepo{db: db, table: defaultTable}
}

func (r *SQLRepo) selectBooks() *goqu.SelectDataset {
	return r.db.Dialect().
		From(r.table).
		Prepared(true).
		Select(colID, colTitle, colAuthor, colSummary).
		Order(goqu.C(colID).Asc())
}

// ListAll returns every book ordered by id.
func (r *SQLRepo) ListAll(ctx context.Context) ([]Book, error) {
	books := []Book{}
	if err := r.db.Select(ctx, &books, r.selectBooks()); err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

// FindMatching returns the books whose title, author and summary all equal nb's.
func (r *SQLRepo) FindMatching(ctx context.Context, nb NewBook) ([]Book, error) {
	stmt := r.selectBooks().Where(goqu.Ex{
		colTitle:   nb.Title,
		colAuthor:  nb.Author,
		colSummary: nb.Summary,
	})
	books := []Book{}
	if err := r.db.Select(ctx, &books, stmt); err != nil {
		return nil, fmt.Errorf("find books: %w", err)
	}
	return books, nil
}

// Insert stores nb and returns it with the id assigned by the database.
func (r *SQLRepo) Insert(ctx context.Context, nb NewBook) (Book, error) {
	stmt := r.db.Dialect().
		Insert(r.table).
		Prepared(true).
		Rows(goqu.Record{
			colTitle:   nb.Title,
			colAuthor:  nb.Author,
			colSummary: nb.Summary,
		})

	if r.db.SupportsReturning() {
		var id int64
		if err := r.db.Get(ctx, &id, stmt.Returning(colID)); err != nil {
			return Book{}, fmt.Errorf("insert book: %w", err)
		}
		return nb.WithID(id), nil
	}

	res, err := r.db.Exec(ctx, stmt)
	if err != nil {
		return Book{}, fmt.Errorf("insert book: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Book{}, fmt.Errorf("insert book: last insert id: %w", err)
	}
	return nb.WithID(id), nil
}

// DeleteAll empties the table and reports how many rows were removed.
func (r *SQLRepo) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.db.Exec(ctx, r.db.Dialect().Delete(r.table).Prepared(true))
	if err != nil {
		return 0, fmt.Errorf("delete books: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete books: rows affected: %w", err)
	}
	return n, nil
}
