package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"

	"bookthing/internal/config"
	"bookthing/internal/library"
	"bookthing/internal/store"
)

var words = []string{"Quantum", "Silent", "Northern", "Glass", "Hidden", "Paper", "Iron", "Distant", "Amber", "Hollow"}

func main() {
	var (
		reset    = flag.Bool("reset", false, "delete every book before seeding")
		generate = flag.Int("generate", 0, "number of generated books to add after the default catalog")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := run(context.Background(), *reset, *generate, logger); err != nil {
		logger.Error("seed failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, reset bool, generate int, logger *slog.Logger) error {
	cfg, err := config.Load("")
	if err != nil {
		return err
	}
	dbCfg := cfg.ActiveDatabase()
	if dbCfg.IsStatic() {
		return errors.New("no database configured (DB_DRIVER is static)")
	}

	db, err := store.Open(ctx, dbCfg, store.WithLogger(logger))
	if err != nil {
		return err
	}
	defer db.Close()

	repo := library.NewSQLRepo(db)
	if reset {
		n, err := repo.DeleteAll(ctx)
		if err != nil {
			return err
		}
		logger.Info("cleared books", "deleted", n)
	}

	books := append([]library.NewBook{}, library.DefaultCatalog...)
	books = append(books, generateBooks(generate, rand.New(rand.NewSource(int64(generate))))...)

	for i, nb := range books {
		if _, err := repo.Insert(ctx, nb); err != nil {
			return fmt.Errorf("insert book %d: %w", i+1, err)
		}
		if (i+1)%1000 == 0 {
			logger.Info("seeding", "inserted", i+1, "total", len(books))
		}
	}

	all, err := repo.ListAll(ctx)
	if err != nil {
		return err
	}
	logger.Info("seed complete", "inserted", len(books), "total_books", len(all))
	return nil
}

func generateBooks(count int, rng *rand.Rand) []library.NewBook {
	out := make([]library.NewBook, 0, count)
	for i := 0; i < count; i++ {
		word := words[rng.Intn(len(words))]
		out = append(out, library.NewBook{
			Title:   fmt.Sprintf("Book Title %d - %s", i+1, word),
			Author:  fmt.Sprintf("Author %d", rng.Intn(500)+1),
			Summary: fmt.Sprintf("This is a book about %s things.", words[rng.Intn(len(words))]),
		})
	}
	return out
}
