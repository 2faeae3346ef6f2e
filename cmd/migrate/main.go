package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/pressly/goose/v3"

	"bookthing/internal/config"
	"bookthing/internal/store"
)

func main() {
	var (
		command = flag.String("command", "up", "Migration command: up, down, status, create")
		name    = flag.String("name", "", "Name for 'create' command")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := run(context.Background(), *command, *name, logger); err != nil {
		logger.Error("migrate failed", "command", *command, "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command, name string, logger *slog.Logger) error {
	cfg, err := config.Load("")
	if err != nil {
		return err
	}
	dbCfg := cfg.ActiveDatabase()
	if dbCfg.IsStatic() {
		return errors.New("no database configured (DB_DRIVER is static)")
	}

	if command == "create" {
		if name == "" {
			return errors.New("name is required for 'create' command")
		}
		dir := migrationsDir(dbCfg.Driver)
		if err := goose.Create(nil, dir, name, "sql"); err != nil {
			return fmt.Errorf("create migration: %w", err)
		}
		logger.Info("migration created", "name", name, "dir", dir)
		return nil
	}

	// migrations are run explicitly below
	dbCfg.AutoMigrate = false
	db, err := store.Open(ctx, dbCfg, store.WithLogger(logger))
	if err != nil {
		return err
	}
	defer db.Close()

	switch command {
	case "up":
		if err := db.MigrateUp(ctx); err != nil {
			return err
		}
		logger.Info("migrations applied successfully")
	case "down":
		if err := db.MigrateDown(ctx); err != nil {
			return err
		}
		logger.Info("migrations rolled back successfully")
	case "status":
		return db.MigrationStatus(ctx)
	default:
		return fmt.Errorf("unknown command: %s. Use: up, down, status, create", command)
	}
	return nil
}
