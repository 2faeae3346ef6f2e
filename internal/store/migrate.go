package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/pressly/goose/v3"

	"bookthing/db"
	"bookthing/internal/config"
)

// goose keeps its dialect and filesystem in package state.
var gooseMu sync.Mutex

// GooseDialect maps a store driver to the goose dialect name.
func GooseDialect(driver string) (string, error) {
	switch driver {
	case config.DriverPostgres:
		return "postgres", nil
	case config.DriverSQLite:
		return "sqlite3", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

// MigrateUp applies all pending embedded migrations.
func (d *DB) MigrateUp(ctx context.Context) error {
	return d.migrate(func() error {
		return goose.UpContext(ctx, d.db.DB, ".")
	})
}

// MigrateDown rolls back the most recent migration.
func (d *DB) MigrateDown(ctx context.Context) error {
	return d.migrate(func() error {
		return goose.DownContext(ctx, d.db.DB, ".")
	})
}

// MigrationStatus prints the state of every migration through goose's logger.
func (d *DB) MigrationStatus(ctx context.Context) error {
	return d.migrate(func() error {
		return goose.StatusContext(ctx, d.db.DB, ".")
	})
}

func (d *DB) migrate(run func() error) error {
	if d.closed.Load() {
		return ErrClosed
	}
	dialect, err := GooseDialect(d.driver)
	if err != nil {
		return err
	}
	fsys, err := db.Migrations(d.driver)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(fsys)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(newGooseLogger(d.logger))
	defer goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := run(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// gooseLogger forwards goose progress lines to the store logger.
type gooseLogger struct {
	logger Logger
}

func newGooseLogger(logger Logger) goose.Logger {
	if logger == nil {
		return goose.NopLogger()
	}
	return gooseLogger{logger: logger}
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "goose")
}

// Fatalf only logs; failures still surface as the returned error.
func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "goose")
}
