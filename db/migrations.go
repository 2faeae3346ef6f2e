// Package db embeds the goose migrations, one directory per SQL dialect.
package db

import (
	"embed"
	"io/fs"
)

//go:embed migrations
var migrationsFS embed.FS

// Migrations returns the migration tree for dialect ("postgres" or "sqlite").
func Migrations(dialect string) (fs.FS, error) {
	return fs.Sub(migrationsFS, "migrations/"+dialect)
}
