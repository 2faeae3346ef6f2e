package main

import (
	"io"
	"log/slog"

	"bookthing/internal/config"
)

// newLogger emits JSON in production and human-readable text elsewhere.
func newLogger(env string, w io.Writer) *slog.Logger {
	switch env {
	case config.EnvProduction:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	case config.EnvTest:
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelWarn}))
	default:
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}
