package testutil

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"

	"bookthing/internal/config"
	"bookthing/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// SQLiteConfig returns a migrated sqlite database in a per-test temp dir.
func SQLiteConfig(t testing.TB) config.DatabaseConfig {
	t.Helper()
	path := filepath.Join(t.TempDir(), "books.db")
	return config.DatabaseConfig{
		Driver:       config.DriverSQLite,
		DSN:          "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)",
		QueryTimeout: 5 * time.Second,
		AutoMigrate:  true,
	}
}

// DatabaseConfig returns the test database target. A postgres DSN in
// TEST_DB_DSN is used when present, otherwise a temporary sqlite file.
func DatabaseConfig(t testing.TB) config.DatabaseConfig {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		return SQLiteConfig(t)
	}
	return config.DatabaseConfig{
		Driver:       config.DriverPostgres,
		DSN:          dsn,
		QueryTimeout: 5 * time.Second,
		AutoMigrate:  true,
	}
}

// OpenStore opens the test database and closes it when the test ends.
// Postgres targets that cannot be reached skip the test.
func OpenStore(t testing.TB) *store.DB {
	t.Helper()
	cfg := DatabaseConfig(t)
	db, err := store.Open(context.Background(), cfg)
	if err != nil {
		if cfg.Driver == config.DriverPostgres {
			t.Skipf("Skipping integration test: cannot connect to test database: %v", err)
		}
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil && !errors.Is(err, store.ErrClosed) {
			t.Errorf("close test store: %v", err)
		}
	})
	return db
}

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MarshalJSON encodes v the same way the handlers do.
func MarshalJSON(v any) ([]byte, error) {
	return json.Marshal(v)
}

// NewRequest creates a new HTTP request for testing
func NewRequest(method, path string, body interface{}) *http.Request {
	var bodyBytes []byte
	if body != nil {
		bodyBytes, _ = json.Marshal(body)
	}
	var r *http.Request
	if bodyBytes != nil {
		r = httptest.NewRequest(method, path, bytes.NewReader(bodyBytes))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	return r
}

// DecodeJSON decodes a response body into out and fails the test on error.
func DecodeJSON(t testing.TB, body io.Reader, out any) {
	t.Helper()
	if err := json.NewDecoder(body).Decode(out); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
}

// ErrorCode extracts error.code from a JSON error envelope.
func ErrorCode(t testing.TB, w *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	DecodeJSON(t, w.Body, &env)
	return env.Error.Code
}
