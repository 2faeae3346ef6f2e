package server_test

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookthing/internal/config"
	"bookthing/internal/library"
	"bookthing/internal/server"
	"bookthing/internal/store"
	"bookthing/internal/testutil"
)

func testConfig(t *testing.T, db config.DatabaseConfig) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Env = config.EnvTest
	cfg.HTTP.Addr = "127.0.0.1:0"
	cfg.TestDatabase = db
	return cfg
}

func stop(t *testing.T, srv *server.Server) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Stop(ctx)
}

func TestServer_StopBeforeStart(t *testing.T) {
	srv := server.New(testConfig(t, testutil.SQLiteConfig(t)), server.WithLogger(testutil.DiscardLogger()))

	assert.ErrorIs(t, stop(t, srv), server.ErrNotStarted)
	assert.Empty(t, srv.Addr())
	assert.Nil(t, srv.Store())
}

func TestServer_StopClosesStore(t *testing.T) {
	srv := server.New(testConfig(t, testutil.SQLiteConfig(t)), server.WithLogger(testutil.DiscardLogger()))
	require.NoError(t, srv.Start(context.Background()))

	db := srv.Store()
	require.NotNil(t, db)
	repo := library.NewSQLRepo(db)
	_, err := repo.Insert(context.Background(), library.DefaultCatalog[0])
	require.NoError(t, err)

	require.NoError(t, stop(t, srv))
	assert.True(t, db.Closed())

	_, err = repo.ListAll(context.Background())
	assert.ErrorIs(t, err, store.ErrClosed)
	_, err = repo.Insert(context.Background(), library.DefaultCatalog[1])
	assert.ErrorIs(t, err, store.ErrClosed)
	_, err = repo.DeleteAll(context.Background())
	assert.ErrorIs(t, err, store.ErrClosed)
}

func TestServer_StopReleasesListener(t *testing.T) {
	srv := server.New(testConfig(t, testutil.SQLiteConfig(t)), server.WithLogger(testutil.DiscardLogger()))
	require.NoError(t, srv.Start(context.Background()))
	addr := srv.Addr()

	require.NoError(t, stop(t, srv))

	client := &http.Client{Timeout: time.Second}
	_, err := client.Get("http://" + addr + "/healthz")
	assert.Error(t, err)
}

func TestServer_LifecycleTransitions(t *testing.T) {
	srv := server.New(testConfig(t, testutil.SQLiteConfig(t)), server.WithLogger(testutil.DiscardLogger()))

	require.NoError(t, srv.Start(context.Background()))
	assert.ErrorIs(t, srv.Start(context.Background()), server.ErrAlreadyStarted)

	require.NoError(t, stop(t, srv))
	assert.ErrorIs(t, stop(t, srv), server.ErrNotStarted)
	assert.ErrorIs(t, srv.Start(context.Background()), server.ErrStopped)
}

func TestServer_StartFailsWhenStoreUnavailable(t *testing.T) {
	db := testutil.SQLiteConfig(t)
	db.DSN = "file:" + filepath.Join(t.TempDir(), "missing", "dir", "books.db")
	srv := server.New(testConfig(t, db), server.WithLogger(testutil.DiscardLogger()))

	err := srv.Start(context.Background())
	require.Error(t, err)
	assert.Empty(t, srv.Addr())
	assert.Nil(t, srv.Store())
	assert.ErrorIs(t, stop(t, srv), server.ErrNotStarted)
}

func TestServer_StartFailsWhenAddressTaken(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := testConfig(t, testutil.SQLiteConfig(t))
	cfg.HTTP.Addr = ln.Addr().String()
	srv := server.New(cfg, server.WithLogger(testutil.DiscardLogger()))

	err = srv.Start(context.Background())
	require.Error(t, err)
	assert.Nil(t, srv.Store())
	assert.Empty(t, srv.Addr())
}

func TestServer_StaticFallback(t *testing.T) {
	srv := server.New(testConfig(t, config.DatabaseConfig{Driver: config.DriverStatic}), server.WithLogger(testutil.DiscardLogger()))
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { _ = stop(t, srv) })

	assert.Nil(t, srv.Store())

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, testutil.NewRequest(http.MethodGet, "/api/library", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var books []library.Book
	testutil.DecodeJSON(t, w.Body, &books)
	require.Len(t, books, len(library.DefaultCatalog))
	for i, b := range books {
		assert.Equal(t, int64(i+1), b.ID)
		assert.Equal(t, library.DefaultCatalog[i].Title, b.Title)
	}
}

func TestServer_WithRepository(t *testing.T) {
	repo := library.NewStaticRepo(nil)
	srv := server.New(
		testConfig(t, testutil.SQLiteConfig(t)),
		server.WithLogger(testutil.DiscardLogger()),
		server.WithRepository(repo),
	)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { _ = stop(t, srv) })

	assert.Nil(t, srv.Store())

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, testutil.NewRequest(http.MethodPost, "/api/library", library.DefaultCatalog[2]))
	require.Equal(t, http.StatusCreated, w.Code)

	books, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, library.DefaultCatalog[2].Author, books[0].Author)
}

func TestServer_ReadyzReportsClosedStore(t *testing.T) {
	srv := server.New(testConfig(t, testutil.SQLiteConfig(t)), server.WithLogger(testutil.DiscardLogger()))
	require.NoError(t, srv.Start(context.Background()))
	handler := srv.Handler()

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, testutil.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, stop(t, srv))

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, testutil.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "SERVICE_UNAVAILABLE", testutil.ErrorCode(t, w))
}

func TestServer_ListFailsAfterStop(t *testing.T) {
	srv := server.New(testConfig(t, testutil.SQLiteConfig(t)), server.WithLogger(testutil.DiscardLogger()))
	require.NoError(t, srv.Start(context.Background()))
	handler := srv.Handler()
	require.NoError(t, stop(t, srv))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, testutil.NewRequest(http.MethodGet, "/api/library", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", testutil.ErrorCode(t, w))
}

// blockingRepo holds ListAll until release is closed.
type blockingRepo struct {
	*library.StaticRepo
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (r *blockingRepo) ListAll(ctx context.Context) ([]library.Book, error) {
	r.once.Do(func() { close(r.entered) })
	<-r.release
	return r.StaticRepo.ListAll(context.Background())
}

func TestServer_StopClosesLingeringConnections(t *testing.T) {
	repo := &blockingRepo{
		StaticRepo: library.NewStaticRepo(library.DefaultCatalog),
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	srv := server.New(
		testConfig(t, config.DatabaseConfig{Driver: config.DriverStatic}),
		server.WithLogger(testutil.DiscardLogger()),
		server.WithRepository(repo),
	)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { close(repo.release) })

	type outcome struct {
		status int
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		client := &http.Client{Timeout: 5 * time.Second}
		resp, err := client.Get("http://" + srv.Addr() + "/api/library")
		if err != nil {
			done <- outcome{err: err}
			return
		}
		_ = resp.Body.Close()
		done <- outcome{status: resp.StatusCode}
	}()

	select {
	case <-repo.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("request never reached the repository")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := srv.Stop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case out := <-done:
		assert.Error(t, out.err, "expected the connection to be closed, got status %d", out.status)
	case <-time.After(2 * time.Second):
		t.Fatal("connection still open after Stop returned")
	}
}
