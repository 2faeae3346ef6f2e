package server_test

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"bookthing/internal/config"
	"bookthing/internal/library"
	"bookthing/internal/server"
	"bookthing/internal/testutil"
)

// LibrarySuite starts the service once, and empties the books table before
// and after every test.
type LibrarySuite struct {
	suite.Suite

	srv     *server.Server
	repo    *library.SQLRepo
	client  *http.Client
	baseURL string
}

func TestLibrarySuite(t *testing.T) {
	suite.Run(t, new(LibrarySuite))
}

func (s *LibrarySuite) SetupSuite() {
	cfg := config.Default()
	cfg.Env = config.EnvTest
	cfg.HTTP.Addr = "127.0.0.1:0"
	cfg.TestDatabase = testutil.DatabaseConfig(s.T())

	s.srv = server.New(cfg, server.WithLogger(testutil.DiscardLogger()))
	if err := s.srv.Start(context.Background()); err != nil {
		if cfg.TestDatabase.Driver == config.DriverPostgres {
			s.T().Skipf("Skipping integration test: cannot start against test database: %v", err)
		}
		s.T().Fatalf("start server: %v", err)
	}

	s.repo = library.NewSQLRepo(s.srv.Store())
	s.client = &http.Client{Timeout: 5 * time.Second}
	s.baseURL = "http://" + s.srv.Addr()
}

func (s *LibrarySuite) TearDownSuite() {
	if s.srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Require().NoError(s.srv.Stop(ctx))
}

func (s *LibrarySuite) SetupTest() {
	s.clearBooks()
}

func (s *LibrarySuite) TearDownTest() {
	s.clearBooks()
}

func (s *LibrarySuite) clearBooks() {
	_, err := s.repo.DeleteAll(context.Background())
	s.Require().NoError(err)
}

func (s *LibrarySuite) get(path string) *http.Response {
	resp, err := s.client.Get(s.baseURL + path)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (s *LibrarySuite) post(path string, body any) *http.Response {
	payload, err := testutil.MarshalJSON(body)
	s.Require().NoError(err)
	resp, err := s.client.Post(s.baseURL+path, "application/json", bytes.NewReader(payload))
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (s *LibrarySuite) listBooks() []library.Book {
	resp := s.get("/api/library")
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Require().Contains(resp.Header.Get("Content-Type"), "application/json")

	var books []library.Book
	testutil.DecodeJSON(s.T(), resp.Body, &books)
	return books
}

var newItem = library.NewBook{
	Title:   "Test title",
	Author:  "test author",
	Summary: "test description",
}

func (s *LibrarySuite) TestGet_Returns200() {
	resp := s.get("/api/library")
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *LibrarySuite) TestGet_EmptyStoreReturnsEmptyArray() {
	books := s.listBooks()
	s.NotNil(books)
	s.Empty(books)
}

func (s *LibrarySuite) TestGet_ReturnsBooksWithCorrectFields() {
	_, err := s.repo.Insert(context.Background(), newItem)
	s.Require().NoError(err)

	resp := s.get("/api/library")
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var rows []map[string]any
	testutil.DecodeJSON(s.T(), resp.Body, &rows)
	s.Require().GreaterOrEqual(len(rows), 1)
	for _, row := range rows {
		s.Len(row, 4)
		for _, key := range []string{"id", "title", "author", "summary"} {
			s.Contains(row, key)
		}
	}
}

func (s *LibrarySuite) TestGet_DrawsDataFromDatabase() {
	inserted, err := s.repo.Insert(context.Background(), newItem)
	s.Require().NoError(err)

	books := s.listBooks()
	s.Require().Len(books, 1)
	for _, b := range books {
		s.Positive(b.ID)
		s.Equal(inserted.ID, b.ID)
		s.Equal(newItem.Title, b.Title)
		s.Equal(newItem.Author, b.Author)
		s.Equal(newItem.Summary, b.Summary)
	}
}

func (s *LibrarySuite) TestPost_AddsBookToDatabase() {
	resp := s.post("/api/library", newItem)
	s.Require().Equal(http.StatusCreated, resp.StatusCode)

	var created library.Book
	testutil.DecodeJSON(s.T(), resp.Body, &created)

	rows, err := s.repo.FindMatching(context.Background(), newItem)
	s.Require().NoError(err)
	s.Require().Len(rows, 1)
	s.Positive(rows[0].ID)
	s.Equal(created, rows[0])
	s.Equal(newItem.Title, rows[0].Title)
	s.Equal(newItem.Author, rows[0].Author)
	s.Equal(newItem.Summary, rows[0].Summary)
}

func (s *LibrarySuite) TestPost_AcceptsLongText() {
	long := library.NewBook{
		Title:   strings.Repeat("a", 501),
		Author:  strings.Repeat("b", 300),
		Summary: strings.Repeat("c", 20000),
	}

	resp := s.post("/api/library", long)
	s.Require().Equal(http.StatusCreated, resp.StatusCode)

	books := s.listBooks()
	s.Require().Len(books, 1)
	s.Equal(long.Title, books[0].Title)
	s.Equal(long.Author, books[0].Author)
	s.Equal(long.Summary, books[0].Summary)
}

func (s *LibrarySuite) TestPost_RejectsIncompleteBook() {
	resp := s.post("/api/library", map[string]string{"title": "Test title"})
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	s.Empty(s.listBooks())
}

func (s *LibrarySuite) TestDeleteAll_EmptiesListing() {
	ctx := context.Background()
	for _, nb := range library.DefaultCatalog {
		_, err := s.repo.Insert(ctx, nb)
		s.Require().NoError(err)
	}
	s.Len(s.listBooks(), len(library.DefaultCatalog))

	_, err := s.repo.DeleteAll(ctx)
	s.Require().NoError(err)
	s.Empty(s.listBooks())
}

func (s *LibrarySuite) TestStart_WhileRunningFails() {
	addr := s.srv.Addr()

	err := s.srv.Start(context.Background())
	s.ErrorIs(err, server.ErrAlreadyStarted)
	s.Equal(addr, s.srv.Addr())
}

func (s *LibrarySuite) TestRouting_Fallbacks() {
	resp := s.get("/api/unknown")
	s.Equal(http.StatusNotFound, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPut, s.baseURL+"/api/library", nil)
	s.Require().NoError(err)
	resp, err = s.client.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusMethodNotAllowed, resp.StatusCode)
}

func (s *LibrarySuite) TestProbes() {
	s.Equal(http.StatusOK, s.get("/healthz").StatusCode)
	s.Equal(http.StatusOK, s.get("/readyz").StatusCode)
}

func (s *LibrarySuite) TestResponses_CarryRequestID() {
	resp := s.get("/api/library")
	s.NotEmpty(resp.Header.Get("X-Request-Id"))
}
