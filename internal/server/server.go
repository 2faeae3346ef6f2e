// Package server binds the library HTTP service to its store and listener
// and owns their start/stop lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"bookthing/internal/config"
	"bookthing/internal/library"
	"bookthing/internal/store"
)

var (
	// ErrAlreadyStarted is returned by Start while the server is running.
	ErrAlreadyStarted = errors.New("server: already started")
	// ErrNotStarted is returned by Stop when the server is not running.
	ErrNotStarted = errors.New("server: not started")
	// ErrStopped is returned by Start once the server has been stopped.
	ErrStopped = errors.New("server: stopped and cannot be restarted")
)

type state int

const (
	stateIdle state = iota
	stateRunning
	stateStopped
)

// Server is one start/stop lifecycle of the service.
type Server struct {
	cfg    config.Config
	logger *slog.Logger

	mu         sync.Mutex
	state      state
	db         *store.DB
	repo       library.Repository
	handler    http.Handler
	httpServer *http.Server
	listener   net.Listener
	cancel     context.CancelFunc
	serveErr   chan error
}

// Option customizes a Server before Start.
type Option func(*Server)

// WithLogger replaces slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithRepository attaches repo instead of opening the configured database.
func WithRepository(repo library.Repository) Option {
	return func(s *Server) {
		s.repo = repo
	}
}

// New builds a Server. Nothing is opened until Start.
func New(cfg config.Config, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   slog.Default(),
		serveErr: make(chan error, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the store, binds the listener and begins serving. It returns
// once both succeeded; on failure nothing is left open.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case stateRunning:
		return ErrAlreadyStarted
	case stateStopped:
		return ErrStopped
	}

	repo := s.repo
	dbCfg := s.cfg.ActiveDatabase()
	if repo == nil {
		if dbCfg.IsStatic() {
			s.logger.Info("no database configured, serving static catalog")
			repo = library.NewStaticRepo(library.DefaultCatalog)
		} else {
			db, err := store.Open(ctx, dbCfg, store.WithLogger(s.logger))
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			s.db = db
			repo = library.NewSQLRepo(db)
		}
	}

	ln, err := net.Listen("tcp", s.cfg.HTTP.Addr)
	if err != nil {
		if s.db != nil {
			_ = s.db.Close()
			s.db = nil
		}
		return fmt.Errorf("listen on %s: %w", s.cfg.HTTP.Addr, err)
	}

	lifeCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.listener = ln
	s.handler = s.routes(lifeCtx, repo)
	s.httpServer = &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.cfg.HTTP.ReadTimeout,
		WriteTimeout: s.cfg.HTTP.WriteTimeout,
		IdleTimeout:  s.cfg.HTTP.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	go func(srv *http.Server) {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server error", "error", err)
			s.serveErr <- err
		}
	}(s.httpServer)

	s.state = stateRunning
	s.logger.Info("server started", "addr", ln.Addr().String(), "env", s.cfg.Env)
	return nil
}

// Stop closes the store, then stops accepting connections and waits for
// active ones until ctx is done. Connections still open at the deadline are
// closed. Failures of every step are joined.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateRunning {
		return ErrNotStarted
	}
	s.state = stateStopped
	s.logger.Info("stopping server")

	var errs []error
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown http server: %w", err))
		// drain deadline passed: drop whatever is still open
		if err := s.httpServer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close http server: %w", err))
		}
	}
	s.cancel()

	return errors.Join(errs...)
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Store returns the attached database handle, nil when serving a static or injected repository.
func (s *Server) Store() *store.DB {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db
}

// Handler returns the routed handler built by Start.
func (s *Server) Handler() http.Handler {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handler
}

// Err delivers a serve failure that happened after Start returned.
func (s *Server) Err() <-chan error {
	return s.serveErr
}
