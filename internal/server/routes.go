package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"bookthing/internal/httpx"
	"bookthing/internal/library"
	"bookthing/internal/store"
)

func (s *Server) routes(ctx context.Context, repo library.Repository) http.Handler {
	router := chi.NewRouter()

	router.Use(httpx.RequestIDMiddleware)
	router.Use(httpx.AccessLogMiddleware(s.logger))
	router.Use(httpx.RecoveryMiddleware(s.logger))
	router.Use(httpx.SecurityHeadersMiddleware(s.cfg.HTTP.EnableHSTS))
	router.Use(httpx.CORSMiddleware(s.cfg.HTTP.AllowedOrigins))
	if s.cfg.HTTP.RateLimitRPS > 0 {
		limiter := httpx.NewRateLimitMiddleware(ctx, s.cfg.HTTP.RateLimitRPS, s.cfg.HTTP.RateLimitBurst)
		router.Use(limiter.Middleware)
	}
	router.Use(httpx.RequestSizeLimitMiddleware(s.cfg.HTTP.MaxBodyBytes))

	router.NotFound(httpx.NotFound)
	router.MethodNotAllowed(httpx.MethodNotAllowed)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Get("/readyz", readyHandler(s.db))

	handler := library.NewHTTPHandler(library.NewService(repo), s.logger)
	router.Get("/api/library", handler.List)
	router.Post("/api/library", handler.Create)

	return router
}

// readyHandler pings db when one is attached; a static catalog is always ready.
func readyHandler(db *store.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				httpx.JSONError(w, r, http.StatusServiceUnavailable, httpx.CodeUnavailable, "db not ready", nil)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	}
}
