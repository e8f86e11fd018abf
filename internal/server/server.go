// Package server provides the HTTP API for Podbor.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/velestore/podbor/internal/config"
	"github.com/velestore/podbor/internal/resolver"
	"github.com/velestore/podbor/internal/session"
	"github.com/velestore/podbor/internal/storage"
	"go.uber.org/zap"
)

// Server is the HTTP server for the Podbor API.
type Server struct {
	engine   *resolver.Engine
	sessions *session.Manager
	storage  storage.Storage
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	engine *resolver.Engine,
	sessions *session.Manager,
	store storage.Storage,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		engine:   engine,
		sessions: sessions,
		storage:  store,
		config:   cfg,
		logger:   logger,
	}
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/resolve", s.handleResolve)
	r.Post("/api/v1/sessions/{id}/reset", s.handleSessionReset)
	r.Get("/api/v1/popular", s.handlePopular)
	r.Get("/api/v1/stats", s.handleStats)
	r.Get("/api/v1/queries/failed", s.handleFailedQueries)
	r.Get("/api/v1/events", s.handleEvents)
	r.Get("/api/v1/dataset", s.handleGetDataset)
	r.Put("/api/v1/dataset", s.handleUpdateDataset)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: r,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
