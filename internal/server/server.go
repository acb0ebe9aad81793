// Package server provides the HTTP API for kaiwa.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/kaiwa/internal/archive"
	"github.com/hyperjump/kaiwa/internal/config"
	"github.com/hyperjump/kaiwa/internal/indexer"
	"github.com/hyperjump/kaiwa/internal/rag"
)

const defaultRequestTimeout = 5 * time.Minute

// Server is the HTTP server for the kaiwa API.
type Server struct {
	conv    *rag.Conversation
	indexer *indexer.Indexer
	config  *config.Config
	archive *archive.SQLiteArchive
	logger  *zap.Logger
	server  *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithArchive exposes archive statistics in the status endpoint.
func WithArchive(a *archive.SQLiteArchive) Option {
	return func(s *Server) { s.archive = a }
}

// NewServer creates a server with the given dependencies.
func NewServer(conv *rag.Conversation, ix *indexer.Indexer, cfg *config.Config, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		conv:    conv,
		indexer: ix,
		config:  cfg,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the router with all API routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(defaultRequestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/documents", s.handleUpload)
		r.Get("/documents/current", s.handleCurrentDocument)
		r.Get("/sessions", s.handleListSessions)
		r.Post("/sessions/{id}/ask", s.handleAsk)
		r.Get("/sessions/{id}/history", s.handleHistory)
		r.Delete("/sessions/{id}", s.handleClearSession)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
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
