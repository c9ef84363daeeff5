// Package core provides the API chassis for the SprinklerOps backend.
// It creates a chi router and enforces cross-cutting concerns -- request
// identification, logging, panic recovery, authentication, and error
// formatting -- before requests reach domain-specific handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"sprinklerops/internal/auth"
	"sprinklerops/internal/config"
	"sprinklerops/internal/store"
)

// Server encapsulates all dependencies for the SprinklerOps API, allowing
// for easy injection during testing and distinct configuration for
// different environments.
type Server struct {
	Config    *config.Config
	Store     store.Store
	Auth      *auth.Service
	Logger    *slog.Logger
	Validator *Validator

	// V1RouteRegistrars is populated by the application entry point with
	// per-domain route registration functions. The indirection avoids an
	// import cycle between core and the handler packages.
	V1RouteRegistrars []func(chi.Router)

	router *chi.Mux
}

// NewServer initializes dependencies and prepares the server for route
// mounting. It performs a fail-fast check on critical dependencies.
//
// The caller is responsible for mounting routes (via MountRoutes) after
// construction; this separation lets tests customize route registration.
func NewServer(cfg *config.Config, st store.Store, authSvc *auth.Service, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if st == nil {
		return nil, fmt.Errorf("store must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Store:     st,
		Auth:      authSvc,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the http.Handler for the router, for http.Server use.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown performs a graceful termination of server resources: the store
// is drained and closed. The HTTP listener itself is owned and shut down by
// the entry point.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")

	if err := s.Store.Close(ctx); err != nil {
		s.Logger.Error("error closing store", "error", err)
		return fmt.Errorf("closing store: %w", err)
	}

	s.Logger.Info("server shutdown complete")
	return nil
}
