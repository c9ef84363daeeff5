package core

import (
	"time"

	"github.com/go-chi/chi/v5"
)

// defaultRequestTimeout is the soft deadline applied to every request
// context. Generous enough for the slowest legitimate report query, short
// enough that a wedged backend does not pin handler goroutines.
const defaultRequestTimeout = 29 * time.Second

// MountRoutes defines the top-level routing hierarchy: the global
// middleware chain, the /v1 API group, and the public health check.
func (s *Server) MountRoutes() {
	s.registerGlobalMiddleware()

	s.router.Route("/v1", s.mountV1)

	s.router.Get("/health", s.HandleHealth)
}

// registerGlobalMiddleware applies middleware in strict order:
//
//  1. Recoverer        - outermost, catches all panics.
//  2. ContextTimeout   - soft deadline on the request context.
//  3. RequestID        - correlation ID for logs and responses.
//  4. SecurityHeaders  - present on every response, including errors.
//  5. RequestLogger    - structured logging with request-scoped logger.
//  6. CORS             - browser security headers and preflight handling.
//
// Authentication is NOT global: handler packages opt in per route group so
// registration and login stay reachable without a session.
func (s *Server) registerGlobalMiddleware() {
	s.router.Use(s.Recoverer)
	s.router.Use(ContextTimeoutMiddleware(defaultRequestTimeout))
	s.router.Use(RequestIDMiddleware)
	s.router.Use(s.SecurityHeadersMiddleware)
	s.router.Use(RequestLogger(s.Logger))
	s.router.Use(NewCORSMiddleware(s.corsAllowedOrigins()))
}

// mountV1 registers all v1 endpoints. Domain handler routes are registered
// via V1RouteRegistrars, populated by the application entry point. The
// indirection avoids import cycles between core and handler packages.
func (s *Server) mountV1(r chi.Router) {
	for _, registrar := range s.V1RouteRegistrars {
		registrar(r)
	}
}

// corsAllowedOrigins returns the CORS allowed origins from configuration.
func (s *Server) corsAllowedOrigins() []string {
	if s.Config != nil && len(s.Config.Server.CorsAllowedOrigins) > 0 {
		return s.Config.Server.CorsAllowedOrigins
	}
	return []string{"*"}
}
