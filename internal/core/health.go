package core

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"sprinklerops/internal/store"
)

// healthCheckTimeout is the maximum time allowed for all health probes to
// complete. A probe that exceeds it marks the service unhealthy.
const healthCheckTimeout = 2 * time.Second

// HealthProbe is a subsystem health check. Each probe represents a
// dependency that must be operational for the service to function.
type HealthProbe interface {
	// Name returns a human-readable identifier for the probe.
	Name() string

	// Check performs the health check. It should respect the context
	// deadline and return an error if the subsystem is unreachable.
	Check(ctx context.Context) error
}

// StoreProbe adapts a store.Store into a HealthProbe.
type StoreProbe struct {
	Store store.Store
}

func (p StoreProbe) Name() string { return "database" }

func (p StoreProbe) Check(ctx context.Context) error {
	result := p.Store.HealthCheck(ctx)
	if result.Status != store.StatusHealthy {
		return &probeError{msg: result.Error}
	}
	return nil
}

type probeError struct {
	msg string
}

func (e *probeError) Error() string {
	if e.msg == "" {
		return "unhealthy"
	}
	return e.msg
}

// componentStatus is the health state of a single subsystem.
type componentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// healthResponse is the JSON body of the health check endpoint.
type healthResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components,omitempty"`
	Pool       *store.PoolStats           `json:"pool,omitempty"`
}

// healthProbes returns the probe set for this server. Kept as a method so
// tests can exercise HandleHealth against a server with a fake store.
func (s *Server) healthProbes() []HealthProbe {
	if s.Store == nil {
		return nil
	}
	return []HealthProbe{StoreProbe{Store: s.Store}}
}

// HandleHealth executes all health probes concurrently under a shared
// deadline. Returns 200 OK when every probe reports healthy, 503 when any
// subsystem fails. The pool gauge snapshot is included so a single request
// shows both liveness and saturation.
//
// This endpoint is public (no authentication) and mounted at GET /health.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	probes := s.healthProbes()
	if len(probes) == 0 {
		JSON(w, r, http.StatusOK, healthResponse{Status: "healthy"})
		return
	}

	var mu sync.Mutex
	components := make(map[string]componentStatus, len(probes))

	g, gctx := errgroup.WithContext(ctx)
	for _, probe := range probes {
		probe := probe
		g.Go(func() error {
			err := probe.Check(gctx)

			status := componentStatus{Status: "healthy"}
			if err != nil {
				status = componentStatus{Status: "unhealthy", Message: err.Error()}
			}

			mu.Lock()
			components[probe.Name()] = status
			mu.Unlock()
			return err
		})
	}

	resp := healthResponse{Status: "healthy", Components: components}
	httpStatus := http.StatusOK
	if err := g.Wait(); err != nil {
		resp.Status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	if s.Store != nil {
		stats := s.Store.Stats()
		resp.Pool = &stats
	}

	JSON(w, r, httpStatus, resp)
}
