// Package main is the entry point for the SprinklerOps API server.
//
// Startup order: load configuration, build the structured logger, open the
// configured database backend, run migrations, then mount the HTTP chassis
// and listen. Shutdown is graceful on SIGINT/SIGTERM: the listener drains
// in-flight requests before the store is closed.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sprinklerops/internal/api/handlers"
	"sprinklerops/internal/auth"
	"sprinklerops/internal/config"
	"sprinklerops/internal/core"
	"sprinklerops/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so main() can cleanly exit on error.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("sprinklerops API starting",
		"environment", cfg.Environment,
		"port", cfg.Server.Port,
	)

	ctx := context.Background()

	st, err := store.Open(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	logger.Info("database ready", "backend", st.Backend())

	if err := store.Migrate(ctx, st); err != nil {
		closeStore(ctx, st, logger)
		return fmt.Errorf("running migrations: %w", err)
	}

	authSvc := auth.NewService(st, cfg.Auth, nil, logger)

	srv, err := core.NewServer(cfg, st, authSvc, logger)
	if err != nil {
		closeStore(ctx, st, logger)
		return fmt.Errorf("creating server: %w", err)
	}
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, handlers.RegisterV1(srv))
	srv.MountRoutes()

	return serveHTTP(srv, cfg, logger)
}

// serveHTTP runs the listener until a shutdown signal or server error, then
// drains connections and releases server resources.
func serveHTTP(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

func closeStore(ctx context.Context, st store.Store, logger *slog.Logger) {
	if err := st.Close(ctx); err != nil {
		logger.Error("store close error", "error", err)
	}
}

// newLogger creates a JSON slog.Logger at the configured level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
