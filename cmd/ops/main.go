// Command ops runs operational tasks against the configured database:
//
//	ops migrate   apply the schema to the configured backend
//	ops cleanup   prune expired sessions and purge soft-deleted clients
//
// Both subcommands read the same environment configuration as the API
// server, so they run against whatever backend the deployment uses.
//
// On PostgreSQL the tenant tables carry forced row-level security, and
// cleanup has to list purge candidates across every company. Point
// DATABASE_URL at a role with the BYPASSRLS attribute when running cleanup
// there; the per-client deletes themselves run scoped to the owning company
// and need no bypass.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"sprinklerops/internal/config"
	"sprinklerops/internal/jobs"
	"sprinklerops/internal/store"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: ops <migrate|cleanup> [flags]")
	}
	command, args := args[0], args[1:]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	st, err := store.Open(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer func() { _ = st.Close(context.Background()) }()

	switch command {
	case "migrate":
		return runMigrate(ctx, st, logger)
	case "cleanup":
		return runCleanup(ctx, st, logger, args)
	default:
		return fmt.Errorf("unknown command %q (expected migrate or cleanup)", command)
	}
}

func runMigrate(ctx context.Context, st store.Store, logger *slog.Logger) error {
	if err := store.Migrate(ctx, st); err != nil {
		return err
	}
	logger.Info("migrations applied", "backend", st.Backend())
	return nil
}

func runCleanup(ctx context.Context, st store.Store, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("cleanup", flag.ContinueOnError)
	retention := fs.Duration("client-retention", jobs.DefaultClientRetention,
		"how long soft-deleted clients are kept before hard deletion")
	limit := fs.Int("limit", jobs.DefaultPurgeBatchLimit,
		"maximum soft-deleted clients purged in one run")
	if err := fs.Parse(args); err != nil {
		return err
	}

	svc := jobs.NewMaintenanceService(jobs.NewMaintenanceDB(st), logger)
	now := time.Now().UTC()

	if _, err := svc.PruneSessions(ctx, now); err != nil {
		return err
	}
	if _, err := svc.PurgeSoftDeletedClients(ctx, now, *retention, *limit); err != nil {
		return err
	}
	return nil
}
