// Command dbexport writes one tenant's records as zstd-compressed NDJSON,
// one object per line with a "table" discriminator field. Intended for
// data-portability requests and offline backups:
//
//	dbexport -company 42 -out company42.ndjson.zst
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/klauspost/compress/zstd"

	"sprinklerops/internal/config"
	"sprinklerops/internal/store"
)

// exportTables lists the tenant tables in dependency order so an import can
// replay lines top to bottom.
var exportTables = []string{
	"clients",
	"sites",
	"inspections",
	"estimates",
	"work_orders",
	"schedule_events",
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	companyID := flag.Int64("company", 0, "company ID to export (required)")
	out := flag.String("out", "", "output file (default stdout)")
	flag.Parse()

	if *companyID <= 0 {
		return fmt.Errorf("-company is required and must be positive")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	st, err := store.Open(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer func() { _ = st.Close(context.Background()) }()

	var w io.Writer = os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	enc, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("creating zstd writer: %w", err)
	}

	total, err := export(ctx, st, *companyID, enc)
	if closeErr := enc.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}

	logger.Info("export complete", "company_id", *companyID, "records", total)
	return nil
}

// export streams every tenant row as one JSON line. All reads run inside a
// single scoped transaction so the export is a consistent snapshot.
func export(ctx context.Context, st store.Store, companyID int64, w io.Writer) (int, error) {
	total := 0
	err := st.Transaction(ctx, func(ctx context.Context, ex store.Executor) error {
		je := json.NewEncoder(w)
		for _, table := range exportTables {
			rows, err := ex.Query(ctx,
				fmt.Sprintf(`SELECT * FROM %s WHERE company_id = ? ORDER BY id`, table),
				[]any{companyID})
			if err != nil {
				return fmt.Errorf("reading %s: %w", table, err)
			}
			for _, row := range rows {
				line := make(map[string]any, len(row)+1)
				for col, val := range row {
					if b, ok := val.([]byte); ok {
						val = string(b)
					}
					line[col] = val
				}
				line["table"] = table
				if err := je.Encode(line); err != nil {
					return fmt.Errorf("encoding %s row: %w", table, err)
				}
				total++
			}
		}
		return nil
	}, store.WithCompany(companyID))
	return total, err
}
