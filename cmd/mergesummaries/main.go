// Command mergesummaries combines DOT T-100 traffic summary exports into a
// single CSV under the union of all input columns. Rows can be filtered by
// carrier and hub airports, deduplicated on a key column list, joined
// against an aircraft-type lookup, and projected onto a minimal column set.
//
// Usage:
//
//	mergesummaries \
//	  -out outputs/aa_summary.csv \
//	  -carrier AA -filter-hubs \
//	  -dedupe-on YEAR,MONTH,UNIQUE_CARRIER,ORIGIN,DEST,AIRCRAFT_TYPE \
//	  -aircraft-types inputs/L_AIRCRAFT_TYPE.csv \
//	  inputs/T100_2023.csv inputs/T100_2024.csv
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/skybatch/flight-weather-etl/internal/adapter/csvio"
	"github.com/skybatch/flight-weather-etl/internal/config"
	"github.com/skybatch/flight-weather-etl/internal/observability"
	"github.com/skybatch/flight-weather-etl/internal/summary"
)

// defaultHubs are the American Airlines hub airports.
var defaultHubs = []string{"DFW", "CLT", "ORD", "PHL", "PHX", "MIA", "DCA", "JFK", "LAX", "LGA"}

func main() {
	outPath := flag.String("out", "", "merged CSV output path")
	dedupeOn := flag.String("dedupe-on", "", "comma-separated key columns for first-seen-wins deduplication")
	carrier := flag.String("carrier", "", "keep only rows for this carrier code")
	filterHubs := flag.Bool("filter-hubs", false, "keep only rows where both ORIGIN and DEST are hub airports")
	hubs := flag.String("hubs", strings.Join(defaultHubs, ","), "hub airport list used with -filter-hubs")
	typesPath := flag.String("aircraft-types", "", "optional aircraft-type lookup CSV; adds a DESCRIPTION column")
	minimal := flag.Bool("minimal", false, "project output onto the minimal enrichment columns")
	flag.Parse()

	inputs := flag.Args()
	if *outPath == "" || len(inputs) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := summary.Options{
		DedupeOn: splitList(*dedupeOn),
		Carrier:  *carrier,
		Minimal:  *minimal,
	}
	if *filterHubs {
		opts.Airports = splitList(*hubs)
	}

	if *typesPath != "" {
		tr, err := csvio.Open(*typesPath)
		if err != nil {
			logger.Error("failed to open aircraft type file", "error", err)
			os.Exit(1)
		}
		types, err := summary.LoadAircraftTypes(tr)
		tr.Close()
		if err != nil {
			logger.Error("failed to load aircraft types", "error", err)
			os.Exit(1)
		}
		opts.AircraftTypes = types
		logger.Info("loaded aircraft types", "count", len(types))
	}

	readers := make([]*csvio.Reader, 0, len(inputs))
	for _, in := range inputs {
		r, err := csvio.Open(in)
		if err != nil {
			logger.Error("failed to open summary input", "path", in, "error", err)
			os.Exit(1)
		}
		defer r.Close()
		readers = append(readers, r)
	}

	w, err := csvio.Create(*outPath, nil)
	if err != nil {
		logger.Error("failed to create output", "error", err)
		os.Exit(1)
	}

	stats, err := summary.Merge(ctx, readers, w, cfg.ChunkSize, opts, logger)
	if closeErr := w.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		logger.Error("merge failed", "error", err)
		os.Exit(1)
	}

	logger.Info("wrote merged summary",
		"path", *outPath,
		"inputs", len(inputs),
		"rows_written", stats.RowsWritten,
	)
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
