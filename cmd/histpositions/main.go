// Command histpositions fetches historical flight positions from the
// Flightradar24 API over a time window, one snapshot per interval, and
// writes the collected records as JSON. With -csv the same records are
// also flattened into a CSV file.
//
// Route filters beyond the API's per-request cap are split into multiple
// fetch passes automatically.
//
// Usage:
//
//	histpositions \
//	  -start 2024-01-01T00:00:00Z -end 2024-01-01T06:00:00Z \
//	  -interval 15m -routes JFK-DFW,JFK-ORD \
//	  -out outputs/positions.json -csv outputs/positions.csv
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/skybatch/flight-weather-etl/internal/adapter/csvio"
	"github.com/skybatch/flight-weather-etl/internal/adapter/fr24"
	"github.com/skybatch/flight-weather-etl/internal/config"
	"github.com/skybatch/flight-weather-etl/internal/observability"
)

var positionColumns = []string{
	"fr24_id", "flight", "callsign", "lat", "lon", "track", "alt",
	"gspeed", "vspeed", "squawk", "timestamp", "source", "hex", "type",
	"reg", "orig_iata", "orig_icao", "dest_iata", "dest_icao", "eta",
}

func main() {
	startStr := flag.String("start", "", "window start (RFC 3339)")
	endStr := flag.String("end", "", "window end (RFC 3339)")
	interval := flag.Duration("interval", 15*time.Minute, "snapshot interval")
	routesStr := flag.String("routes", "", "comma-separated route filters, e.g. JFK-DFW,JFK-ORD")
	airportsStr := flag.String("airports", "", "comma-separated airport filters")
	flightsStr := flag.String("flights", "", "comma-separated flight number filters")
	outPath := flag.String("out", "", "JSON output path")
	csvPath := flag.String("csv", "", "optional CSV output path")
	flag.Parse()

	if *startStr == "" || *endStr == "" || *outPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	start, err := time.Parse(time.RFC3339, *startStr)
	if err != nil {
		slog.Error("invalid -start", "error", err)
		os.Exit(2)
	}
	end, err := time.Parse(time.RFC3339, *endStr)
	if err != nil {
		slog.Error("invalid -end", "error", err)
		os.Exit(2)
	}

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.FR24Token == "" {
		slog.Error("FR24_API_TOKEN is required")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := fr24.NewClient(cfg, logger, metrics)

	positions, err := fetchAll(ctx, client, start, end, *interval, *routesStr, *airportsStr, *flightsStr)
	if err != nil {
		logger.Error("position fetch failed", "error", err)
		os.Exit(1)
	}

	if err := writeJSON(*outPath, positions); err != nil {
		logger.Error("failed to write JSON output", "error", err)
		os.Exit(1)
	}
	logger.Info("wrote positions", "path", *outPath, "positions", len(positions))

	if *csvPath != "" {
		if err := writeCSV(*csvPath, positions); err != nil {
			logger.Error("failed to write CSV output", "error", err)
			os.Exit(1)
		}
		logger.Info("wrote flattened positions", "path", *csvPath)
	}
}

// fetchAll runs one range fetch per route chunk, or a single pass when the
// filters fit in one request.
func fetchAll(ctx context.Context, client *fr24.Client, start, end time.Time, step time.Duration, routesStr, airportsStr, flightsStr string) ([]fr24.Position, error) {
	base := url.Values{}
	if airportsStr != "" {
		base.Set("airports", airportsStr)
	}
	if flightsStr != "" {
		base.Set("flights", flightsStr)
	}

	routes := splitList(routesStr)
	if len(routes) == 0 {
		return client.FetchRange(ctx, start, end, step, base)
	}

	var all []fr24.Position
	for _, chunk := range fr24.ChunkRoutes(routes) {
		filters := url.Values{}
		for k, vs := range base {
			filters[k] = vs
		}
		filters.Set("routes", strings.Join(chunk, ","))

		positions, err := client.FetchRange(ctx, start, end, step, filters)
		if err != nil {
			return all, err
		}
		all = append(all, positions...)
	}
	return all, nil
}

func writeJSON(path string, positions []fr24.Position) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(positions); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeCSV(path string, positions []fr24.Position) error {
	w, err := csvio.Create(path, positionColumns)
	if err != nil {
		return err
	}

	batch := csvio.Batch{Columns: positionColumns, Rows: make([]csvio.Row, 0, len(positions))}
	for _, p := range positions {
		batch.Rows = append(batch.Rows, flatten(p))
	}
	if err := w.WriteBatch(batch); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func flatten(p fr24.Position) csvio.Row {
	return csvio.Row{
		"fr24_id":   p.FR24ID,
		"flight":    p.Flight,
		"callsign":  p.Callsign,
		"lat":       strconv.FormatFloat(p.Lat, 'f', -1, 64),
		"lon":       strconv.FormatFloat(p.Lon, 'f', -1, 64),
		"track":     strconv.Itoa(p.Track),
		"alt":       strconv.Itoa(p.Alt),
		"gspeed":    strconv.Itoa(p.GroundSpeed),
		"vspeed":    strconv.Itoa(p.VertSpeed),
		"squawk":    p.Squawk,
		"timestamp": p.Timestamp,
		"source":    p.Source,
		"hex":       p.Hex,
		"type":      p.Type,
		"reg":       p.Reg,
		"orig_iata": p.OrigIATA,
		"orig_icao": p.OrigICAO,
		"dest_iata": p.DestIATA,
		"dest_icao": p.DestICAO,
		"eta":       p.ETA,
	}
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
