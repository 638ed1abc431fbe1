// Command attachweather joins flight-schedule records with the
// nearest-in-time weather observation for both legs of each flight.
//
// The weather file is streamed once to build an in-memory index keyed by
// (station, 15-minute bucket); the flight file is then streamed through
// match-enrich, producing the input columns plus DEP_*/ARR_* weather
// columns.
//
// Usage:
//
//	attachweather \
//	  -flights inputs/aa_flight_test_enriched_hubs.csv \
//	  -weather inputs/All_Hubs_Weather_2023-01-01_to_2025-01-01.csv \
//	  -out outputs/aa_flight_test_enriched_hubs_weather.csv
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/skybatch/flight-weather-etl/internal/adapter/csvio"
	httpadapter "github.com/skybatch/flight-weather-etl/internal/adapter/http"
	kafkaadapter "github.com/skybatch/flight-weather-etl/internal/adapter/kafka"
	"github.com/skybatch/flight-weather-etl/internal/config"
	"github.com/skybatch/flight-weather-etl/internal/observability"
	"github.com/skybatch/flight-weather-etl/internal/pipeline"
)

func main() {
	flightsPath := flag.String("flights", "", "flight CSV input path")
	weatherPath := flag.String("weather", "", "weather CSV input path")
	outPath := flag.String("out", "", "enriched CSV output path")
	flag.Parse()

	if *flightsPath == "" || *weatherPath == "" || *outPath == "" {
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
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, metrics, *flightsPath, *weatherPath, *outPath); err != nil {
		logger.Error("join failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics, flightsPath, weatherPath, outPath string) error {
	weatherReader, err := csvio.Open(weatherPath)
	if err != nil {
		return err
	}
	defer weatherReader.Close()

	ix, _, err := pipeline.BuildIndex(ctx, pipeline.NewCSVSource(weatherReader), cfg.ChunkSize, logger, metrics)
	if err != nil {
		return fmt.Errorf("build weather index: %w", err)
	}

	attach := pipeline.NewAttach(ix, logger, metrics, cfg.ChunkSize, cfg.Workers)

	// Long joins are observable over HTTP when METRICS_ADDR is set.
	var srv *httpadapter.Server
	if cfg.MetricsAddr != "" {
		srv = httpadapter.NewServer(cfg.MetricsAddr, attach, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	flightReader, err := csvio.Open(flightsPath)
	if err != nil {
		return err
	}
	defer flightReader.Close()

	outWriter, err := csvio.Create(outPath, nil)
	if err != nil {
		return err
	}

	sinks := []pipeline.BatchWriter{pipeline.NewCSVSink(outWriter)}
	if cfg.KafkaEnabled() {
		kw := kafkaadapter.NewWriter(cfg, logger)
		defer func() {
			if err := kw.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		sinks = append(sinks, kw)
		logger.Info("kafka sink enabled", "topic", cfg.KafkaSinkTopic)
	}

	stats, runErr := attach.Run(ctx, pipeline.NewCSVSource(flightReader), pipeline.MultiWriter(sinks...))
	if closeErr := outWriter.Close(); closeErr != nil && runErr == nil {
		runErr = closeErr
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", "error", err)
		}
	}

	if runErr != nil {
		return runErr
	}

	logger.Info("wrote enriched flights",
		"path", outPath,
		"flights", stats.Flights,
		"dep_matched", stats.Departure.Matched+stats.Departure.ApproxMatched,
		"arr_matched", stats.Arrival.Matched+stats.Arrival.ApproxMatched,
	)
	return nil
}
