// Package config loads service settings from environment variables.
// File paths are command-line concerns and stay in cmd/; everything with a
// sensible default lives here.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all tool settings, populated from environment variables.
type Config struct {
	LogLevel  string
	LogFormat string

	// ChunkSize bounds how many rows are held in memory per batch while
	// streaming the weather and flight files.
	ChunkSize int

	// Workers limits concurrent leg matching within a batch. 0 means one
	// worker per CPU.
	Workers int

	// MetricsAddr serves /healthz, /readyz, and /metrics during a run when
	// non-empty. Long joins are otherwise opaque.
	MetricsAddr     string
	ShutdownTimeout time.Duration

	// Optional Kafka sink for enriched records. Enabled when brokers are set.
	KafkaBrokers   []string
	KafkaSinkTopic string

	// Historic-position API settings.
	FR24Token     string
	FR24BaseURL   string
	FR24Timeout   time.Duration
	FR24RateLimit float64 // requests per second
}

// KafkaEnabled reports whether the enriched-record Kafka sink is configured.
func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	chunkSize, err := envInt("CHUNK_SIZE", 50000)
	if err != nil {
		return nil, err
	}
	workers, err := envInt("WORKERS", 0)
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := envDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	fr24Timeout, err := envDuration("FR24_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	fr24Rate, err := envFloat("FR24_RATE_LIMIT", 1.5)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ChunkSize:       chunkSize,
		Workers:         workers,
		MetricsAddr:     os.Getenv("METRICS_ADDR"),
		ShutdownTimeout: shutdownTimeout,
		KafkaBrokers:    splitBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaSinkTopic:  envOrDefault("KAFKA_SINK_TOPIC", "enriched-flights"),
		FR24Token:       os.Getenv("FR24_API_TOKEN"),
		FR24BaseURL:     envOrDefault("FR24_BASE_URL", "https://fr24api.flightradar24.com"),
		FR24Timeout:     fr24Timeout,
		FR24RateLimit:   fr24Rate,
	}

	if cfg.ChunkSize <= 0 {
		return nil, errors.New("CHUNK_SIZE must be positive")
	}
	if cfg.Workers < 0 {
		return nil, errors.New("WORKERS must not be negative")
	}
	if cfg.KafkaEnabled() && cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_BROKERS is set but KAFKA_SINK_TOPIC is empty")
	}
	if cfg.FR24RateLimit <= 0 {
		return nil, errors.New("FR24_RATE_LIMIT must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return d, nil
}

func splitBrokers(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}
