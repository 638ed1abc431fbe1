// Package fr24 fetches historical flight positions from the Flightradar24
// API. The endpoint serves one snapshot per timestamp; range fetches walk a
// window at a fixed interval. Requests pass through a token-bucket rate
// limiter and a circuit breaker, and HTTP 429 responses are honored via
// Retry-After with a single retry.
package fr24

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/skybatch/flight-weather-etl/internal/config"
	"github.com/skybatch/flight-weather-etl/internal/observability"
)

const (
	positionsPath = "/api/historic/flight-positions/full"

	// routeChunkSize is the API's cap on route pairs per request.
	routeChunkSize = 15

	defaultRetryAfter = 60 * time.Second
)

// Position is one historical position record from the full endpoint.
type Position struct {
	FR24ID      string  `json:"fr24_id"`
	Flight      string  `json:"flight"`
	Callsign    string  `json:"callsign"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Track       int     `json:"track"`
	Alt         int     `json:"alt"`
	GroundSpeed int     `json:"gspeed"`
	VertSpeed   int     `json:"vspeed"`
	Squawk      string  `json:"squawk"`
	Timestamp   string  `json:"timestamp"`
	Source      string  `json:"source"`
	Hex         string  `json:"hex"`
	Type        string  `json:"type"`
	Reg         string  `json:"reg"`
	OrigIATA    string  `json:"orig_iata"`
	OrigICAO    string  `json:"orig_icao"`
	DestIATA    string  `json:"dest_iata"`
	DestICAO    string  `json:"dest_icao"`
	ETA         string  `json:"eta"`
}

// Client calls the historic flight-positions endpoint.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	clock      clockwork.Clock
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates an API client from config.
func NewClient(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		token:      cfg.FR24Token,
		baseURL:    cfg.FR24BaseURL,
		httpClient: &http.Client{Timeout: cfg.FR24Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.FR24RateLimit), 1),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "fr24",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
		clock:   clockwork.NewRealClock(),
		logger:  logger,
		metrics: metrics,
	}
}

// SetClock swaps the time source. Pass nil to reset to real time.
func (c *Client) SetClock(clk clockwork.Clock) {
	if clk == nil {
		c.clock = clockwork.NewRealClock()
		return
	}
	c.clock = clk
}

// rateLimitedError carries the server-requested backoff for a 429 response.
type rateLimitedError struct {
	delay time.Duration
}

func (e *rateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.delay)
}

// Snapshot fetches all positions for one timestamp. A 429 response sleeps
// out the Retry-After window and retries exactly once.
func (c *Client) Snapshot(ctx context.Context, ts time.Time, filters url.Values) ([]Position, error) {
	positions, err := c.fetch(ctx, ts, filters)
	if err == nil {
		return positions, nil
	}

	var rl *rateLimitedError
	if errors.As(err, &rl) {
		c.metrics.PositionRequests.WithLabelValues("rate_limited").Inc()
		c.logger.Warn("position request rate limited", "timestamp", ts.Unix(), "retry_after", rl.delay)
		if !c.sleep(ctx, rl.delay) {
			return nil, ctx.Err()
		}
		return c.fetch(ctx, ts, filters)
	}
	return nil, err
}

// FetchRange walks [start, end] at the given step and collects every
// snapshot. Per-snapshot failures are logged and skipped; only context
// cancellation aborts the range.
func (c *Client) FetchRange(ctx context.Context, start, end time.Time, step time.Duration, filters url.Values) ([]Position, error) {
	if step <= 0 {
		return nil, errors.New("step must be positive")
	}

	var all []Position
	for ts := start; !ts.After(end); ts = ts.Add(step) {
		if err := ctx.Err(); err != nil {
			return all, err
		}

		positions, err := c.Snapshot(ctx, ts, filters)
		if err != nil {
			if ctx.Err() != nil {
				return all, ctx.Err()
			}
			c.logger.Warn("snapshot failed, skipping", "timestamp", ts.Unix(), "error", err)
			continue
		}
		all = append(all, positions...)
		c.logger.Debug("snapshot fetched", "timestamp", ts.Unix(), "positions", len(positions))
	}
	return all, nil
}

func (c *Client) fetch(ctx context.Context, ts time.Time, filters url.Values) ([]Position, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	for k, vs := range filters {
		params[k] = vs
	}
	params.Set("timestamp", strconv.FormatInt(ts.Unix(), 10))
	fullURL := c.baseURL + positionsPath + "?" + params.Encode()

	start := c.clock.Now()
	result, err := c.breaker.Execute(func() (any, error) {
		return c.doRequest(ctx, fullURL)
	})
	c.metrics.PositionAPIDuration.Observe(c.clock.Since(start).Seconds())

	if err != nil {
		var rl *rateLimitedError
		if !errors.As(err, &rl) {
			c.metrics.PositionRequests.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	c.metrics.PositionRequests.WithLabelValues("success").Inc()
	return result.([]Position), nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) ([]Position, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Version", "v1")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("position request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &rateLimitedError{delay: parseRetryAfter(resp.Header.Get("Retry-After"))}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("fr24 API error: status %d: %s", resp.StatusCode, body)
	}

	var payload struct {
		Data []Position `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return payload.Data, nil
}

// sleep blocks for d on the injected clock. Returns false when the context
// is cancelled first.
func (c *Client) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-c.clock.After(d):
		return true
	}
}

func parseRetryAfter(header string) time.Duration {
	secs, err := strconv.Atoi(header)
	if err != nil || secs < 0 {
		return defaultRetryAfter
	}
	return time.Duration(secs) * time.Second
}

// ChunkRoutes splits a route-pair filter list into API-sized chunks.
func ChunkRoutes(routes []string) [][]string {
	var chunks [][]string
	for len(routes) > routeChunkSize {
		chunks = append(chunks, routes[:routeChunkSize])
		routes = routes[routeChunkSize:]
	}
	if len(routes) > 0 {
		chunks = append(chunks, routes)
	}
	return chunks
}
