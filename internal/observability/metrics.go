package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for a join run.
type Metrics struct {
	WeatherRowsRead         prometheus.Counter
	WeatherRowsDropped      prometheus.Counter
	IndexEntries            prometheus.Gauge
	FlightsProcessed        prometheus.Counter
	LegOutcomes             *prometheus.CounterVec // labels: leg={dep,arr}, outcome={matched,matched_approx_date,no_match,unparseable_time,no_date}
	FlightDatesUnparseable  prometheus.Counter
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram
	PipelineRunning         prometheus.Gauge

	// Historic-position fetch metrics.
	PositionRequests    *prometheus.CounterVec // labels: outcome={success,rate_limited,error}
	PositionAPIDuration prometheus.Histogram
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.WeatherRowsRead,
		m.WeatherRowsDropped,
		m.IndexEntries,
		m.FlightsProcessed,
		m.LegOutcomes,
		m.FlightDatesUnparseable,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.PipelineRunning,
		m.PositionRequests,
		m.PositionAPIDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		WeatherRowsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flightwx",
			Name:      "weather_rows_read_total",
			Help:      "Total weather rows consumed while building the index.",
		}),
		WeatherRowsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flightwx",
			Name:      "weather_rows_dropped_total",
			Help:      "Weather rows dropped for an unparseable valid timestamp.",
		}),
		IndexEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "flightwx",
			Name:      "weather_index_entries",
			Help:      "Distinct (station, bucket) keys held by the weather index.",
		}),
		FlightsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flightwx",
			Name:      "flights_processed_total",
			Help:      "Total flight rows read, enriched, and written.",
		}),
		LegOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flightwx",
			Name:      "leg_outcomes_total",
			Help:      "Leg match attempts by direction and outcome.",
		}, []string{"leg", "outcome"}),
		FlightDatesUnparseable: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flightwx",
			Name:      "flight_dates_unparseable_total",
			Help:      "Flight rows whose FL_DATE could not be parsed.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "flightwx",
			Name:      "batch_size",
			Help:      "Flight rows per processed batch.",
			Buckets:   []float64{100, 1000, 5000, 10000, 50000, 100000, 200000},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "flightwx",
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of one read-match-enrich-write cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "flightwx",
			Name:      "pipeline_running",
			Help:      "1 while the join pipeline is active, 0 otherwise.",
		}),
		PositionRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flightwx",
			Name:      "position_requests_total",
			Help:      "Historic position API requests by outcome.",
		}, []string{"outcome"}),
		PositionAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "flightwx",
			Name:      "position_api_duration_seconds",
			Help:      "Historic position API request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}
