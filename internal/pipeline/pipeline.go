// Package pipeline orchestrates the two-phase join: build the weather index
// from the weather stream, then stream flight batches through match-enrich
// into the sink. The index build completes entirely before the first lookup,
// so the match phase can fan out across workers against read-only state.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/skybatch/flight-weather-etl/internal/adapter/csvio"
	"github.com/skybatch/flight-weather-etl/internal/domain"
	"github.com/skybatch/flight-weather-etl/internal/join"
	"github.com/skybatch/flight-weather-etl/internal/observability"
	"github.com/skybatch/flight-weather-etl/internal/weather"
)

// Flight input columns with fixed meaning.
const (
	colFlightDate = "FL_DATE"
	colOrigin     = "ORIGIN"
	colDest       = "DEST"
	colDepTime    = "DEP_TIME"
	colArrTime    = "ARR_TIME"
	colYear       = "YEAR"
	colMonth      = "MONTH"
)

// BatchReader reads up to maxRows rows from a tabular source.
// io.EOF signals a cleanly exhausted stream.
type BatchReader interface {
	ReadBatch(ctx context.Context, maxRows int) (csvio.Batch, error)
}

// BatchWriter writes a batch of rows to a tabular sink.
type BatchWriter interface {
	WriteBatch(ctx context.Context, batch csvio.Batch) error
}

// IndexStats summarizes the index-build phase.
type IndexStats struct {
	RowsRead          int
	DroppedTimestamps int
	Entries           int
	Fields            int
}

// BuildIndex drains the weather source through an IndexBuilder and freezes
// the result. A missing station column aborts immediately; rows with
// unparseable timestamps are dropped and counted.
func BuildIndex(ctx context.Context, src BatchReader, chunkSize int, logger *slog.Logger, metrics *observability.Metrics) (*weather.Index, IndexStats, error) {
	builder := weather.NewIndexBuilder()

	for {
		if err := ctx.Err(); err != nil {
			return nil, IndexStats{}, err
		}

		batch, err := src.ReadBatch(ctx, chunkSize)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, IndexStats{}, fmt.Errorf("read weather batch: %w", err)
		}

		if len(batch.Rows) > 0 {
			if addErr := builder.AddBatch(batch); addErr != nil {
				return nil, IndexStats{}, addErr
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
	}

	ix := builder.Build()
	stats := IndexStats{
		RowsRead:          builder.RowsSeen(),
		DroppedTimestamps: builder.DroppedTimestamps(),
		Entries:           ix.Len(),
		Fields:            len(ix.Fields()),
	}

	metrics.WeatherRowsRead.Add(float64(stats.RowsRead))
	metrics.WeatherRowsDropped.Add(float64(stats.DroppedTimestamps))
	metrics.IndexEntries.Set(float64(stats.Entries))

	logger.Info("weather index built",
		"rows", stats.RowsRead,
		"dropped_timestamps", stats.DroppedTimestamps,
		"entries", stats.Entries,
		"fields", stats.Fields,
	)
	return ix, stats, nil
}

// LegStats counts match outcomes for one leg direction.
type LegStats struct {
	Matched       int
	ApproxMatched int
	NoMatch       int
	Unparseable   int
	NoDate        int
}

func (s *LegStats) record(o join.Outcome) {
	switch o {
	case join.OutcomeMatched:
		s.Matched++
	case join.OutcomeApproxMatched:
		s.ApproxMatched++
	case join.OutcomeNoMatch:
		s.NoMatch++
	case join.OutcomeUnparseable:
		s.Unparseable++
	case join.OutcomeNoDate:
		s.NoDate++
	}
}

// Stats summarizes one join run.
type Stats struct {
	Flights          int
	DatesUnparseable int
	Departure        LegStats
	Arrival          LegStats
}

// Attach is the flight-side pipeline: read, match both legs, enrich, write.
type Attach struct {
	index     *weather.Index
	logger    *slog.Logger
	metrics   *observability.Metrics
	chunkSize int
	workers   int
	ready     atomic.Bool
	flights   atomic.Int64
}

// NewAttach creates the join pipeline over a frozen weather index.
// workers <= 0 uses one worker per CPU.
func NewAttach(ix *weather.Index, logger *slog.Logger, metrics *observability.Metrics, chunkSize, workers int) *Attach {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Attach{
		index:     ix,
		logger:    logger,
		metrics:   metrics,
		chunkSize: chunkSize,
		workers:   workers,
	}
}

// CheckReadiness returns nil once the pipeline has processed at least one batch.
func (a *Attach) CheckReadiness(_ context.Context) error {
	if !a.ready.Load() {
		return errors.New("join pipeline has not processed any batches yet")
	}
	return nil
}

// Progress reports the index size and the number of flights processed so
// far, for the readiness endpoint.
func (a *Attach) Progress() (int, int64) {
	return a.index.Len(), a.flights.Load()
}

// rowResult carries one transformed row plus its per-leg verdicts so stats
// can be tallied after the parallel section.
type rowResult struct {
	row     csvio.Row
	dep     join.Outcome
	arr     join.Outcome
	dateBad bool
}

// Run streams flight batches from src through match-enrich into sink until
// the source is exhausted. Row order is preserved.
func (a *Attach) Run(ctx context.Context, src BatchReader, sink BatchWriter) (Stats, error) {
	a.metrics.PipelineRunning.Set(1)
	defer a.metrics.PipelineRunning.Set(0)

	var stats Stats
	fields := a.index.Fields()
	var outColumns []string

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		batch, err := src.ReadBatch(ctx, a.chunkSize)
		if err != nil && !errors.Is(err, io.EOF) {
			return stats, fmt.Errorf("read flight batch: %w", err)
		}
		eof := errors.Is(err, io.EOF)

		if len(batch.Rows) > 0 {
			start := time.Now()

			if outColumns == nil {
				outColumns = join.OutputColumns(batch.Columns, fields)
			}

			results, tErr := a.transformBatch(ctx, batch)
			if tErr != nil {
				return stats, tErr
			}

			out := csvio.Batch{Columns: outColumns, Rows: make([]csvio.Row, len(results))}
			for i, res := range results {
				out.Rows[i] = res.row
				a.tally(&stats, res)
			}

			if wErr := sink.WriteBatch(ctx, out); wErr != nil {
				return stats, fmt.Errorf("write enriched batch: %w", wErr)
			}

			a.metrics.BatchSize.Observe(float64(len(batch.Rows)))
			a.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
			a.ready.Store(true)
		}

		if eof {
			break
		}
	}

	a.logger.Info("join complete",
		"flights", stats.Flights,
		"dates_unparseable", stats.DatesUnparseable,
		"dep_matched", stats.Departure.Matched+stats.Departure.ApproxMatched,
		"dep_no_match", stats.Departure.NoMatch,
		"dep_unparseable", stats.Departure.Unparseable,
		"arr_matched", stats.Arrival.Matched+stats.Arrival.ApproxMatched,
		"arr_no_match", stats.Arrival.NoMatch,
		"arr_unparseable", stats.Arrival.Unparseable,
		"approx_dates", stats.Departure.ApproxMatched+stats.Arrival.ApproxMatched,
	)
	return stats, nil
}

// transformBatch maps rows to enriched rows concurrently. The weather index
// is immutable, so workers share it without locks; results land at their
// source offsets to keep output order deterministic.
func (a *Attach) transformBatch(ctx context.Context, batch csvio.Batch) ([]rowResult, error) {
	results := make([]rowResult, len(batch.Rows))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i, row := range batch.Rows {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = a.transformRow(row)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// transformRow is the pure per-flight transform: parse the date, match both
// legs, and emit the enriched row.
func (a *Attach) transformRow(row csvio.Row) rowResult {
	base, dateOK := domain.ParseFlightDate(row[colFlightDate])

	year, month := fallbackYearMonth(row, base, dateOK)

	depObs, depOutcome := join.MatchLeg(a.index, join.Leg{
		Station: row[colOrigin],
		Base:    base,
		Year:    year,
		Month:   month,
		Raw:     row[colDepTime],
	})
	arrObs, arrOutcome := join.MatchLeg(a.index, join.Leg{
		Station: row[colDest],
		Base:    base,
		Year:    year,
		Month:   month,
		Raw:     row[colArrTime],
	})

	return rowResult{
		row:     join.Enrich(row, depObs, arrObs, a.index.Fields()),
		dep:     depOutcome,
		arr:     arrOutcome,
		dateBad: !dateOK,
	}
}

// fallbackYearMonth resolves the YEAR/MONTH pair used when FL_DATE is
// unparseable: explicit columns win, otherwise they derive from the parsed
// date.
func fallbackYearMonth(row csvio.Row, base time.Time, dateOK bool) (int, int) {
	year, yErr := strconv.Atoi(row[colYear])
	month, mErr := strconv.Atoi(row[colMonth])
	if yErr == nil && mErr == nil {
		return year, month
	}
	if dateOK {
		return base.Year(), int(base.Month())
	}
	return 0, 0
}

func (a *Attach) tally(stats *Stats, res rowResult) {
	stats.Flights++
	a.flights.Add(1)
	if res.dateBad {
		stats.DatesUnparseable++
		a.metrics.FlightDatesUnparseable.Inc()
	}
	stats.Departure.record(res.dep)
	stats.Arrival.record(res.arr)
	a.metrics.FlightsProcessed.Inc()
	a.metrics.LegOutcomes.WithLabelValues("dep", res.dep.String()).Inc()
	a.metrics.LegOutcomes.WithLabelValues("arr", res.arr.String()).Inc()
}
