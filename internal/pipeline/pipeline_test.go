package pipeline_test

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skybatch/flight-weather-etl/internal/adapter/csvio"
	"github.com/skybatch/flight-weather-etl/internal/observability"
	"github.com/skybatch/flight-weather-etl/internal/pipeline"
	"github.com/skybatch/flight-weather-etl/internal/weather"
)

// --- mocks ---

type mockSource struct {
	batches []csvio.Batch
	next    int
	fail    error
}

func (m *mockSource) ReadBatch(_ context.Context, _ int) (csvio.Batch, error) {
	if m.fail != nil {
		return csvio.Batch{}, m.fail
	}
	if m.next >= len(m.batches) {
		return csvio.Batch{}, io.EOF
	}
	b := m.batches[m.next]
	m.next++
	if m.next == len(m.batches) {
		return b, io.EOF
	}
	return b, nil
}

type mockSink struct {
	batches []csvio.Batch
}

func (m *mockSink) WriteBatch(_ context.Context, batch csvio.Batch) error {
	m.batches = append(m.batches, batch)
	return nil
}

func (m *mockSink) rows() []csvio.Row {
	var rows []csvio.Row
	for _, b := range m.batches {
		rows = append(rows, b.Rows...)
	}
	return rows
}

func weatherSource(rows ...csvio.Row) *mockSource {
	return &mockSource{batches: []csvio.Batch{{
		Columns: []string{"station", "valid", "tmpf", "sknt"},
		Rows:    rows,
	}}}
}

func flightSource(rows ...csvio.Row) *mockSource {
	return &mockSource{batches: []csvio.Batch{{
		Columns: []string{"FL_DATE", "ORIGIN", "DEST", "DEP_TIME", "ARR_TIME"},
		Rows:    rows,
	}}}
}

func buildTestIndex(t *testing.T, src pipeline.BatchReader) *weather.Index {
	t.Helper()
	ix, _, err := pipeline.BuildIndex(context.Background(), src, 1000, slog.Default(), observability.NewMetricsForTesting())
	require.NoError(t, err)
	return ix
}

// --- tests ---

func TestBuildIndex(t *testing.T) {
	src := weatherSource(
		csvio.Row{"station": "jfk ", "valid": "2024-01-01 07:31:00", "tmpf": "5", "sknt": "12"},
		csvio.Row{"station": "JFK", "valid": "bogus", "tmpf": "9"},
	)

	ix, stats, err := pipeline.BuildIndex(context.Background(), src, 1000, slog.Default(), observability.NewMetricsForTesting())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.RowsRead)
	assert.Equal(t, 1, stats.DroppedTimestamps)
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, []string{"tmpf", "sknt"}, ix.Fields())
}

func TestBuildIndex_MissingStationColumnFatal(t *testing.T) {
	src := &mockSource{batches: []csvio.Batch{{
		Columns: []string{"valid", "tmpf"},
		Rows:    []csvio.Row{{"valid": "2024-01-01 07:31:00", "tmpf": "5"}},
	}}}

	_, _, err := pipeline.BuildIndex(context.Background(), src, 1000, slog.Default(), observability.NewMetricsForTesting())
	assert.ErrorIs(t, err, weather.ErrMissingStationColumn)
}

func TestAttach_Run_EndToEnd(t *testing.T) {
	ix := buildTestIndex(t, weatherSource(
		csvio.Row{"station": "JFK", "valid": "2024-01-01 07:31:00", "tmpf": "5", "sknt": "12"},
		csvio.Row{"station": "DFW", "valid": "2024-01-01 11:00:00", "tmpf": "41", "sknt": "8"},
	))

	src := flightSource(csvio.Row{
		"FL_DATE": "2024-01-01", "ORIGIN": "jfk ", "DEST": "DFW",
		"DEP_TIME": "0730", "ARR_TIME": "1058",
	})
	sink := &mockSink{}

	a := pipeline.NewAttach(ix, slog.Default(), observability.NewMetricsForTesting(), 1000, 2)
	stats, err := a.Run(context.Background(), src, sink)
	require.NoError(t, err)

	rows := sink.rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "5", rows[0]["DEP_tmpf"])
	assert.Equal(t, "12", rows[0]["DEP_sknt"])
	assert.Equal(t, "41", rows[0]["ARR_tmpf"])

	assert.Equal(t, 1, stats.Flights)
	assert.Equal(t, 1, stats.Departure.Matched)
	assert.Equal(t, 1, stats.Arrival.Matched)
	require.NoError(t, a.CheckReadiness(context.Background()))

	entries, flights := a.Progress()
	assert.Equal(t, 2, entries)
	assert.Equal(t, int64(1), flights)
}

func TestAttach_Run_EmptyDepTimeIsNotFatal(t *testing.T) {
	ix := buildTestIndex(t, weatherSource(
		csvio.Row{"station": "JFK", "valid": "2024-01-01 07:31:00", "tmpf": "5", "sknt": "12"},
	))

	src := flightSource(
		csvio.Row{"FL_DATE": "2024-01-01", "ORIGIN": "JFK", "DEST": "DFW", "DEP_TIME": "", "ARR_TIME": ""},
		csvio.Row{"FL_DATE": "2024-01-01", "ORIGIN": "JFK", "DEST": "DFW", "DEP_TIME": "0730", "ARR_TIME": ""},
	)
	sink := &mockSink{}

	a := pipeline.NewAttach(ix, slog.Default(), observability.NewMetricsForTesting(), 1000, 1)
	stats, err := a.Run(context.Background(), src, sink)
	require.NoError(t, err)

	rows := sink.rows()
	require.Len(t, rows, 2)

	// First row: unparseable leg, empty columns, no fatal error.
	assert.Equal(t, "", rows[0]["DEP_tmpf"])
	// Second row in the same run still matches normally.
	assert.Equal(t, "5", rows[1]["DEP_tmpf"])

	assert.Equal(t, 1, stats.Departure.Unparseable)
	assert.Equal(t, 1, stats.Departure.Matched)
	assert.Equal(t, 2, stats.Arrival.Unparseable)
}

func TestAttach_Run_SchemaUniformAcrossRows(t *testing.T) {
	ix := buildTestIndex(t, weatherSource(
		csvio.Row{"station": "JFK", "valid": "2024-01-01 07:31:00", "tmpf": "5", "sknt": "12"},
	))

	src := flightSource(
		csvio.Row{"FL_DATE": "2024-01-01", "ORIGIN": "JFK", "DEST": "DFW", "DEP_TIME": "0730", "ARR_TIME": "1100"},
		csvio.Row{"FL_DATE": "", "ORIGIN": "", "DEST": "", "DEP_TIME": "", "ARR_TIME": ""},
	)
	sink := &mockSink{}

	a := pipeline.NewAttach(ix, slog.Default(), observability.NewMetricsForTesting(), 1000, 1)
	_, err := a.Run(context.Background(), src, sink)
	require.NoError(t, err)

	require.Len(t, sink.batches, 1)
	expected := []string{
		"FL_DATE", "ORIGIN", "DEST", "DEP_TIME", "ARR_TIME",
		"DEP_tmpf", "DEP_sknt", "ARR_tmpf", "ARR_sknt",
	}
	assert.Equal(t, expected, sink.batches[0].Columns)
	for _, row := range sink.rows() {
		for _, col := range expected {
			_, present := row[col]
			assert.True(t, present, "column %s missing", col)
		}
	}
}

func TestAttach_Run_PreservesRowOrderAcrossWorkers(t *testing.T) {
	ix := buildTestIndex(t, weatherSource(
		csvio.Row{"station": "JFK", "valid": "2024-01-01 07:31:00", "tmpf": "5", "sknt": "12"},
	))

	var rows []csvio.Row
	for i := 0; i < 500; i++ {
		rows = append(rows, csvio.Row{
			"FL_DATE": "2024-01-01", "ORIGIN": "JFK", "DEST": "DFW",
			"DEP_TIME": "0730", "ARR_TIME": "1100",
			"ROW_ID": strconv.Itoa(i),
		})
	}
	src := &mockSource{batches: []csvio.Batch{{
		Columns: []string{"FL_DATE", "ORIGIN", "DEST", "DEP_TIME", "ARR_TIME", "ROW_ID"},
		Rows:    rows,
	}}}
	sink := &mockSink{}

	a := pipeline.NewAttach(ix, slog.Default(), observability.NewMetricsForTesting(), 1000, 8)
	stats, err := a.Run(context.Background(), src, sink)
	require.NoError(t, err)
	assert.Equal(t, 500, stats.Flights)

	out := sink.rows()
	require.Len(t, out, 500)
	for i, row := range out {
		assert.Equal(t, strconv.Itoa(i), row["ROW_ID"])
	}
}

func TestAttach_Run_YearMonthFallback(t *testing.T) {
	ix := buildTestIndex(t, weatherSource(
		csvio.Row{"station": "JFK", "valid": "2024-02-01 07:31:00", "tmpf": "7", "sknt": "3"},
	))

	src := &mockSource{batches: []csvio.Batch{{
		Columns: []string{"FL_DATE", "YEAR", "MONTH", "ORIGIN", "DEST", "DEP_TIME", "ARR_TIME"},
		Rows: []csvio.Row{{
			"FL_DATE": "not-a-date", "YEAR": "2024", "MONTH": "2",
			"ORIGIN": "JFK", "DEST": "DFW", "DEP_TIME": "0730", "ARR_TIME": "",
		}},
	}}}
	sink := &mockSink{}

	a := pipeline.NewAttach(ix, slog.Default(), observability.NewMetricsForTesting(), 1000, 1)
	stats, err := a.Run(context.Background(), src, sink)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.DatesUnparseable)
	assert.Equal(t, 1, stats.Departure.ApproxMatched)
	assert.Equal(t, "7", sink.rows()[0]["DEP_tmpf"])
}

func TestAttach_Run_ContextCancellation(t *testing.T) {
	ix := buildTestIndex(t, weatherSource(
		csvio.Row{"station": "JFK", "valid": "2024-01-01 07:31:00", "tmpf": "5", "sknt": "1"},
	))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := pipeline.NewAttach(ix, slog.Default(), observability.NewMetricsForTesting(), 1000, 1)
	_, err := a.Run(ctx, flightSource(), &mockSink{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMultiWriter_FansOut(t *testing.T) {
	a, b := &mockSink{}, &mockSink{}
	mw := pipeline.MultiWriter(a, b)

	batch := csvio.Batch{Columns: []string{"x"}, Rows: []csvio.Row{{"x": "1"}}}
	require.NoError(t, mw.WriteBatch(context.Background(), batch))

	assert.Len(t, a.rows(), 1)
	assert.Len(t, b.rows(), 1)
}
