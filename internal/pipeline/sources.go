package pipeline

import (
	"context"

	"github.com/skybatch/flight-weather-etl/internal/adapter/csvio"
)

// csvSource adapts a csvio.Reader to the context-aware BatchReader.
type csvSource struct {
	r *csvio.Reader
}

// NewCSVSource wraps a CSV reader as a pipeline source.
func NewCSVSource(r *csvio.Reader) BatchReader {
	return &csvSource{r: r}
}

func (s *csvSource) ReadBatch(ctx context.Context, maxRows int) (csvio.Batch, error) {
	if err := ctx.Err(); err != nil {
		return csvio.Batch{}, err
	}
	return s.r.ReadBatch(maxRows)
}

// csvSink adapts a csvio.Writer to the context-aware BatchWriter.
type csvSink struct {
	w *csvio.Writer
}

// NewCSVSink wraps a CSV writer as a pipeline sink.
func NewCSVSink(w *csvio.Writer) BatchWriter {
	return &csvSink{w: w}
}

func (s *csvSink) WriteBatch(ctx context.Context, batch csvio.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.w.WriteBatch(batch)
}

// multiWriter fans every batch out to all sinks in order.
type multiWriter struct {
	sinks []BatchWriter
}

// MultiWriter returns a sink that writes each batch to every given sink.
// A single sink is returned unwrapped.
func MultiWriter(sinks ...BatchWriter) BatchWriter {
	if len(sinks) == 1 {
		return sinks[0]
	}
	return &multiWriter{sinks: sinks}
}

func (m *multiWriter) WriteBatch(ctx context.Context, batch csvio.Batch) error {
	for _, s := range m.sinks {
		if err := s.WriteBatch(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}
