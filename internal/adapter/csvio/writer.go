package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// Writer emits rows under a fixed column layout. The header is written once,
// on the first batch; every row is projected onto that layout so the output
// schema stays uniform regardless of which cells each row carries.
type Writer struct {
	cw            *csv.Writer
	closer        io.Closer
	columns       []string
	headerWritten bool
}

// NewWriter wraps an io.Writer. columns fixes the output layout; pass nil
// to adopt the column order of the first batch written.
func NewWriter(w io.Writer, columns []string) *Writer {
	return &Writer{cw: csv.NewWriter(w), columns: columns}
}

// Create creates (or truncates) path for batch writing.
func Create(path string, columns []string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create csv: %w", err)
	}
	w := NewWriter(f, columns)
	w.closer = f
	return w, nil
}

// WriteBatch writes all rows of the batch in the writer's column order.
func (w *Writer) WriteBatch(batch Batch) error {
	if w.columns == nil {
		w.columns = batch.Columns
	}

	if !w.headerWritten {
		if err := w.cw.Write(w.columns); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
		w.headerWritten = true
	}

	rec := make([]string, len(w.columns))
	for _, row := range batch.Rows {
		for i, col := range w.columns {
			rec[i] = row[col]
		}
		if err := w.cw.Write(rec); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	return nil
}

// Close flushes buffered rows and closes the underlying file when the
// Writer was created via Create.
func (w *Writer) Close() error {
	w.cw.Flush()
	if err := w.cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}
