// Package csvio streams delimited tabular files in bounded batches.
//
// A Batch carries the source column order alongside map-shaped rows so
// downstream stages can both look fields up by name and reproduce a
// deterministic column layout on output.
package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// Row is one record keyed by column name. Absent cells read as "".
type Row map[string]string

// Batch is a bounded slice of rows plus the column order they arrived in.
type Batch struct {
	Columns []string
	Rows    []Row
}

// Reader reads a CSV stream in batches. The header row is consumed on the
// first ReadBatch call.
type Reader struct {
	cr      *csv.Reader
	closer  io.Closer
	columns []string
	done    bool
}

// NewReader wraps an io.Reader producing CSV data.
func NewReader(r io.Reader) *Reader {
	cr := csv.NewReader(r)
	// Ragged exports are common in DOT data; tolerate varying field counts
	// and fill missing cells with empty strings.
	cr.FieldsPerRecord = -1
	return &Reader{cr: cr}
}

// Open opens path for batch reading. Close releases the file handle.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	r := NewReader(f)
	r.closer = f
	return r, nil
}

// ReadBatch returns up to maxRows rows. The final batch may be short;
// io.EOF is returned once the stream is exhausted (possibly alongside an
// empty batch).
func (r *Reader) ReadBatch(maxRows int) (Batch, error) {
	if r.done {
		return Batch{Columns: r.columns}, io.EOF
	}

	if r.columns == nil {
		header, err := r.cr.Read()
		if err == io.EOF {
			r.done = true
			return Batch{}, io.EOF
		}
		if err != nil {
			return Batch{}, fmt.Errorf("read csv header: %w", err)
		}
		r.columns = header
	}

	batch := Batch{Columns: r.columns, Rows: make([]Row, 0, maxRows)}
	for len(batch.Rows) < maxRows {
		rec, err := r.cr.Read()
		if err == io.EOF {
			r.done = true
			if len(batch.Rows) == 0 {
				return batch, io.EOF
			}
			return batch, nil
		}
		if err != nil {
			return batch, fmt.Errorf("read csv row: %w", err)
		}

		row := make(Row, len(r.columns))
		for i, col := range r.columns {
			if i < len(rec) {
				row[col] = rec[i]
			} else {
				row[col] = ""
			}
		}
		batch.Rows = append(batch.Rows, row)
	}
	return batch, nil
}

// Close closes the underlying file when the Reader was created via Open.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
