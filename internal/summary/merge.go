// Package summary merges carrier/airport traffic summary exports into one
// table. Inputs may disagree on columns; the output is the ordered union,
// with missing cells left empty. Deduplication is first-seen-wins on a
// caller-chosen key column list, matching the join's collision policy.
package summary

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/skybatch/flight-weather-etl/internal/adapter/csvio"
	"github.com/skybatch/flight-weather-etl/internal/domain"
)

// descriptionColumn is added when an aircraft-type lookup is supplied.
const descriptionColumn = "DESCRIPTION"

// Canonical spellings used by the minimal projection. Resolved candidate
// columns are renamed to these before projecting.
const (
	canonicalCarrier = "UNIQUE_CARRIER"
	canonicalType    = "AIRCRAFT_TYPE"
)

// Column candidates, in preference order. DOT exports are inconsistent
// about carrier and aircraft-type column names.
var (
	carrierCandidates      = []string{canonicalCarrier, "OP_UNIQUE_CARRIER", "CARRIER"}
	aircraftTypeCandidates = []string{canonicalType, "AIRCRAFT_TYPE_ID"}
)

// minimalColumns is the projection used for downstream enrichment joins.
var minimalColumns = []string{"YEAR", "MONTH", "UNIQUE_CARRIER", "ORIGIN", "DEST", "AIRCRAFT_TYPE", descriptionColumn}

// Options controls filtering, deduplication, and projection.
type Options struct {
	// DedupeOn lists key columns; rows repeating a key are dropped
	// first-seen-wins. Empty disables deduplication.
	DedupeOn []string

	// Carrier keeps only rows whose carrier column matches (normalized).
	Carrier string

	// Airports keeps only rows whose ORIGIN and DEST are both in the set.
	Airports []string

	// AircraftTypes maps type codes to descriptions; when non-nil a
	// DESCRIPTION column is appended and populated.
	AircraftTypes map[string]string

	// Minimal projects the output onto the minimal enrichment columns.
	Minimal bool
}

// Stats summarizes one merge run.
type Stats struct {
	RowsRead    int
	RowsWritten int
	Duplicates  int
	FilteredOut int
}

// Merge streams every reader into the writer under a unified schema.
func Merge(ctx context.Context, readers []*csvio.Reader, w *csvio.Writer, chunkSize int, opts Options, logger *slog.Logger) (Stats, error) {
	var stats Stats

	union, headers, err := columnUnion(readers)
	if err != nil {
		return stats, err
	}
	if opts.AircraftTypes != nil && !contains(union, descriptionColumn) {
		union = append(union, descriptionColumn)
	}

	outColumns := union
	if opts.Minimal {
		outColumns = project(canonicalize(union), minimalColumns)
	}

	airports := make(map[string]bool, len(opts.Airports))
	for _, a := range opts.Airports {
		airports[domain.NormalizeStation(a)] = true
	}

	var seen map[string]bool
	if len(opts.DedupeOn) > 0 {
		seen = make(map[string]bool)
	}

	for i, r := range readers {
		carrierCol := pickColumn(headers[i], carrierCandidates)
		typeCol := pickColumn(headers[i], aircraftTypeCandidates)

		for {
			if err := ctx.Err(); err != nil {
				return stats, err
			}

			batch, err := r.ReadBatch(chunkSize)
			if err != nil && !errors.Is(err, io.EOF) {
				return stats, fmt.Errorf("read summary input %d: %w", i, err)
			}

			out := csvio.Batch{Columns: outColumns, Rows: make([]csvio.Row, 0, len(batch.Rows))}
			for _, row := range batch.Rows {
				stats.RowsRead++

				if !keepRow(row, opts, carrierCol, airports) {
					stats.FilteredOut++
					continue
				}
				if seen != nil {
					key := dedupeKey(row, opts.DedupeOn)
					if seen[key] {
						stats.Duplicates++
						continue
					}
					seen[key] = true
				}
				if opts.AircraftTypes != nil && typeCol != "" {
					row[descriptionColumn] = opts.AircraftTypes[strings.TrimSpace(row[typeCol])]
				}
				if opts.Minimal {
					if carrierCol != "" && carrierCol != canonicalCarrier {
						row[canonicalCarrier] = row[carrierCol]
					}
					if typeCol != "" && typeCol != canonicalType {
						row[canonicalType] = row[typeCol]
					}
				}
				out.Rows = append(out.Rows, row)
				stats.RowsWritten++
			}

			if len(out.Rows) > 0 {
				if wErr := w.WriteBatch(out); wErr != nil {
					return stats, fmt.Errorf("write merged batch: %w", wErr)
				}
			}
			if errors.Is(err, io.EOF) {
				break
			}
		}
	}

	logger.Info("summary merge complete",
		"rows_read", stats.RowsRead,
		"rows_written", stats.RowsWritten,
		"duplicates", stats.Duplicates,
		"filtered_out", stats.FilteredOut,
	)
	return stats, nil
}

// LoadAircraftTypes reads a DOT aircraft-type lookup CSV into a
// code → description map.
func LoadAircraftTypes(r *csvio.Reader) (map[string]string, error) {
	types := make(map[string]string)
	var codeCol, descCol string

	for {
		batch, err := r.ReadBatch(10000)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read aircraft types: %w", err)
		}

		if codeCol == "" && len(batch.Columns) > 0 {
			codeCol = pickColumn(batch.Columns, []string{"Code", "AC_TYPEID", "AIRCRAFT_TYPE"})
			descCol = pickColumn(batch.Columns, []string{"Description", "SSD_NAME"})
			if codeCol == "" || descCol == "" {
				return nil, errors.New("aircraft type file missing code or description column")
			}
		}

		for _, row := range batch.Rows {
			code := strings.TrimSpace(row[codeCol])
			if code == "" {
				continue
			}
			if _, exists := types[code]; !exists {
				types[code] = strings.TrimSpace(row[descCol])
			}
		}
		if errors.Is(err, io.EOF) {
			return types, nil
		}
	}
}

// columnUnion peeks every reader's header and returns the ordered union
// plus each input's own header.
func columnUnion(readers []*csvio.Reader) ([]string, [][]string, error) {
	var union []string
	headers := make([][]string, len(readers))

	for i, r := range readers {
		batch, err := r.ReadBatch(0)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("read header of input %d: %w", i, err)
		}
		headers[i] = batch.Columns
		for _, c := range batch.Columns {
			if !contains(union, c) {
				union = append(union, c)
			}
		}
	}
	return union, headers, nil
}

func keepRow(row csvio.Row, opts Options, carrierCol string, airports map[string]bool) bool {
	if opts.Carrier != "" {
		if carrierCol == "" || !strings.EqualFold(strings.TrimSpace(row[carrierCol]), opts.Carrier) {
			return false
		}
	}
	if len(airports) > 0 {
		if !airports[domain.NormalizeStation(row["ORIGIN"])] || !airports[domain.NormalizeStation(row["DEST"])] {
			return false
		}
	}
	return true
}

func dedupeKey(row csvio.Row, keys []string) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = strings.TrimSpace(row[k])
	}
	return strings.Join(parts, "|")
}

// pickColumn resolves the first candidate present, case-insensitively,
// returning the column's actual spelling.
func pickColumn(columns, candidates []string) string {
	byUpper := make(map[string]string, len(columns))
	for _, c := range columns {
		byUpper[strings.ToUpper(c)] = c
	}
	for _, cand := range candidates {
		if actual, ok := byUpper[strings.ToUpper(cand)]; ok {
			return actual
		}
	}
	return ""
}

// canonicalize renames carrier and aircraft-type candidate columns to
// their canonical spellings, collapsing duplicates onto the first
// occurrence.
func canonicalize(columns []string) []string {
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		switch {
		case pickColumn([]string{c}, carrierCandidates) != "":
			c = canonicalCarrier
		case pickColumn([]string{c}, aircraftTypeCandidates) != "":
			c = canonicalType
		}
		if !contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}

func project(columns, keep []string) []string {
	out := make([]string, 0, len(keep))
	for _, k := range keep {
		if contains(columns, k) {
			out = append(out, k)
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
