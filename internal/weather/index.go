// Package weather builds the (station, time-bucket) lookup index that the
// join queries. The index is an explicit two-phase object: a mutable
// IndexBuilder accumulates batches, then Build freezes it into an Index
// that is only ever read, safe for concurrent lookups without locking.
package weather

import (
	"errors"
	"time"

	"github.com/skybatch/flight-weather-etl/internal/adapter/csvio"
	"github.com/skybatch/flight-weather-etl/internal/domain"
)

// Column names with fixed meaning in the weather source. Everything else is
// an observation field carried through verbatim.
const (
	stationColumn = "station"
	validColumn   = "valid"
)

// ErrMissingStationColumn is the one fatal schema violation: without the
// station column the join key cannot be formed, so the run aborts.
var ErrMissingStationColumn = errors.New("weather input missing station column")

// Observation maps observation field names to their raw values for one
// (station, bucket) key.
type Observation map[string]string

// Key identifies one observation slot: a normalized station code and a
// 15-minute time bucket.
type Key struct {
	Station string
	Bucket  time.Time
}

// IndexBuilder accumulates weather batches into the lookup map.
// Duplicate keys resolve first-seen-wins in stream order across batches.
type IndexBuilder struct {
	entries map[Key]Observation
	fields  []string

	rowsSeen          int
	droppedTimestamps int
}

// NewIndexBuilder creates an empty builder.
func NewIndexBuilder() *IndexBuilder {
	return &IndexBuilder{entries: make(map[Key]Observation)}
}

// AddBatch normalizes, quantizes, and indexes one batch of weather rows.
// Rows with an unparseable "valid" timestamp are dropped and counted.
// Returns ErrMissingStationColumn when the batch lacks the station column.
func (b *IndexBuilder) AddBatch(batch csvio.Batch) error {
	if !hasColumn(batch.Columns, stationColumn) {
		return ErrMissingStationColumn
	}

	for _, row := range batch.Rows {
		b.rowsSeen++

		ts, ok := domain.ParseTimestamp(row[validColumn])
		if !ok {
			b.droppedTimestamps++
			continue
		}

		// Field names come from the first batch that contributes an entry;
		// later batches are assumed to share the schema.
		if b.fields == nil {
			b.fields = observationFields(batch.Columns)
		}

		key := Key{
			Station: domain.NormalizeStation(row[stationColumn]),
			Bucket:  domain.Quantize(ts),
		}
		if _, exists := b.entries[key]; exists {
			continue
		}

		obs := make(Observation, len(b.fields))
		for _, f := range b.fields {
			obs[f] = row[f]
		}
		b.entries[key] = obs
	}
	return nil
}

// RowsSeen reports how many weather rows have been consumed.
func (b *IndexBuilder) RowsSeen() int { return b.rowsSeen }

// DroppedTimestamps reports rows excluded for an unparseable "valid" value.
func (b *IndexBuilder) DroppedTimestamps() int { return b.droppedTimestamps }

// Build freezes the accumulated state into a read-only Index. The builder
// must not be used after Build.
func (b *IndexBuilder) Build() *Index {
	return &Index{entries: b.entries, fields: b.fields}
}

// Index is the immutable (station, bucket) → observation lookup.
type Index struct {
	entries map[Key]Observation
	fields  []string
}

// Lookup returns the observation stored for the given station and bucket.
func (ix *Index) Lookup(station string, bucket time.Time) (Observation, bool) {
	obs, ok := ix.entries[Key{Station: station, Bucket: bucket}]
	return obs, ok
}

// Fields returns the observation field names in source column order.
func (ix *Index) Fields() []string { return ix.fields }

// Len returns the number of distinct (station, bucket) keys held.
func (ix *Index) Len() int { return len(ix.entries) }

func hasColumn(columns []string, name string) bool {
	for _, c := range columns {
		if c == name {
			return true
		}
	}
	return false
}

// observationFields strips the key columns, preserving source order.
func observationFields(columns []string) []string {
	fields := make([]string, 0, len(columns))
	for _, c := range columns {
		if c == stationColumn || c == validColumn {
			continue
		}
		fields = append(fields, c)
	}
	return fields
}
