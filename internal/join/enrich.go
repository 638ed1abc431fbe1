package join

import (
	"github.com/skybatch/flight-weather-etl/internal/adapter/csvio"
	"github.com/skybatch/flight-weather-etl/internal/weather"
)

// Leg direction prefixes for the attached weather columns.
const (
	DepPrefix = "DEP_"
	ArrPrefix = "ARR_"
)

// OutputColumns appends the prefixed weather columns to the flight layout.
// Every run's output schema is fixed up front so all rows are uniform.
func OutputColumns(flightColumns, fields []string) []string {
	out := make([]string, 0, len(flightColumns)+2*len(fields))
	out = append(out, flightColumns...)
	for _, f := range fields {
		out = append(out, DepPrefix+f)
	}
	for _, f := range fields {
		out = append(out, ArrPrefix+f)
	}
	return out
}

// Enrich produces a new row carrying the original flight cells plus every
// DEP_/ARR_ weather column. Unmatched legs leave their columns empty; the
// input row is not mutated.
func Enrich(row csvio.Row, dep, arr weather.Observation, fields []string) csvio.Row {
	out := make(csvio.Row, len(row)+2*len(fields))
	for k, v := range row {
		out[k] = v
	}
	for _, f := range fields {
		out[DepPrefix+f] = ""
		out[ArrPrefix+f] = ""
	}
	for f, v := range dep {
		out[DepPrefix+f] = v
	}
	for f, v := range arr {
		out[ArrPrefix+f] = v
	}
	return out
}
