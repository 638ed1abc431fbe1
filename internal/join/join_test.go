package join

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skybatch/flight-weather-etl/internal/adapter/csvio"
	"github.com/skybatch/flight-weather-etl/internal/weather"
)

func buildIndex(t *testing.T, rows ...csvio.Row) *weather.Index {
	t.Helper()
	b := weather.NewIndexBuilder()
	require.NoError(t, b.AddBatch(csvio.Batch{
		Columns: []string{"station", "valid", "tmpf", "sknt"},
		Rows:    rows,
	}))
	return b.Build()
}

func TestMatchLeg(t *testing.T) {
	ix := buildIndex(t,
		csvio.Row{"station": "JFK", "valid": "2024-01-01 07:31:00", "tmpf": "5", "sknt": "12"},
		csvio.Row{"station": "DFW", "valid": "2024-02-01 00:02:00", "tmpf": "40", "sknt": "6"},
	)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("exact bucket match after rounding both sides", func(t *testing.T) {
		// Flight departs 07:30; the 07:31 observation was quantized to the
		// same bucket.
		obs, outcome := MatchLeg(ix, Leg{Station: "jfk ", Base: base, Raw: "0730"})
		require.Equal(t, OutcomeMatched, outcome)
		assert.Equal(t, "5", obs["tmpf"])
	})

	t.Run("no match for a different bucket", func(t *testing.T) {
		obs, outcome := MatchLeg(ix, Leg{Station: "JFK", Base: base, Raw: "1200"})
		assert.Equal(t, OutcomeNoMatch, outcome)
		assert.Nil(t, obs)
	})

	t.Run("unparseable time", func(t *testing.T) {
		_, outcome := MatchLeg(ix, Leg{Station: "JFK", Base: base, Raw: ""})
		assert.Equal(t, OutcomeUnparseable, outcome)
	})

	t.Run("year month fallback uses day one", func(t *testing.T) {
		obs, outcome := MatchLeg(ix, Leg{Station: "DFW", Year: 2024, Month: 2, Raw: "0005"})
		require.Equal(t, OutcomeApproxMatched, outcome)
		assert.Equal(t, "40", obs["tmpf"])
	})

	t.Run("no date at all", func(t *testing.T) {
		_, outcome := MatchLeg(ix, Leg{Station: "JFK", Raw: "0730"})
		assert.Equal(t, OutcomeNoDate, outcome)
	})

	t.Run("2400 stays on the same date", func(t *testing.T) {
		ix := buildIndex(t,
			csvio.Row{"station": "JFK", "valid": "2024-01-01 00:00:00", "tmpf": "1"},
		)
		// "2400" normalizes to 00:00 of the SAME day, so it hits the
		// Jan 1 midnight bucket, not Jan 2.
		obs, outcome := MatchLeg(ix, Leg{Station: "JFK", Base: base, Raw: "2400"})
		require.Equal(t, OutcomeMatched, outcome)
		assert.Equal(t, "1", obs["tmpf"])
	})
}

func TestOutputColumns(t *testing.T) {
	cols := OutputColumns([]string{"FL_DATE", "ORIGIN"}, []string{"tmpf", "sknt"})
	assert.Equal(t, []string{"FL_DATE", "ORIGIN", "DEP_tmpf", "DEP_sknt", "ARR_tmpf", "ARR_sknt"}, cols)
}

func TestEnrich(t *testing.T) {
	row := csvio.Row{"FL_DATE": "2024-01-01", "ORIGIN": "JFK", "DEST": "DFW"}
	fields := []string{"tmpf", "sknt"}

	t.Run("both legs matched", func(t *testing.T) {
		out := Enrich(row, weather.Observation{"tmpf": "5", "sknt": "12"}, weather.Observation{"tmpf": "40"}, fields)
		assert.Equal(t, "5", out["DEP_tmpf"])
		assert.Equal(t, "12", out["DEP_sknt"])
		assert.Equal(t, "40", out["ARR_tmpf"])
		assert.Equal(t, "", out["ARR_sknt"])
	})

	t.Run("no matches still yields uniform columns", func(t *testing.T) {
		out := Enrich(row, nil, nil, fields)
		for _, f := range fields {
			v, present := out[DepPrefix+f]
			assert.True(t, present)
			assert.Equal(t, "", v)
			v, present = out[ArrPrefix+f]
			assert.True(t, present)
			assert.Equal(t, "", v)
		}
	})

	t.Run("input row is not mutated", func(t *testing.T) {
		_ = Enrich(row, weather.Observation{"tmpf": "5"}, nil, fields)
		_, present := row["DEP_tmpf"]
		assert.False(t, present)
	})
}
