// Package join matches flight legs against the weather index and enriches
// flight rows with the observations it finds. Everything here is a pure
// function over an immutable index, so legs can be matched concurrently.
package join

import (
	"time"

	"github.com/skybatch/flight-weather-etl/internal/domain"
	"github.com/skybatch/flight-weather-etl/internal/weather"
)

// Leg is one directional endpoint of a flight: the station it touches, the
// base calendar date, a year/month fallback, and the raw time-of-day string.
type Leg struct {
	Station string
	Base    time.Time // zero when FL_DATE was unparseable
	Year    int       // fallback when Base is zero
	Month   int
	Raw     string // loosely formatted time-of-day, e.g. "0730"
}

// Outcome classifies a leg match attempt for stats and observability.
type Outcome int

const (
	// OutcomeMatched: an observation was found for the leg's key.
	OutcomeMatched Outcome = iota
	// OutcomeNoMatch: the key was valid but absent from the index.
	OutcomeNoMatch
	// OutcomeUnparseable: no (hour, minute) could be extracted from Raw.
	OutcomeUnparseable
	// OutcomeNoDate: no base date and no usable year/month fallback.
	OutcomeNoDate
	// OutcomeApproxMatched: matched, but via the year/month day-1 fallback
	// date rather than an exact FL_DATE. Kept distinct so runs can report
	// how many matches rest on the approximation.
	OutcomeApproxMatched
)

// String returns the outcome label used in logs.
func (o Outcome) String() string {
	switch o {
	case OutcomeMatched:
		return "matched"
	case OutcomeNoMatch:
		return "no_match"
	case OutcomeUnparseable:
		return "unparseable_time"
	case OutcomeNoDate:
		return "no_date"
	case OutcomeApproxMatched:
		return "matched_approx_date"
	default:
		return "unknown"
	}
}

// MatchLeg computes the leg's quantized lookup key and queries the index.
// The index is never written to; concurrent calls are safe.
func MatchLeg(ix *weather.Index, leg Leg) (weather.Observation, Outcome) {
	hour, minute, ok := domain.ParseClock(leg.Raw)
	if !ok {
		return nil, OutcomeUnparseable
	}

	base := leg.Base
	approx := false
	if base.IsZero() {
		// Documented approximation: day 1 of YEAR/MONTH when the full date
		// is unavailable.
		if leg.Year == 0 || leg.Month < 1 || leg.Month > 12 {
			return nil, OutcomeNoDate
		}
		base = time.Date(leg.Year, time.Month(leg.Month), 1, 0, 0, 0, 0, time.UTC)
		approx = true
	}

	at := time.Date(base.Year(), base.Month(), base.Day(), hour, minute, 0, 0, time.UTC)
	bucket := domain.Quantize(at)

	obs, found := ix.Lookup(domain.NormalizeStation(leg.Station), bucket)
	if !found {
		return nil, OutcomeNoMatch
	}
	if approx {
		return obs, OutcomeApproxMatched
	}
	return obs, OutcomeMatched
}
