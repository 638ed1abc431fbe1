package domain

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// clockRe matches an hour-minute pair anywhere in a flight-time string:
	// 1-2 hour digits, optional colon, exactly two minute digits.
	// Covers "0730", "730", "7:30", and "0730.0" (the trailing ".0" is
	// ignored because the match stops at the minute digits).
	clockRe = regexp.MustCompile(`(\d{1,2}):?(\d{2})`)

	// digitRunRe grabs the first run of digits for the zero-pad fallback.
	digitRunRe = regexp.MustCompile(`\d+`)

	// nonDigitRe strips everything but digits from an epoch-like FL_DATE.
	nonDigitRe = regexp.MustCompile(`\D`)
)

// ParseClock extracts an (hour, minute) pair from a loosely formatted
// time-of-day string. The colon-style pattern is tried first; when it
// matches, its validation verdict is final and the digit-run fallback is
// not consulted. "24:00" normalizes to (0, 0) without a date rollover.
// Returns ok=false for empty input or out-of-range values.
func ParseClock(raw string) (hour, minute int, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, 0, false
	}

	if m := clockRe.FindStringSubmatch(raw); m != nil {
		h, _ := strconv.Atoi(m[1])
		mnt, _ := strconv.Atoi(m[2])
		return validateClock(h, mnt)
	}

	d := digitRunRe.FindString(raw)
	if d == "" {
		return 0, 0, false
	}
	for len(d) < 4 {
		d = "0" + d
	}
	h, errH := strconv.Atoi(d[:2])
	mnt, errM := strconv.Atoi(d[2:])
	if errH != nil || errM != nil {
		return 0, 0, false
	}
	return validateClock(h, mnt)
}

func validateClock(h, m int) (int, int, bool) {
	if h == 24 && m == 0 {
		return 0, 0, true
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, false
	}
	return h, m, true
}

// NormalizeStation trims and upper-cases a station code so that lookups
// are case-insensitive by construction.
func NormalizeStation(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// timestampLayouts are tried in order for weather "valid" timestamps.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006/01/02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses a weather observation timestamp. Returns ok=false
// when no layout matches; the caller drops the record rather than failing
// the run.
func ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// dateLayouts are tried in order for FL_DATE values.
var dateLayouts = []string{
	"2006-01-02",
	"2006/1/2",
	"1/2/2006",
	"01/02/2006",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
}

// ParseFlightDate parses a flight date of unknown format. Textual layouts
// are tried first; failing those, the digit run is interpreted as an epoch
// value in nanoseconds, then milliseconds, then seconds, accepting the
// first unit that produces a year between 2000 and 2100. The lower bound
// matters: a seconds-epoch read as nanoseconds lands in 1970, so a window
// starting at the epoch would accept the wrong unit. Returns ok=false when
// nothing fits.
func ParseFlightDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}

	dig := nonDigitRe.ReplaceAllString(raw, "")
	if dig == "" {
		return time.Time{}, false
	}
	n, err := strconv.ParseInt(dig, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	for _, fromUnit := range []func(int64) time.Time{
		func(v int64) time.Time { return time.Unix(0, v) },
		func(v int64) time.Time { return time.UnixMilli(v) },
		func(v int64) time.Time { return time.Unix(v, 0) },
	} {
		t := fromUnit(n).UTC()
		if t.Year() >= 2000 && t.Year() <= 2100 {
			return t, true
		}
	}
	return time.Time{}, false
}
