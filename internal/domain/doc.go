// Package domain holds the pure functions of the flight-weather temporal join.
//
// # Data Sources
//
// Flight records follow the US DOT on-time reporting layout: one row per
// flight with FL_DATE, ORIGIN, DEST, DEP_TIME, ARR_TIME and optionally
// YEAR/MONTH. Weather observations are ASOS/METAR-style delimited exports
// with a "station" column (airport identifier) and a "valid" observation
// timestamp; every other column is an arbitrary observation field carried
// through verbatim.
//
// # Time Conventions
//
// All times share one naive clock and are represented internally as UTC.
// The join granularity is a 15-minute bucket: [Quantize] rounds
// seconds-since-midnight half-up to the nearest 900 s, carrying across the
// day boundary when a late-evening instant rounds past midnight
// (23:53 → next day 00:00).
//
// Flight times are loosely encoded. DEP_TIME/ARR_TIME appear as "0730",
// "730", "7:30", or "0730.0" depending on the export; [ParseClock] accepts
// all of these. "2400" is the DOT encoding for midnight at the END of the
// flight day but is normalized to 00:00 of the SAME date; downstream
// consumers depend on that quirk, so no day rollover is performed.
//
// FL_DATE appears either as a textual date ("2023-01-01", "2023/1/1") or,
// in some exports, as a raw epoch integer. [ParseFlightDate] tries textual
// layouts first, then interprets a digit run as nanoseconds, milliseconds,
// or seconds since the epoch, accepting the first unit that lands in a
// plausible year.
//
// # Station Codes
//
// Station codes are matched exactly after [NormalizeStation] (trim +
// upper-case); there is no spatial nearest-station fallback.
package domain
