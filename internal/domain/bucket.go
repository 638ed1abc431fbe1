package domain

import "time"

// bucketSeconds is the temporal join granularity: 15 minutes.
const bucketSeconds = 15 * 60

// Quantize rounds t to the nearest 15-minute boundary within its calendar
// day, rounding half-up. A remainder of 450 s or more rounds to the next
// boundary, so 23:52:30 and later quantize into the following day at 00:00;
// the carry happens naturally through time.Add.
// A zero input is the "no value" case and returns the zero time.
func Quantize(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}

	secs := t.Hour()*3600 + t.Minute()*60 + t.Second()
	rounded := (secs + bucketSeconds/2) / bucketSeconds * bucketSeconds

	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return midnight.Add(time.Duration(rounded) * time.Second)
}
