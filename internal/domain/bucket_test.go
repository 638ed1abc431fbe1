package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQuantize(t *testing.T) {
	day := func(h, m, s int) time.Time {
		return time.Date(2024, time.January, 1, h, m, s, 0, time.UTC)
	}

	tests := []struct {
		name     string
		in       time.Time
		expected time.Time
	}{
		{"exact boundary", day(7, 0, 0), day(7, 0, 0)},
		{"just below half bucket", day(7, 7, 29), day(7, 0, 0)},
		{"just above half bucket", day(7, 7, 31), day(7, 15, 0)},
		{"half bucket rounds up", day(7, 7, 30), day(7, 15, 0)},
		{"rounds down within bucket", day(7, 31, 0), day(7, 30, 0)},
		{"rounds up within bucket", day(7, 38, 0), day(7, 45, 0)},
		{"carries across hour", day(7, 53, 0), day(8, 0, 0)},
		{"carries across midnight", day(23, 53, 0), time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)},
		{"late tie carries across midnight", day(23, 52, 30), time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)},
		{"midnight stays put", day(0, 0, 0), day(0, 0, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Quantize(tt.in))
		})
	}
}

func TestQuantize_ZeroInput(t *testing.T) {
	assert.True(t, Quantize(time.Time{}).IsZero())
}

func TestQuantize_SameBucketGroups(t *testing.T) {
	// Every instant within 7.5 minutes of a boundary lands on that boundary.
	base := time.Date(2024, time.March, 15, 7, 0, 0, 0, time.UTC)
	for _, offset := range []time.Duration{0, time.Second, 3 * time.Minute, 7*time.Minute + 29*time.Second} {
		assert.Equal(t, base, Quantize(base.Add(offset)), "offset %v", offset)
	}
}
