package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResolvePeriod(t *testing.T) {
	now := time.Date(2024, time.March, 15, 18, 30, 0, 0, time.UTC)

	tests := []struct {
		name      string
		start     string
		end       string
		wantStart string
		wantEnd   string
	}{
		{"defaults span six months", "", "", "2023-10-01", "2024-04-01"},
		{"explicit end", "", "2023-12", "2023-07-01", "2024-01-01"},
		{"end in june", "", "2024-06", "2024-01-01", "2024-07-01"},
		{"explicit range", "2022-01", "2022-03", "2022-01-01", "2022-04-01"},
		{"malformed end falls back", "", "2024-13", "2023-10-01", "2024-04-01"},
		{"malformed start falls back to current month", "soon", "2024-05", "2024-03-01", "2024-06-01"},
		{"garbage end", "", "yesterday", "2023-10-01", "2024-04-01"},
		{"start after end", "2024-05", "2024-01", "2024-05-01", "2024-02-01"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ResolvePeriod(tc.start, tc.end, now)
			assert.Equal(t, tc.wantStart, got.Start.Format(time.DateOnly))
			assert.Equal(t, tc.wantEnd, got.End.Format(time.DateOnly))
		})
	}
}

func TestResolvePeriodDefaultIsSixCalendarMonths(t *testing.T) {
	for _, now := range []time.Time{
		time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.May, 31, 23, 59, 59, 0, time.UTC),
		time.Date(2025, time.December, 2, 10, 0, 0, 0, time.UTC),
	} {
		period := ResolvePeriod("", "", now)
		months := 0
		for cursor := period.Start; cursor.Before(period.End); cursor = cursor.AddDate(0, 1, 0) {
			months++
		}
		assert.Equal(t, DefaultWindowMonths, months, "now=%s", now)
		assert.Equal(t, now.Month(), period.End.AddDate(0, -1, 0).Month())
	}
}

func TestParseMonth(t *testing.T) {
	y, m, ok := ParseMonth(" 2024-07 ")
	assert.True(t, ok)
	assert.Equal(t, 2024, y)
	assert.Equal(t, 7, m)

	for _, raw := range []string{"", "2024", "2024-00", "2024-7-1", "abcd-01"} {
		_, _, ok := ParseMonth(raw)
		assert.False(t, ok, raw)
	}
}
