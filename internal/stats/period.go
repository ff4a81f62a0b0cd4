package stats

import (
	"strconv"
	"strings"
	"time"
)

// DefaultWindowMonths is the length of the summary window when no start month is given.
const DefaultWindowMonths = 6

// Period is a half-open instant range [Start, End).
type Period struct {
	Start time.Time
	End   time.Time
}

// ParseMonth reads a "YYYY-MM" string.
func ParseMonth(raw string) (year int, month int, ok bool) {
	parts := strings.Split(strings.TrimSpace(raw), "-")
	if len(parts) != 2 {
		return 0, 0, false
	}
	y, err := strconv.Atoi(parts[0])
	if err != nil || y < 1 || y > 9999 {
		return 0, 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 1 || m > 12 {
		return 0, 0, false
	}
	return y, m, true
}

// ResolvePeriod turns optional start/end months into a concrete period. A blank
// or malformed end month becomes the month of now. A blank start reaches back
// so the window spans DefaultWindowMonths months including the end month; a
// malformed one falls back to the month of now. Input never produces an error.
func ResolvePeriod(start string, end string, now time.Time) Period {
	now = now.UTC()
	currentYear, currentMonth := now.Year(), int(now.Month())

	endYear, endMonth, ok := ParseMonth(end)
	if strings.TrimSpace(end) == "" || !ok {
		endYear, endMonth = currentYear, currentMonth
	}

	var startYear, startMonth int
	if strings.TrimSpace(start) == "" {
		span := endYear*12 + endMonth - (DefaultWindowMonths - 1)
		startYear = (span - 1) / 12
		startMonth = (span-1)%12 + 1
	} else if y, m, ok := ParseMonth(start); ok {
		startYear, startMonth = y, m
	} else {
		startYear, startMonth = currentYear, currentMonth
	}

	return Period{
		Start: time.Date(startYear, time.Month(startMonth), 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(endYear, time.Month(endMonth), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0),
	}
}
