package schedule

import (
	"strings"
	"time"
)

// Parser converts the compact date-times of the room feed
// (YYYYMMDDTHHMM[SS][Z]) into instants.
//
// Location is the local display zone. A nil Location is a valid setup
// (no zone database): UTC then stands in for local time.
type Parser struct {
	Location *time.Location
}

func (p Parser) local() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

// Parse reads s by fixed character offsets. Seconds are ignored.
//
//   - A value ending in "Z" is a UTC instant, converted to the local zone.
//   - A bare value is already local wall-clock time and is not converted.
//
// The result carries the local wall clock pinned to UTC, so a wall time
// inside a daylight-saving gap keeps its digits. Read dates and times of day
// from it directly; it is not the real instant.
//
// Malformed input (empty, no "T", too short, non-digit or out-of-range
// fields) reports ok=false instead of failing.
func (p Parser) Parse(s string) (t time.Time, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	zulu := strings.HasSuffix(s, "Z")
	if zulu {
		s = s[:len(s)-1]
	}
	if !strings.Contains(s, "T") || len(s) < 13 {
		return time.Time{}, false
	}
	datePart, timePart, _ := strings.Cut(s, "T")

	year, ok1 := field(datePart, 0, 4)
	month, ok2 := field(datePart, 4, 6)
	day, ok3 := field(datePart, 6, 8)
	hour, ok4 := field(timePart, 0, 2)
	minute, ok5 := field(timePart, 2, 4)
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 {
		return time.Time{}, false
	}
	if year < 1 || month < 1 || month > 12 || hour > 23 || minute > 59 {
		return time.Time{}, false
	}
	if day < 1 || day > daysIn(time.Month(month), year) {
		return time.Time{}, false
	}

	wall := time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC)
	if zulu {
		return wallClock(wall.In(p.local())), true
	}
	return wall, true
}

// Shift moves a wall clock returned by Parse by hours. The arithmetic runs
// on the UTC-pinned value, so no zone transition can bend it.
func Shift(t time.Time, hours int) time.Time {
	if hours == 0 {
		return t
	}
	return wallClock(t).Add(time.Duration(hours) * time.Hour)
}

// wallClock re-reads t's wall-clock fields in UTC.
func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// field returns the decimal value of s[from:to]; every byte must be an
// ASCII digit and the slice must be complete.
func field(s string, from, to int) (int, bool) {
	if len(s) < to {
		return 0, false
	}
	n := 0
	for i := from; i < to; i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

func daysIn(m time.Month, year int) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
