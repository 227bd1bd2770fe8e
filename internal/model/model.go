package model

import (
	"fmt"
	"time"
)

// DateKeyLayout formats a calendar day as the 8-digit key used for grouping
// and ordering days (YYYYMMDD sorts chronologically as a string).
const DateKeyLayout = "20060102"

// DateKey returns the YYYYMMDD key of t's wall-clock date.
func DateKey(t time.Time) string {
	return t.Format(DateKeyLayout)
}

// Clock is a time of day truncated to the minute, in [0, 1440).
type Clock int

// ClockOf returns the hour:minute of t, discarding seconds.
func ClockOf(t time.Time) Clock {
	return Clock(t.Hour()*60 + t.Minute())
}

// String renders the clock as a 4-digit 24-hour value, e.g. "0930".
func (c Clock) String() string {
	m := int(c)
	return fmt.Sprintf("%02d%02d", (m/60)%24, m%60)
}

// MarshalText renders the clock as HHMM, so JSON views match the document.
func (c Clock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Event is one normalized schedule entry for a single day. Location and
// Title are already cleaned (no line breaks, no non-breaking spaces, no
// runs of whitespace).
type Event struct {
	Location string `json:"location"`
	Start    Clock  `json:"start"`
	End      Clock  `json:"end"`
	Title    string `json:"title"`
	DateKey  string `json:"date"`
}

// Less orders events by (location, title, start, end), which is both the
// merge scan order and the serialization order within a day.
func (e Event) Less(o Event) bool {
	if e.Location != o.Location {
		return e.Location < o.Location
	}
	if e.Title != o.Title {
		return e.Title < o.Title
	}
	if e.Start != o.Start {
		return e.Start < o.Start
	}
	return e.End < o.End
}

// Day is the ordered list of events of one calendar date.
type Day struct {
	Key    string  `json:"date"`
	Events []Event `json:"events"`
}
