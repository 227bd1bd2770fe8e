package schedule

import (
	"strings"
	"time"
	"unicode"

	"horaire/internal/feed"
	appLog "horaire/internal/log"
	"horaire/internal/model"
)

// Window is an inclusive range of local calendar dates.
type Window struct {
	First time.Time
	Last  time.Time
}

// NewWindow returns the window of days consecutive dates starting at today.
func NewWindow(today time.Time, days int) Window {
	if days < 1 {
		days = 1
	}
	return Window{First: today, Last: addDays(today, days-1)}
}

// Contains reports whether t's wall-clock date lies inside the window.
func (w Window) Contains(t time.Time) bool {
	k := model.DateKey(t)
	return k >= model.DateKey(w.First) && k <= model.DateKey(w.Last)
}

// Projection filters raw feed records and projects them into events.
type Projection struct {
	Parser Parser
	// RoomFilter keeps only records whose cleaned location equals it.
	// Empty disables the filter.
	RoomFilter string
	Window     Window
	// ShiftHours is added to both instants before any comparison.
	ShiftHours int
}

// Project returns the events of records that pass the room and date
// filters. Records with unparseable timestamps are dropped. No ordering is
// guaranteed.
func (p Projection) Project(records []feed.Record) []model.Event {
	events := make([]model.Event, 0, len(records))
	var filtered, unparsed, outside int

	for _, rec := range records {
		loc := CleanText(rec.String(feed.KeyLocation))
		if p.RoomFilter != "" && loc != p.RoomFilter {
			filtered++
			continue
		}

		start, ok := p.Parser.Parse(rec.String(feed.KeyStart))
		if !ok {
			unparsed++
			continue
		}
		end, ok := p.Parser.Parse(rec.String(feed.KeyEnd))
		if !ok {
			unparsed++
			continue
		}

		start = Shift(start, p.ShiftHours)
		end = Shift(end, p.ShiftHours)

		if !p.Window.Contains(start) {
			outside++
			continue
		}

		title := rec.String(feed.KeySummaryFR)
		if title == "" {
			title = rec.String(feed.KeySummary)
		}

		events = append(events, model.Event{
			Location: loc,
			Start:    model.ClockOf(start),
			End:      model.ClockOf(end),
			Title:    CleanText(title),
			DateKey:  model.DateKey(start),
		})
	}

	if filtered+unparsed+outside > 0 {
		appLog.Debug("records dropped",
			"room_filter", p.RoomFilter,
			"other_room", filtered,
			"bad_timestamp", unparsed,
			"outside_window", outside,
		)
	}
	return events
}

// CleanText replaces non-breaking spaces and line breaks with spaces,
// collapses whitespace runs of two or more characters into one space and
// trims both ends. A single whitespace character is kept as is.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.TrimSpace(collapseSpaces(joinLines(s)))
}

// joinLines turns every run of CR/LF characters into one space.
func joinLines(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inBreak := false
	for _, r := range s {
		if r == '\r' || r == '\n' {
			if !inBreak {
				b.WriteByte(' ')
			}
			inBreak = true
			continue
		}
		inBreak = false
		b.WriteRune(r)
	}
	return b.String()
}

func collapseSpaces(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(runes); {
		if !unicode.IsSpace(runes[i]) {
			b.WriteRune(runes[i])
			i++
			continue
		}
		j := i
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		if j-i >= 2 {
			b.WriteByte(' ')
		} else {
			b.WriteRune(runes[i])
		}
		i = j
	}
	return b.String()
}

func addDays(t time.Time, n int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day()+n, 12, 0, 0, 0, t.Location())
}
