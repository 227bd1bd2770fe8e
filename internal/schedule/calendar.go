package schedule

import (
	"sort"
	"time"

	"horaire/internal/model"
)

// WeekDays is the length of the generated schedule.
const WeekDays = 7

// Calendar accumulates the events of all rooms, keyed by date.
//
// By default each room's events are merged per day as they are added, so
// slots contributed by two different rooms are never joined. With
// MergeAcrossRooms, merging is deferred to Days and runs once per date over
// everything collected.
type Calendar struct {
	MergeAcrossRooms bool

	days map[string][]model.Event
}

// NewCalendar returns an empty calendar.
func NewCalendar(mergeAcrossRooms bool) *Calendar {
	return &Calendar{
		MergeAcrossRooms: mergeAcrossRooms,
		days:             make(map[string][]model.Event),
	}
}

// AddRoom adds the projected events of one room fetch.
func (c *Calendar) AddRoom(events []model.Event) {
	for key, dayEvents := range GroupByDate(events) {
		if c.MergeAcrossRooms {
			c.days[key] = append(c.days[key], dayEvents...)
			continue
		}
		c.days[key] = append(c.days[key], MergeDay(dayEvents)...)
	}
}

// PadWeek makes sure the WeekDays consecutive dates starting at today are
// present, empty when no event falls on them.
func (c *Calendar) PadWeek(today time.Time) {
	for i := 0; i < WeekDays; i++ {
		key := model.DateKey(addDays(today, i))
		if _, ok := c.days[key]; !ok {
			c.days[key] = []model.Event{}
		}
	}
}

// Days returns the buckets in ascending date order.
func (c *Calendar) Days() []model.Day {
	keys := make([]string, 0, len(c.days))
	for k := range c.days {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]model.Day, 0, len(keys))
	for _, k := range keys {
		events := c.days[k]
		if c.MergeAcrossRooms {
			events = MergeDay(events)
		}
		if events == nil {
			events = []model.Event{}
		}
		out = append(out, model.Day{Key: k, Events: events})
	}
	return out
}

// EventCount returns the number of events currently held.
func (c *Calendar) EventCount() int {
	n := 0
	for _, events := range c.days {
		n += len(events)
	}
	return n
}
