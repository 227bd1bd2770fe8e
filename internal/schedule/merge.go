package schedule

import (
	"sort"

	"horaire/internal/model"
)

// MergeDay sorts the events of one date by (location, title, start, end)
// and collapses contiguous slots in a single left-to-right pass.
//
// An event joins the current slot only when location and title match and
// its start equals the slot's current end exactly. The slot's end then
// moves to the event's end if that is later; it never shrinks. Gaps and
// overlaps both start a new slot.
func MergeDay(events []model.Event) []model.Event {
	if len(events) == 0 {
		return nil
	}

	sorted := make([]model.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })

	merged := make([]model.Event, 0, len(sorted))
	cur := sorted[0]
	for _, e := range sorted[1:] {
		if e.Location == cur.Location && e.Title == cur.Title && e.Start == cur.End {
			if e.End > cur.End {
				cur.End = e.End
			}
			continue
		}
		merged = append(merged, cur)
		cur = e
	}
	return append(merged, cur)
}

// GroupByDate buckets events by their date key, keeping arrival order.
func GroupByDate(events []model.Event) map[string][]model.Event {
	byDate := make(map[string][]model.Event)
	for _, e := range events {
		byDate[e.DateKey] = append(byDate[e.DateKey], e)
	}
	return byDate
}
