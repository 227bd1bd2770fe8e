package feed

import (
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	appLog "horaire/internal/log"
)

const maxOccurrencesPerEvent = 5000

const (
	compactLayout      = "20060102T150405"
	compactShortLayout = "20060102T1504"
)

var textUnescaper = strings.NewReplacer(`\\`, `\`, `\,`, `,`, `\;`, `;`, `\n`, "\n", `\N`, "\n")

// decodeICal turns each VEVENT of an iCalendar document into records
// carrying the raw DTSTART/DTEND values, so that timestamp handling stays
// identical to the JSON feed.
func (n Normalizer) decodeICal(text string) []Record {
	cal, err := ical.ParseCalendar(strings.NewReader(text))
	if err != nil {
		appLog.Debug("feed: ics parse failed", "err", err)
		return nil
	}

	out := make([]Record, 0)
	for _, ve := range cal.Events() {
		out = append(out, n.expandVEvent(ve)...)
	}
	appLog.Debug("feed: ics parse completed", "record_count", len(out))
	return out
}

func baseRecord(ve *ical.VEvent) Record {
	rec := Record{}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		rec[KeyLocation] = textUnescaper.Replace(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyDtStart); p != nil {
		rec[KeyStart] = strings.TrimSpace(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyDtEnd); p != nil {
		rec[KeyEnd] = strings.TrimSpace(p.Value)
	}
	for _, p := range ve.GetProperties(ical.ComponentPropertySummary) {
		if isFrench(p.ICalParameters) {
			rec[KeySummaryFR] = textUnescaper.Replace(p.Value)
			continue
		}
		if _, ok := rec[KeySummary]; !ok {
			rec[KeySummary] = textUnescaper.Replace(p.Value)
		}
	}
	return rec
}

func isFrench(params map[string][]string) bool {
	for k, vs := range params {
		if !strings.EqualFold(k, "LANGUAGE") || len(vs) == 0 {
			continue
		}
		lang := strings.ToLower(vs[0])
		return lang == "fr" || strings.HasPrefix(lang, "fr-")
	}
	return false
}

// expandVEvent returns one record per occurrence of ve inside the
// normalizer's horizon. Non-recurring events yield their base record.
func (n Normalizer) expandVEvent(ve *ical.VEvent) []Record {
	base := baseRecord(ve)

	rruleProp := ve.GetProperty(ical.ComponentPropertyRrule)
	if rruleProp == nil || n.From.IsZero() || n.To.IsZero() {
		return []Record{base}
	}

	start, startZulu, err := parseCompact(base.String(KeyStart))
	if err != nil {
		return []Record{base}
	}
	end, endZulu, err := parseCompact(base.String(KeyEnd))
	if err != nil {
		return []Record{base}
	}

	r, err := rrule.StrToRRule(rruleProp.Value)
	if err != nil {
		appLog.Debug("feed: failed to parse RRULE", "rrule", rruleProp.Value, "err", err)
		return []Record{base}
	}
	r.DTStart(start)

	var set rrule.Set
	set.RRule(r)
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			if ex, _, err := parseCompact(part); err == nil {
				set.ExDate(ex)
			}
		}
	}

	occStarts := set.Between(n.From, n.To, true)
	if len(occStarts) > maxOccurrencesPerEvent {
		appLog.Warn("feed: truncated recurring event", "cap", maxOccurrencesPerEvent)
		occStarts = occStarts[:maxOccurrencesPerEvent]
	}

	dur := end.Sub(start)
	out := make([]Record, 0, len(occStarts))
	for _, occ := range occStarts {
		rec := make(Record, len(base))
		for k, v := range base {
			rec[k] = v
		}
		rec[KeyStart] = formatCompact(occ, startZulu)
		rec[KeyEnd] = formatCompact(occ.Add(dur), endZulu)
		out = append(out, rec)
	}
	return out
}

// parseCompact reads a compact date-time as a wall clock pinned to UTC, so
// recurrence arithmetic never crosses a DST boundary. The zone decision is
// left to the timestamp parser once the value is re-encoded.
func parseCompact(v string) (time.Time, bool, error) {
	v = strings.TrimSpace(v)
	zulu := strings.HasSuffix(v, "Z")
	v = strings.TrimSuffix(v, "Z")
	if v == "" {
		return time.Time{}, false, errors.New("empty time value")
	}
	if t, err := time.ParseInLocation(compactLayout, v, time.UTC); err == nil {
		return t, zulu, nil
	}
	t, err := time.ParseInLocation(compactShortLayout, v, time.UTC)
	return t, zulu, err
}

func formatCompact(t time.Time, zulu bool) string {
	s := t.UTC().Format(compactLayout)
	if zulu {
		s += "Z"
	}
	return s
}
