package feed

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	appLog "horaire/internal/log"
)

// Record keys as they appear in the room API feed.
const (
	KeyLocation  = "location"
	KeyStart     = "dtstart"
	KeyEnd       = "dtend"
	KeySummary   = "summary"
	KeySummaryFR = "summary;language=fr"
)

// Record is one untyped entry of a room feed.
type Record map[string]any

// String returns the value under key when it is a JSON string, "" otherwise.
func (r Record) String(key string) string {
	if s, ok := r[key].(string); ok {
		return s
	}
	return ""
}

// Normalizer extracts the flat list of records from one room response.
//
// From/To bound the expansion of recurring events found in iCalendar
// payloads. Leaving either zero disables expansion: a recurring VEVENT then
// yields only its first occurrence.
type Normalizer struct {
	From time.Time
	To   time.Time
}

type variant int

const (
	variantNone variant = iota
	// {"horaire": {"ICAL": "<serialized document>"}}
	variantNested
	// {"feed": [...]}
	variantDirect
)

type response struct {
	variant variant
	nested  json.RawMessage
	feed    json.RawMessage
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decode returns the records carried by body. It never fails: any shape it
// does not recognise yields an empty list.
//
// A body that is not JSON at all is treated as the serialized inner document
// of the nested shape, which is how the room API answers on some endpoints.
func (n Normalizer) Decode(body []byte) []Record {
	body = bytes.TrimPrefix(body, utf8BOM)
	if !json.Valid(body) {
		return n.decodeInner(string(body))
	}

	resp := parseResponse(body)
	switch resp.variant {
	case variantNested:
		var inner string
		if err := json.Unmarshal(resp.nested, &inner); err != nil {
			appLog.Debug("feed: nested ICAL value is not a string")
			return nil
		}
		return n.decodeInner(inner)
	case variantDirect:
		return decodeList(resp.feed)
	default:
		return nil
	}
}

func parseResponse(body []byte) response {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return response{}
	}

	if raw, ok := top["horaire"]; ok {
		var horaire map[string]json.RawMessage
		if err := json.Unmarshal(raw, &horaire); err == nil && horaire != nil {
			if ical, ok := horaire["ICAL"]; ok {
				return response{variant: variantNested, nested: ical}
			}
		}
	}

	if raw, ok := top["feed"]; ok && isJSONArray(raw) {
		return response{variant: variantDirect, feed: raw}
	}
	return response{}
}

// decodeInner handles the serialized document of the nested shape: a JSON
// object with a "feed" list, or an iCalendar document.
func (n Normalizer) decodeInner(text string) []Record {
	var inner map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &inner); err != nil {
		if looksLikeICal(text) {
			return n.decodeICal(text)
		}
		appLog.Debug("feed: inner document is neither JSON nor iCalendar", "bytes", len(text))
		return nil
	}
	raw, ok := inner["feed"]
	if !ok || !isJSONArray(raw) {
		return nil
	}
	return decodeList(raw)
}

// decodeList keeps the object elements of a JSON array.
func decodeList(raw json.RawMessage) []Record {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	out := make([]Record, 0, len(items))
	for _, item := range items {
		var rec Record
		if err := json.Unmarshal(item, &rec); err != nil || rec == nil {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func isJSONArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}

func looksLikeICal(text string) bool {
	head := strings.TrimSpace(text)
	if len(head) > 64 {
		head = head[:64]
	}
	return strings.HasPrefix(strings.ToUpper(head), "BEGIN:VCALENDAR")
}
