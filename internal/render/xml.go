package render

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"horaire/internal/model"
)

// EOL selects the line terminator of the encoded document.
type EOL string

const (
	EOLLF   EOL = "lf"
	EOLCRLF EOL = "crlf"
)

// ParseEOL accepts "lf" or "crlf", case-insensitively.
func ParseEOL(s string) (EOL, error) {
	switch EOL(strings.ToLower(strings.TrimSpace(s))) {
	case EOLLF:
		return EOLLF, nil
	case EOLCRLF:
		return EOLCRLF, nil
	default:
		return "", fmt.Errorf("unknown line ending %q (want lf or crlf)", s)
	}
}

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// XML renders days (already in ascending date order) into the schedule
// document. Every event sits on exactly one line; lines are separated by
// "\n" and the document ends with a trailing newline.
//
//	<dataentry>
//	<MAIN.DayOfWeek index="0">
//	<dDate>20250610</dDate>
//	<tNBEvent index="0"><LOCATION>A101</LOCATION><TimeSTART>0900</TimeSTART><TimeEND>1030</TimeEND><SUMMARY>Algorithmique</SUMMARY></tNBEvent>
//	</MAIN.DayOfWeek>
//	</dataentry>
func XML(days []model.Day) string {
	var b strings.Builder
	b.WriteString("<dataentry>\n")
	for dayIdx, day := range days {
		b.WriteString(`<MAIN.DayOfWeek index="` + strconv.Itoa(dayIdx) + "\">\n")
		b.WriteString("<dDate>" + textEscaper.Replace(day.Key) + "</dDate>\n")
		for evIdx, e := range day.Events {
			b.WriteString(`<tNBEvent index="` + strconv.Itoa(evIdx) + `">`)
			writeField(&b, "LOCATION", e.Location)
			writeField(&b, "TimeSTART", e.Start.String())
			writeField(&b, "TimeEND", e.End.String())
			writeField(&b, "SUMMARY", e.Title)
			b.WriteString("</tNBEvent>\n")
		}
		b.WriteString("</MAIN.DayOfWeek>\n")
	}
	b.WriteString("</dataentry>\n")
	return b.String()
}

func writeField(b *strings.Builder, tag, text string) {
	b.WriteString("<" + tag + ">")
	b.WriteString(textEscaper.Replace(text))
	b.WriteString("</" + tag + ">")
}

// Encode converts the assembled text to its byte form, applying the line
// ending uniformly. Content is never altered otherwise.
func Encode(text string, eol EOL) []byte {
	out := []byte(text)
	if eol == EOLCRLF {
		out = bytes.ReplaceAll(out, []byte("\n"), []byte("\r\n"))
	}
	return out
}
