package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"horaire/internal/model"
)

func TestXMLEndToEndEvent(t *testing.T) {
	days := []model.Day{{
		Key: "20250610",
		Events: []model.Event{{
			Location: "A101",
			Start:    9 * 60,
			End:      10*60 + 30,
			Title:    "Algorithmique",
		}},
	}}

	want := "<dataentry>\n" +
		"<MAIN.DayOfWeek index=\"0\">\n" +
		"<dDate>20250610</dDate>\n" +
		"<tNBEvent index=\"0\"><LOCATION>A101</LOCATION><TimeSTART>0900</TimeSTART><TimeEND>1030</TimeEND><SUMMARY>Algorithmique</SUMMARY></tNBEvent>\n" +
		"</MAIN.DayOfWeek>\n" +
		"</dataentry>\n"
	assert.Equal(t, want, XML(days))
}

func TestXMLIndexesAreSequential(t *testing.T) {
	days := []model.Day{
		{Key: "20250610", Events: []model.Event{
			{Location: "A", Start: 480, End: 540, Title: "X"},
			{Location: "B", Start: 480, End: 540, Title: "Y"},
		}},
		{Key: "20250612", Events: []model.Event{}},
		{Key: "20250613", Events: []model.Event{{Location: "C", Start: 600, End: 660, Title: "Z"}}},
	}

	out := XML(days)
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 14)
	assert.Equal(t, `<MAIN.DayOfWeek index="0">`, lines[1])
	assert.True(t, strings.HasPrefix(lines[3], `<tNBEvent index="0">`))
	assert.True(t, strings.HasPrefix(lines[4], `<tNBEvent index="1">`))
	// Day index follows position, not the date.
	assert.Equal(t, `<MAIN.DayOfWeek index="1">`, lines[6])
	assert.Equal(t, `<dDate>20250612</dDate>`, lines[7])
	assert.Equal(t, `</MAIN.DayOfWeek>`, lines[8])
	assert.Equal(t, `<MAIN.DayOfWeek index="2">`, lines[9])
	assert.True(t, strings.HasPrefix(lines[11], `<tNBEvent index="0">`))
}

func TestXMLNoDays(t *testing.T) {
	assert.Equal(t, "<dataentry>\n</dataentry>\n", XML(nil))
}

func TestXMLEscapesMarkup(t *testing.T) {
	days := []model.Day{{Key: "20250610", Events: []model.Event{
		{Location: "Labo R&D", Start: 480, End: 540, Title: "Travaux d'équipe <TP>"},
	}}}

	out := XML(days)
	assert.Contains(t, out, "<LOCATION>Labo R&amp;D</LOCATION>")
	assert.Contains(t, out, "<SUMMARY>Travaux d'équipe &lt;TP&gt;</SUMMARY>")
}

func TestEncodeLineEndings(t *testing.T) {
	text := "<dataentry>\n</dataentry>\n"

	assert.Equal(t, []byte(text), Encode(text, EOLLF))
	assert.Equal(t, []byte("<dataentry>\r\n</dataentry>\r\n"), Encode(text, EOLCRLF))
}

func TestParseEOL(t *testing.T) {
	eol, err := ParseEOL("CRLF")
	require.NoError(t, err)
	assert.Equal(t, EOLCRLF, eol)

	eol, err = ParseEOL("lf")
	require.NoError(t, err)
	assert.Equal(t, EOLLF, eol)

	_, err = ParseEOL("cr")
	assert.Error(t, err)
}
