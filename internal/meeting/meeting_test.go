package meeting

import (
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wstcal/internal/model"
)

const sampleLine = "2024-09-03 - 2024-12-06 | Tue Thu | 9:30 a.m. - 11:00 a.m. | Library (LIB) | Floor: 1 | Room: 101"

func TestToMinutes(t *testing.T) {
	tests := []struct {
		h, m, mer string
		want      int
	}{
		{"12", "30", "p", 750},
		{"12", "00", "a", 0},
		{"11", "59", "p", 1439},
		{"1", "00", "a", 60},
		{"12", "15", "P", 735},
		{"9", "05", "A", 545},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ToMinutes(tt.h, tt.m, tt.mer), "%s:%s %s", tt.h, tt.m, tt.mer)
	}
}

func TestExtractTimeRangeMeridiemForms(t *testing.T) {
	for _, line := range []string{
		"Mon 9:00 am - 10:30 am",
		"Mon 9:00 a.m. - 10:30 a.m.",
		"Mon 9:00a-10:30a",
		"Mon 9:00 AM - 10:30 A.M.",
	} {
		r := ExtractTimeRange(line)
		require.NotNil(t, r, line)
		assert.Equal(t, 540, r.Start.Minutes(), line)
		assert.Equal(t, 630, r.End.Minutes(), line)
	}
	assert.Nil(t, ExtractTimeRange("Mon 9:00 - 10:30"))
}

func TestExtractDateRange(t *testing.T) {
	r := ExtractDateRange("foo 2024-09-03-2024-12-06 bar")
	require.NotNil(t, r)
	assert.Equal(t, civil.Date{Year: 2024, Month: 9, Day: 3}, r.Start)
	assert.Equal(t, civil.Date{Year: 2024, Month: 12, Day: 6}, r.End)

	assert.Nil(t, ExtractDateRange("2024-09-03 only"))
	assert.Nil(t, ExtractDateRange("2024-13-03 - 2024-14-06"))
}

func TestExtractWeekdaysDedupesInOrder(t *testing.T) {
	assert.Equal(t, []string{"Wed", "Mon"}, ExtractWeekdays("Wed Mon Wed | Monday-ish"))
	assert.Nil(t, ExtractWeekdays("no days here"))
	// Word boundaries: "Monday" is not the token "Mon".
	assert.Nil(t, ExtractWeekdays("Monday"))
}

func TestBuild(t *testing.T) {
	occ, ok := Build(sampleLine)
	require.True(t, ok)
	assert.Equal(t, []model.Day{model.Tuesday, model.Thursday}, occ.Days)
	assert.Equal(t, 570, occ.StartMinute)
	assert.Equal(t, 660, occ.EndMinute)
	assert.Equal(t, civil.Date{Year: 2024, Month: 9, Day: 3}, occ.RangeStart)
	assert.Equal(t, civil.Date{Year: 2024, Month: 12, Day: 6}, occ.RangeEnd)
	assert.Equal(t, "9:30 a.m. - 11:00 a.m.", occ.TimeLabel)
}

func TestBuildFailsClosed(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Failure
	}{
		{"no date", "Mon | 9:00 a.m. - 10:00 a.m.", MissingDateRange},
		{"no time", "2024-09-03 - 2024-12-06 | Mon", MissingTimeRange},
		{"no day", "2024-09-03 - 2024-12-06 | 9:00 a.m. - 10:00 a.m.", MissingWeekday},
		{"reversed", "2024-09-03 - 2024-12-06 | Mon | 10:00 a.m. - 9:00 a.m.", EmptyTimeRange},
		{"zero length", "2024-09-03 - 2024-12-06 | Mon | 10:00 a.m. - 10:00 a.m.", EmptyTimeRange},
		{"empty", "", MissingDateRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			occ, reason := BuildWithReason(tt.line)
			assert.Equal(t, tt.want, reason)
			assert.Equal(t, model.Occurrence{}, occ)
			_, ok := Build(tt.line)
			assert.False(t, ok)
		})
	}
}

func TestBuildInvariants(t *testing.T) {
	lines := []string{
		sampleLine,
		"2025-01-06 - 2025-04-08 | Mon Wed Fri | 12:00 p.m. - 12:50 p.m.",
		"Sat|2025-01-06-2025-04-08|11:00 am-1:00 pm|online",
		"2025-01-06 - 2025-04-08 Sun 12:00 a.m. - 11:59 p.m.",
	}
	for _, line := range lines {
		occ, ok := Build(line)
		require.True(t, ok, line)
		assert.Greater(t, occ.EndMinute, occ.StartMinute, line)
		assert.NotEmpty(t, occ.Days, line)
		for _, d := range occ.Days {
			assert.True(t, d.Valid(), line)
		}
	}
}

func TestIsMeetingLine(t *testing.T) {
	assert.True(t, IsMeetingLine(sampleLine))
	assert.True(t, IsMeetingLine("2024-09-03 - 2024-12-06 | tue | 9:30 AM - 11:00 AM"))
	assert.False(t, IsMeetingLine("Tue | 9:30 a.m. - 11:00 a.m."))
}

func TestFormatForPanel(t *testing.T) {
	f := FormatForPanel(sampleLine)
	assert.Equal(t, "Tue / Thu", f.Days)
	assert.Equal(t, "9:30 a.m. - 11:00 a.m.", f.Time)
	assert.Equal(t, "Library (LIB)\nFloor: 1 | Room: 101", f.Location)
}

func TestLocation(t *testing.T) {
	assert.Equal(t, "Library (LIB)", Location(sampleLine))
	assert.Equal(t, "Online Learning", Location("2024-09-03 - 2024-12-06 | Mon | 9:00 a.m. - 10:00 a.m. | Online Learning"))
	assert.Equal(t, "", Location("2024-09-03 - 2024-12-06 | Mon | 9:00 a.m. - 10:00 a.m."))
}

func TestStartDate(t *testing.T) {
	assert.Equal(t, "2024-09-03", StartDate(sampleLine))
	assert.Equal(t, "", StartDate("Tue 9:30"))
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "Tue / Thu | 9:30\nLIB room", NormalizeText("  Tue  /  Thu |\t9:30 \r\nLIB  room"))
	assert.Equal(t, "a b\nc d", NormalizeText("a   b\n  c \t d  "))
	assert.Equal(t, "only", NormalizeText("only\n   "))
}
