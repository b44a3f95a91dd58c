// Package meeting parses free-text meeting lines scraped from a course table
// into structured weekly occurrences.
//
// A meeting line looks like
//
//	2024-09-03 - 2024-12-06 | Tue Thu | 9:30 a.m. - 11:00 a.m. | Library (LIB) | Floor: 1 | Room: 101
//
// but separators, spacing and the order of fragments vary. Each fragment is
// matched by its own pattern and every extractor fails closed.
package meeting

import (
	"regexp"

	"cloud.google.com/go/civil"

	"wstcal/internal/model"
)

var (
	dateRangeRe = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})\s*-\s*(\d{4}-\d{2}-\d{2})`)
	timeRangeRe = regexp.MustCompile(`(?i)((\d{1,2}):(\d{2})\s*([ap])\.?(?:m\.?)?)\s*-\s*((\d{1,2}):(\d{2})\s*([ap])\.?(?:m\.?)?)`)
	weekdayRe   = regexp.MustCompile(`\b(Mon|Tue|Wed|Thu|Fri|Sat|Sun)\b`)
	isoDateRe   = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)
)

// DateRange is the civil date range of a meeting line.
type DateRange struct {
	Start civil.Date
	End   civil.Date
}

// Clock is one 12-hour clock token split into its parts.
type Clock struct {
	Hour     string
	Minute   string
	Meridiem string
	Text     string
}

// Minutes converts the token to minutes since midnight.
func (c Clock) Minutes() int {
	return ToMinutes(c.Hour, c.Minute, c.Meridiem)
}

// TimeRange is a start/end clock pair.
type TimeRange struct {
	Start Clock
	End   Clock
}

// Label is the display form "start - end" using the matched token text.
func (r TimeRange) Label() string {
	return r.Start.Text + " - " + r.End.Text
}

// Tokens is everything the extractor found in one line. Absent fragments are
// nil / empty.
type Tokens struct {
	DateRange *DateRange
	TimeRange *TimeRange
	// Weekdays are distinct three-letter tokens in order of first appearance.
	Weekdays []string
}

// Extract pulls the date range, time range and weekday tokens out of line.
func Extract(line string) Tokens {
	return Tokens{
		DateRange: ExtractDateRange(line),
		TimeRange: ExtractTimeRange(line),
		Weekdays:  ExtractWeekdays(line),
	}
}

// ExtractDateRange returns the first "YYYY-MM-DD - YYYY-MM-DD" range, or nil
// when none is present or either side is not a real calendar date.
func ExtractDateRange(line string) *DateRange {
	m := dateRangeRe.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	start, err := civil.ParseDate(m[1])
	if err != nil {
		return nil
	}
	end, err := civil.ParseDate(m[2])
	if err != nil {
		return nil
	}
	return &DateRange{Start: start, End: end}
}

// ExtractTimeRange returns the first 12-hour "H:MM am - H:MM pm" range. The
// meridiem accepts "a", "am", "a.m." in any case.
func ExtractTimeRange(line string) *TimeRange {
	m := timeRangeRe.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	return &TimeRange{
		Start: Clock{Text: m[1], Hour: m[2], Minute: m[3], Meridiem: m[4]},
		End:   Clock{Text: m[5], Hour: m[6], Minute: m[7], Meridiem: m[8]},
	}
}

// ExtractWeekdays returns all distinct weekday abbreviations in order of
// first appearance.
func ExtractWeekdays(line string) []string {
	all := weekdayRe.FindAllString(line, -1)
	if len(all) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(all))
	out := make([]string, 0, len(all))
	for _, d := range all {
		if seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}

// StartDate returns the first ISO date found in line, or "".
func StartDate(line string) string {
	m := isoDateRe.FindStringSubmatch(line)
	if m == nil {
		return ""
	}
	return m[1]
}

// DayFromToken maps a three-letter token to a Day via the fixed day table.
func DayFromToken(tok string) (model.Day, bool) {
	return model.DayFromAbbrev(tok)
}
