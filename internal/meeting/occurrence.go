package meeting

import (
	"wstcal/internal/model"
)

// Failure names why a line did not produce an occurrence.
type Failure string

const (
	MissingDateRange Failure = "missing_date_range"
	MissingTimeRange Failure = "missing_time_range"
	MissingWeekday   Failure = "missing_weekday"
	EmptyTimeRange   Failure = "empty_time_range"
)

// Build parses line into an Occurrence. It returns false unless the line has a
// date range, a time range and at least one weekday, and the time range ends
// after it starts. Partial matches are never returned.
func Build(line string) (model.Occurrence, bool) {
	occ, reason := BuildWithReason(line)
	return occ, reason == ""
}

// BuildWithReason is Build that also reports which requirement failed.
func BuildWithReason(line string) (model.Occurrence, Failure) {
	tok := Extract(line)
	if tok.DateRange == nil {
		return model.Occurrence{}, MissingDateRange
	}
	if tok.TimeRange == nil {
		return model.Occurrence{}, MissingTimeRange
	}

	days := make([]model.Day, 0, len(tok.Weekdays))
	for _, w := range tok.Weekdays {
		d, ok := DayFromToken(w)
		if !ok {
			continue
		}
		days = append(days, d)
	}
	if len(days) == 0 {
		return model.Occurrence{}, MissingWeekday
	}

	start := tok.TimeRange.Start.Minutes()
	end := tok.TimeRange.End.Minutes()
	if end <= start {
		return model.Occurrence{}, EmptyTimeRange
	}

	return model.Occurrence{
		Days:        days,
		StartMinute: start,
		EndMinute:   end,
		RangeStart:  tok.DateRange.Start,
		RangeEnd:    tok.DateRange.End,
		TimeLabel:   tok.TimeRange.Label(),
	}, ""
}

// IsMeetingLine reports whether line carries a date range, a clock token and
// a weekday. Used to filter the lines of a meeting-patterns cell.
func IsMeetingLine(line string) bool {
	return dateRangeRe.MatchString(line) && clockRe.MatchString(line) && weekdayCIRe.MatchString(line)
}
