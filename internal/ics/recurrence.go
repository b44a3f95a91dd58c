package ics

import (
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"wstcal/internal/model"
)

// utcStamp is the iCalendar UTC DATE-TIME form used for RRULE UNTIL.
const utcStamp = "20060102T150405Z"

// FirstOccurrenceDate returns the first date in [start, start+6] whose weekday
// is in days. With no matching weekday it returns start unchanged.
func FirstOccurrenceDate(start civil.Date, days []model.Day) civil.Date {
	for offset := 0; offset < 7; offset++ {
		d := start.AddDays(offset)
		wd := model.DayOf(d.In(time.UTC).Weekday())
		for _, want := range days {
			if want == wd {
				return d
			}
		}
	}
	return start
}

// RecurrenceUntil is 23:59:59 on end in loc, as a UTC instant.
func RecurrenceUntil(end civil.Date, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(end.Year, end.Month, end.Day, 23, 59, 59, 0, loc).UTC()
}

// WeeklyRule formats FREQ=WEEKLY;BYDAY=..;UNTIL=.. with days in the given order.
func WeeklyRule(days []model.Day, until time.Time) string {
	codes := make([]string, 0, len(days))
	for _, d := range days {
		if c := d.Code(); c != "" {
			codes = append(codes, c)
		}
	}
	return "FREQ=WEEKLY;BYDAY=" + strings.Join(codes, ",") + ";UNTIL=" + until.UTC().Format(utcStamp)
}
