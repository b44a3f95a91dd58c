package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "wstcal/internal/log"
)

// ParsedEvent is a VEVENT read back from an exported calendar. Recurrence
// expansion operates on this type.
type ParsedEvent struct {
	UID         string
	Summary     string
	Description string
	Location    string

	Start time.Time
	End   time.Time

	RawRRule string
}

// ParseCalendar parses an iCalendar payload. DTSTART/DTEND honor their TZID
// parameter; floating times fall back to loc. Events without a UID or start
// are logged and skipped.
func ParseCalendar(body []byte, loc *time.Location) ([]ParsedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	if loc == nil {
		loc = time.UTC
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err)
		return nil, err
	}

	events := make([]ParsedEvent, 0)
	for _, ve := range cal.Events() {
		ev, perr := parseVEvent(ve, loc)
		if perr != nil {
			appLog.Error("ics vevent parse failed", perr)
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parse completed", "event_count", len(events))
	return events, nil
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (ParsedEvent, error) {
	var out ParsedEvent

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}

	start, err := propTime(ve.GetProperty(ical.ComponentPropertyDtStart), loc)
	if err != nil {
		return out, err
	}
	out.Start = start

	out.End = start
	if p := ve.GetProperty(ical.ComponentPropertyDtEnd); p != nil {
		if end, err := propTime(p, loc); err == nil {
			out.End = end
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RawRRule = p.Value
	}

	return out, nil
}

// propTime reads a DATE-TIME property, resolving its TZID parameter.
func propTime(p *ical.IANAProperty, fallback *time.Location) (time.Time, error) {
	if p == nil {
		return time.Time{}, errors.New("missing date-time property")
	}
	loc := fallback
	if tzs, ok := p.ICalParameters[string(ical.ParameterTzid)]; ok && len(tzs) > 0 {
		l, err := time.LoadLocation(tzs[0])
		if err != nil {
			return time.Time{}, err
		}
		loc = l
	}
	return parseICSTime(p.Value, loc)
}

// parseICSTime parses the UTC, local and date-only iCalendar forms.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}
	if strings.HasSuffix(v, "Z") {
		return time.Parse(utcStamp, v)
	}
	if strings.Contains(v, "T") {
		return time.ParseInLocation(localStamp, v, loc)
	}
	return time.ParseInLocation("20060102", v, loc)
}
