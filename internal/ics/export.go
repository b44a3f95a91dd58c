package ics

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	_ "time/tzdata"

	"cloud.google.com/go/civil"
	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"
	"github.com/gosimple/slug"

	appLog "wstcal/internal/log"
	"wstcal/internal/meeting"
	"wstcal/internal/model"
)

const (
	// DefaultTZID is the civil zone class times are expressed in.
	DefaultTZID = "America/Vancouver"

	ProductID = "-//Workday Extension//Schedule Export//EN"

	localStamp = "20060102T150405"
)

// Event is one weekly-recurring VEVENT. Start and End are civil times in the
// exporter's zone; RRule carries a UTC UNTIL.
type Event struct {
	UID         string         `json:"uid"`
	Summary     string         `json:"summary"`
	Description string         `json:"description,omitempty"`
	Location    string         `json:"location,omitempty"`
	Start       civil.DateTime `json:"dtstart"`
	End         civil.DateTime `json:"dtend"`
	RRule       string         `json:"rrule"`
}

// Exporter turns course sessions into an iCalendar document.
type Exporter struct {
	tzid   string
	loc    *time.Location
	newUID func(model.CourseSession) string
	now    func() time.Time
}

type ExportOption func(*Exporter)

// WithUIDFunc replaces the random UID generator.
func WithUIDFunc(fn func(model.CourseSession) string) ExportOption {
	return func(e *Exporter) {
		if fn != nil {
			e.newUID = fn
		}
	}
}

// WithClock sets the DTSTAMP source.
func WithClock(now func() time.Time) ExportOption {
	return func(e *Exporter) {
		if now != nil {
			e.now = now
		}
	}
}

// NewExporter loads tzid (DefaultTZID when empty).
func NewExporter(tzid string, opts ...ExportOption) (*Exporter, error) {
	if tzid == "" {
		tzid = DefaultTZID
	}
	loc, err := time.LoadLocation(tzid)
	if err != nil {
		return nil, fmt.Errorf("ics: load timezone %q: %w", tzid, err)
	}
	e := &Exporter{
		tzid:   tzid,
		loc:    loc,
		newUID: RandomUID,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Exporter) TZID() string             { return e.tzid }
func (e *Exporter) Location() *time.Location { return e.loc }

// RandomUID is "<slug of code or 'course'>-<uuid>".
func RandomUID(c model.CourseSession) string {
	base := c.Code
	if base == "" {
		base = "course"
	}
	return slug.Make(base) + "-" + uuid.NewString()
}

// BuildEvents makes one event per parsable meeting line. Unparsable lines are
// skipped.
func (e *Exporter) BuildEvents(courses []model.CourseSession) []Event {
	events := make([]Event, 0)
	for _, c := range courses {
		for _, line := range c.MeetingLines {
			ev, ok := e.buildEvent(c, line)
			if !ok {
				appLog.Debug("ics export skipped line", "code", c.Identity(), "line", line)
				continue
			}
			events = append(events, ev)
		}
	}
	return events
}

func (e *Exporter) buildEvent(c model.CourseSession, line string) (Event, bool) {
	occ, ok := meeting.Build(line)
	if !ok {
		return Event{}, false
	}

	first := FirstOccurrenceDate(occ.RangeStart, occ.Days)
	until := RecurrenceUntil(occ.RangeEnd, e.loc)

	return Event{
		UID:         e.newUID(c),
		Summary:     summaryOf(c),
		Description: descriptionOf(c),
		Location:    meeting.Location(line),
		Start:       civil.DateTime{Date: first, Time: clockOf(occ.StartMinute)},
		End:         civil.DateTime{Date: first, Time: clockOf(occ.EndMinute)},
		RRule:       WeeklyRule(occ.Days, until),
	}, true
}

func clockOf(minute int) civil.Time {
	return civil.Time{Hour: minute / 60, Minute: minute % 60}
}

func summaryOf(c model.CourseSession) string {
	parts := make([]string, 0, 2)
	if c.Code != "" {
		parts = append(parts, c.Code)
	}
	if c.Title != "" {
		parts = append(parts, c.Title)
	}
	if len(parts) == 0 {
		return "Scheduled Course"
	}
	return strings.Join(parts, " - ")
}

func descriptionOf(c model.CourseSession) string {
	var lines []string
	add := func(label, v string) {
		if v != "" {
			lines = append(lines, label+": "+v)
		}
	}
	add("Title", c.Title)
	add("Code", c.Code)
	add("Section", c.SectionNumber)
	add("Instructor", c.Instructor)
	add("Format", c.InstructionalFormat)
	add("Meeting", c.Meeting)
	return strings.Join(lines, "\n")
}

// Serialize renders events as a VCALENDAR. DTSTART/DTEND carry the TZID
// parameter and are written as local wall time. Lines end in CRLF.
func (e *Exporter) Serialize(events []Event) string {
	cal := ical.NewCalendar()
	cal.SetProductId(ProductID)
	cal.SetVersion("2.0")
	cal.SetCalscale("GREGORIAN")
	cal.SetXWRTimezone(e.tzid)

	stamp := e.now()
	tz := &ical.KeyValues{Key: string(ical.ParameterTzid), Value: []string{e.tzid}}

	for _, ev := range events {
		vev := cal.AddEvent(ev.UID)
		vev.SetDtStampTime(stamp)
		vev.SetSummary(ev.Summary)
		if ev.Description != "" {
			vev.SetDescription(ev.Description)
		}
		if ev.Location != "" {
			vev.SetLocation(ev.Location)
		}
		vev.SetProperty(ical.ComponentPropertyDtStart, formatLocal(ev.Start), tz)
		vev.SetProperty(ical.ComponentPropertyDtEnd, formatLocal(ev.End), tz)
		vev.AddProperty(ical.ComponentPropertyRrule, ev.RRule)
	}

	return cal.Serialize(ical.WithNewLineWindows)
}

// Export is BuildEvents followed by Serialize.
func (e *Exporter) Export(courses []model.CourseSession) ([]byte, int) {
	events := e.BuildEvents(courses)
	appLog.Info("ics export built", "events", len(events), "tzid", e.tzid)
	return []byte(e.Serialize(events)), len(events)
}

func formatLocal(dt civil.DateTime) string {
	return time.Date(dt.Date.Year, dt.Date.Month, dt.Date.Day, dt.Time.Hour, dt.Time.Minute, dt.Time.Second, 0, time.UTC).Format(localStamp)
}

var unsafeFilenameRe = regexp.MustCompile(`[\\/:*?"<>|]`)

// ExportFilename is "[WST] <name>.ics" with path-hostile characters replaced,
// or "[WST] Schedule.ics" when name is empty.
func ExportFilename(name string) string {
	if name == "" {
		return "[WST] Schedule.ics"
	}
	return "[WST] " + unsafeFilenameRe.ReplaceAllString(name, "-") + ".ics"
}
