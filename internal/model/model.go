package model

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
)

// Day is a weekday with Monday-start indexing (Monday=0 ... Sunday=6).
type Day int

const (
	Monday Day = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var dayAbbrevs = [...]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// dayCodes are the two-letter iCalendar BYDAY codes.
var dayCodes = [...]string{"MO", "TU", "WE", "TH", "FR", "SA", "SU"}

// AllDays lists the week in Monday-start order.
var AllDays = []Day{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

func (d Day) Valid() bool { return d >= Monday && d <= Sunday }

// Abbrev returns the three-letter display abbreviation ("Mon").
func (d Day) Abbrev() string {
	if !d.Valid() {
		return ""
	}
	return dayAbbrevs[d]
}

// Code returns the two-letter iCalendar code ("MO").
func (d Day) Code() string {
	if !d.Valid() {
		return ""
	}
	return dayCodes[d]
}

func (d Day) String() string { return d.Abbrev() }

func (d Day) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("model: invalid day %d", int(d))
	}
	return []byte(d.Abbrev()), nil
}

func (d *Day) UnmarshalText(b []byte) error {
	v, ok := DayFromAbbrev(string(b))
	if !ok {
		return fmt.Errorf("model: unknown day %q", string(b))
	}
	*d = v
	return nil
}

// DayFromAbbrev maps "Mon".."Sun" to a Day.
func DayFromAbbrev(s string) (Day, bool) {
	for i, a := range dayAbbrevs {
		if a == s {
			return Day(i), true
		}
	}
	return 0, false
}

// DayFromCode maps "MO".."SU" to a Day.
func DayFromCode(s string) (Day, bool) {
	for i, c := range dayCodes {
		if c == s {
			return Day(i), true
		}
	}
	return 0, false
}

// DayOf converts a time.Weekday (Sunday=0) to Monday-start indexing.
func DayOf(w time.Weekday) Day {
	if w == time.Sunday {
		return Sunday
	}
	return Day(w - 1)
}

// CourseSession is one extracted table row: a course section with its raw
// meeting lines.
type CourseSession struct {
	Code                string   `json:"code" yaml:"code"`
	Title               string   `json:"title" yaml:"title"`
	SectionNumber       string   `json:"section_number" yaml:"section_number"`
	Instructor          string   `json:"instructor" yaml:"instructor"`
	Meeting             string   `json:"meeting" yaml:"meeting"`
	InstructionalFormat string   `json:"instructional_format" yaml:"instructional_format"`
	StartDate           string   `json:"start_date,omitempty" yaml:"start_date,omitempty"`
	MeetingLines        []string `json:"meeting_lines" yaml:"meeting_lines"`
	IsLab               bool     `json:"is_lab" yaml:"is_lab"`
	IsSeminar           bool     `json:"is_seminar" yaml:"is_seminar"`
	IsDiscussion        bool     `json:"is_discussion" yaml:"is_discussion"`
}

// Identity is the identifier used for conflict reporting: the course code,
// or the title when no code was extracted.
func (c CourseSession) Identity() string {
	if c.Code != "" {
		return c.Code
	}
	return c.Title
}

// Label is the badge shown next to non-lecture sessions.
func (c CourseSession) Label() string {
	switch {
	case c.IsLab:
		return "[Laboratory]"
	case c.IsSeminar:
		return "[Seminar]"
	case c.IsDiscussion:
		return "[Discussion]"
	}
	return ""
}

// Occurrence is a weekly-recurring block parsed from one meeting line.
type Occurrence struct {
	// Days holds distinct weekdays in order of first appearance.
	Days []Day

	// StartMinute / EndMinute are minutes since midnight; EndMinute > StartMinute.
	StartMinute int
	EndMinute   int

	RangeStart civil.Date
	RangeEnd   civil.Date

	// TimeLabel is the matched time range text, e.g. "9:00 a.m. - 10:30 a.m.".
	TimeLabel string
}

// HasDay reports whether d is one of the occurrence weekdays.
func (o Occurrence) HasDay(d Day) bool {
	for _, x := range o.Days {
		if x == d {
			return true
		}
	}
	return false
}

// PlacedBlock is an occurrence snapped onto the slot grid for one day.
type PlacedBlock struct {
	ID        int    `json:"id"`
	OwnerID   string `json:"owner_id"`
	Code      string `json:"code"`
	Title     string `json:"title"`
	Label     string `json:"label,omitempty"`
	Day       Day    `json:"day"`
	RowStart  int    `json:"row_start"`
	RowSpan   int    `json:"row_span"`
	TimeLabel string `json:"time_label"`
}

// RowEnd is the exclusive end row.
func (b PlacedBlock) RowEnd() int { return b.RowStart + b.RowSpan }

// DisplayTitle is the block heading: code (or title) plus the label badge.
func (b PlacedBlock) DisplayTitle() string {
	t := b.Code
	if t == "" {
		t = b.Title
	}
	if b.Label != "" {
		return t + " " + b.Label
	}
	return t
}

// ConflictGroup is a maximal run of grid rows sharing one active block set.
type ConflictGroup struct {
	Day        Day   `json:"day"`
	Start      int   `json:"start"`
	End        int   `json:"end"`
	Members    []int `json:"members"`
	IsConflict bool  `json:"is_conflict"`
}

// Snapshot is a named, saved copy of a course list.
type Snapshot struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	SavedAt time.Time       `json:"savedAt"`
	Courses []CourseSession `json:"courses"`
}
