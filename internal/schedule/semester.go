package schedule

import (
	"strings"

	"wstcal/internal/meeting"
	"wstcal/internal/model"
)

// Semester is an academic-term label. The zero value means "unclassified".
type Semester string

const (
	First  Semester = "first"
	Second Semester = "second"
)

// DefaultSemesterMonths buckets start months of a two-term year.
var DefaultSemesterMonths = map[Semester][]string{
	First:  {"08", "09"},
	Second: {"12", "01"},
}

// Classifier maps the month of an ISO start date to a semester. It is a
// coarse heuristic: any month outside the configured lists (a summer term,
// say) is unclassified and the session appears in no semester view.
type Classifier struct {
	byMonth map[string]Semester
}

// NewClassifier builds a classifier from semester -> two-digit months.
func NewClassifier(months map[Semester][]string) Classifier {
	c := Classifier{byMonth: make(map[string]Semester)}
	for sem, ms := range months {
		for _, m := range ms {
			c.byMonth[strings.TrimSpace(m)] = sem
		}
	}
	return c
}

// DefaultClassifier uses DefaultSemesterMonths.
func DefaultClassifier() Classifier {
	return NewClassifier(DefaultSemesterMonths)
}

// Classify returns the semester of startDateISO ("YYYY-MM-DD"), or "".
func (c Classifier) Classify(startDateISO string) Semester {
	parts := strings.Split(startDateISO, "-")
	if len(parts) < 2 {
		return ""
	}
	return c.byMonth[parts[1]]
}

// ParseSemester accepts "first" or "second" in any case.
func ParseSemester(s string) (Semester, bool) {
	switch Semester(strings.ToLower(strings.TrimSpace(s))) {
	case First:
		return First, true
	case Second:
		return Second, true
	}
	return "", false
}

// FilterSemester keeps, per course, only the meeting lines whose date range
// starts in semester. Courses left with no lines are dropped. An empty
// semester returns a copy of courses unchanged.
func (c Classifier) FilterSemester(courses []model.CourseSession, semester Semester) []model.CourseSession {
	if semester == "" {
		return cloneCourses(courses)
	}
	out := make([]model.CourseSession, 0, len(courses))
	for _, course := range courses {
		var lines []string
		for _, line := range course.MeetingLines {
			dr := meeting.ExtractDateRange(line)
			if dr == nil || c.Classify(dr.Start.String()) != semester {
				continue
			}
			lines = append(lines, line)
		}
		if len(lines) == 0 {
			continue
		}
		course.MeetingLines = lines
		out = append(out, course)
	}
	return out
}
