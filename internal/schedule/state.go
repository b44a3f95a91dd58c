package schedule

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"wstcal/internal/model"
)

// Sort keys accepted by State.WithSort.
const (
	SortCode       = "code"
	SortTitle      = "title"
	SortSection    = "section_number"
	SortInstructor = "instructor"
	SortMeeting    = "meeting"
	SortFormat     = "instructional_format"
	SortStartDate  = "start_date"
)

var sortFields = map[string]func(model.CourseSession) string{
	SortCode:       func(c model.CourseSession) string { return c.Code },
	SortTitle:      func(c model.CourseSession) string { return c.Title },
	SortSection:    func(c model.CourseSession) string { return c.SectionNumber },
	SortInstructor: func(c model.CourseSession) string { return c.Instructor },
	SortMeeting:    func(c model.CourseSession) string { return c.Meeting },
	SortFormat:     func(c model.CourseSession) string { return c.InstructionalFormat },
	SortStartDate:  func(c model.CourseSession) string { return c.StartDate },
}

// searchFields are matched by the free-text filter.
var searchFields = []string{SortCode, SortTitle, SortSection, SortInstructor, SortMeeting, SortFormat}

// SortState is the active column and direction (1 ascending, -1 descending).
type SortState struct {
	Key string `json:"key"`
	Dir int    `json:"dir"`
}

// State is one immutable view context: the course list plus the search
// query, sort, semester tab and loaded schedule name. Every With* method
// returns a new State and leaves the receiver untouched.
type State struct {
	courses      []model.CourseSession
	query        string
	sort         SortState
	semester     Semester
	scheduleName string
}

// NewState starts on the first semester, sorted by code ascending.
func NewState(courses []model.CourseSession) State {
	return State{
		courses:  cloneCourses(courses),
		sort:     SortState{Key: SortCode, Dir: 1},
		semester: First,
	}
}

func (s State) WithCourses(courses []model.CourseSession) State {
	s.courses = cloneCourses(courses)
	return s
}

func (s State) WithQuery(q string) State {
	s.query = q
	return s
}

// WithSort selects a sort column. Selecting the current column flips the
// direction; a new column sorts ascending. Unknown keys are ignored.
func (s State) WithSort(key string) State {
	if _, ok := sortFields[key]; !ok {
		return s
	}
	dir := 1
	if s.sort.Key == key {
		dir = -s.sort.Dir
	}
	s.sort = SortState{Key: key, Dir: dir}
	return s
}

func (s State) WithSemester(sem Semester) State {
	s.semester = sem
	return s
}

func (s State) WithScheduleName(name string) State {
	s.scheduleName = name
	return s
}

func (s State) Courses() []model.CourseSession { return cloneCourses(s.courses) }
func (s State) Query() string                  { return s.query }
func (s State) Sort() SortState                { return s.sort }
func (s State) Semester() Semester             { return s.semester }
func (s State) ScheduleName() string           { return s.scheduleName }

// Filtered applies the query and sort to a copy of the course list.
func (s State) Filtered() []model.CourseSession {
	out := FilterCourses(s.courses, s.query)
	SortCourses(out, s.sort)
	return out
}

// Render builds the week model for the filtered courses and active semester.
func (s State) Render(e *Engine) Model {
	return e.Build(s.Filtered(), s.semester)
}

// FilterCourses returns the courses whose searchable fields contain query,
// case-insensitively. An empty query keeps everything.
func FilterCourses(courses []model.CourseSession, query string) []model.CourseSession {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return cloneCourses(courses)
	}
	out := make([]model.CourseSession, 0, len(courses))
	for _, c := range courses {
		for _, k := range searchFields {
			if strings.Contains(strings.ToLower(sortFields[k](c)), q) {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// SortCourses sorts in place with numeric-aware, case-insensitive collation so
// "CPSC 110" sorts before "CPSC 1000".
func SortCourses(courses []model.CourseSession, st SortState) {
	field, ok := sortFields[st.Key]
	if !ok {
		return
	}
	dir := st.Dir
	if dir == 0 {
		dir = 1
	}
	col := collate.New(language.Und, collate.Numeric, collate.Loose)
	sort.SliceStable(courses, func(i, j int) bool {
		return dir*col.CompareString(field(courses[i]), field(courses[j])) < 0
	})
}

func cloneCourses(in []model.CourseSession) []model.CourseSession {
	if in == nil {
		return nil
	}
	out := make([]model.CourseSession, len(in))
	for i, c := range in {
		c.MeetingLines = append([]string(nil), c.MeetingLines...)
		out[i] = c
	}
	return out
}
