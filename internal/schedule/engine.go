package schedule

import (
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"wstcal/internal/grid"
	"wstcal/internal/meeting"
	"wstcal/internal/model"
)

// DefaultDays are the weekday columns of the rendered week.
var DefaultDays = []model.Day{model.Monday, model.Tuesday, model.Wednesday, model.Thursday, model.Friday}

// Engine turns course sessions into a render model. It holds only read-only
// configuration and is safe for concurrent use as long as callers do not
// mutate the course slice during Build.
type Engine struct {
	grid       *grid.SlotGrid
	days       []model.Day
	classifier Classifier
	observer   Observer
	now        func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithDays sets the day columns. Blocks on other days are not placed.
func WithDays(days []model.Day) Option {
	return func(e *Engine) {
		if len(days) > 0 {
			e.days = append([]model.Day(nil), days...)
		}
	}
}

func WithClassifier(c Classifier) Option {
	return func(e *Engine) { e.classifier = c }
}

func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// NewEngine builds an engine over g.
func NewEngine(g *grid.SlotGrid, opts ...Option) (*Engine, error) {
	if g == nil {
		return nil, errors.New("schedule: grid is nil")
	}
	e := &Engine{
		grid:       g,
		days:       DefaultDays,
		classifier: DefaultClassifier(),
		observer:   NopObserver{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Engine) Grid() *grid.SlotGrid { return e.grid }
func (e *Engine) Days() []model.Day    { return append([]model.Day(nil), e.days...) }
func (e *Engine) Classifier() Classifier { return e.classifier }

// DayColumn is the placed blocks and their overlap groups for one weekday.
type DayColumn struct {
	Day    model.Day             `json:"day"`
	Blocks []model.PlacedBlock   `json:"blocks"`
	Groups []model.ConflictGroup `json:"groups"`
}

// Model is the presentation-independent week view.
type Model struct {
	Semester  Semester    `json:"semester"`
	Days      []DayColumn `json:"days"`
	Conflicts [][]string  `json:"conflicts"`
}

// Column returns the column for day, if it is displayed.
func (m Model) Column(day model.Day) (DayColumn, bool) {
	for _, c := range m.Days {
		if c.Day == day {
			return c, true
		}
	}
	return DayColumn{}, false
}

// BlockCount is the total number of placed blocks.
func (m Model) BlockCount() int {
	n := 0
	for _, c := range m.Days {
		n += len(c.Blocks)
	}
	return n
}

// Warning is the conflict banner text, or "" when nothing conflicts.
func (m Model) Warning() string {
	return ConflictWarning(m.Conflicts)
}

// Build places every meeting line of courses that falls in semester onto the
// grid, groups overlaps per day and derives conflict summaries. Lines that do
// not parse, fall outside the semester or miss the grid are skipped.
func (e *Engine) Build(courses []model.CourseSession, semester Semester) Model {
	started := e.now()

	byDay := make(map[model.Day][]model.PlacedBlock, len(e.days))
	shown := make(map[model.Day]bool, len(e.days))
	for _, d := range e.days {
		shown[d] = true
	}

	seen := make(map[string]bool)
	nextID := 0

	for _, course := range courses {
		for _, line := range course.MeetingLines {
			occ, reason := meeting.BuildWithReason(line)
			if reason != "" {
				e.observer.ParseFailed(course, line, reason)
				continue
			}
			if e.classifier.Classify(occ.RangeStart.String()) != semester {
				continue
			}

			rowStart, rowSpan, ok := e.grid.Place(occ.StartMinute, occ.EndMinute)
			if !ok {
				e.observer.GridMiss(course, occ)
				continue
			}

			for _, day := range occ.Days {
				if !shown[day] {
					continue
				}
				key := dedupeKey(day, course, occ.TimeLabel, rowStart, rowSpan)
				if seen[key] {
					continue
				}
				seen[key] = true

				byDay[day] = append(byDay[day], model.PlacedBlock{
					ID:        nextID,
					OwnerID:   course.Identity(),
					Code:      course.Code,
					Title:     course.Title,
					Label:     course.Label(),
					Day:       day,
					RowStart:  rowStart,
					RowSpan:   rowSpan,
					TimeLabel: occ.TimeLabel,
				})
				nextID++
			}
		}
	}

	m := Model{Semester: semester, Days: make([]DayColumn, 0, len(e.days)), Conflicts: [][]string{}}
	reported := make(map[string]bool)

	for _, day := range e.days {
		blocks := byDay[day]
		sort.SliceStable(blocks, func(i, j int) bool {
			if blocks[i].RowStart != blocks[j].RowStart {
				return blocks[i].RowStart < blocks[j].RowStart
			}
			return blocks[i].RowEnd() < blocks[j].RowEnd()
		})
		if blocks == nil {
			blocks = []model.PlacedBlock{}
		}

		groups := grid.Group(e.grid, day, blocks)

		byID := make(map[int]model.PlacedBlock, len(blocks))
		for _, b := range blocks {
			byID[b.ID] = b
		}
		for _, owners := range grid.Summaries(groups, byID) {
			key := strings.Join(owners, "\x00")
			if reported[key] {
				continue
			}
			reported[key] = true
			m.Conflicts = append(m.Conflicts, owners)
			e.observer.ConflictDetected(day, owners)
		}

		m.Days = append(m.Days, DayColumn{Day: day, Blocks: blocks, Groups: groups})
	}

	e.observer.Rendered(semester, m.BlockCount(), e.now().Sub(started))
	return m
}

func dedupeKey(day model.Day, c model.CourseSession, timeLabel string, rowStart, rowSpan int) string {
	return strings.Join([]string{
		day.Abbrev(),
		c.Code,
		c.Title,
		timeLabel,
		strconv.Itoa(rowStart),
		strconv.Itoa(rowSpan),
	}, "|")
}

// ConflictWarning formats conflict sets as
// "The following classes are in conflict: [A, B] [C, D]".
func ConflictWarning(conflicts [][]string) string {
	if len(conflicts) == 0 {
		return ""
	}
	groups := make([]string, len(conflicts))
	for i, codes := range conflicts {
		groups[i] = "[" + strings.Join(codes, ", ") + "]"
	}
	return "The following classes are in conflict: " + strings.Join(groups, " ")
}
