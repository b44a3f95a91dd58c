package schedule

import (
	"time"

	appLog "wstcal/internal/log"
	"wstcal/internal/meeting"
	"wstcal/internal/model"
)

// Observer receives the engine's silent filtering decisions. None of these
// events are errors; they explain why a session is missing from the grid.
type Observer interface {
	// ParseFailed: a meeting line lacked a required fragment or had an empty
	// time range.
	ParseFailed(course model.CourseSession, line string, reason meeting.Failure)
	// GridMiss: a valid occurrence could not be placed in the display window.
	GridMiss(course model.CourseSession, occ model.Occurrence)
	// ConflictDetected: a distinct set of courses overlaps on day.
	ConflictDetected(day model.Day, owners []string)
	// Rendered is called once per Build.
	Rendered(semester Semester, blocks int, elapsed time.Duration)
}

// NopObserver ignores everything.
type NopObserver struct{}

func (NopObserver) ParseFailed(model.CourseSession, string, meeting.Failure) {}
func (NopObserver) GridMiss(model.CourseSession, model.Occurrence)           {}
func (NopObserver) ConflictDetected(model.Day, []string)                     {}
func (NopObserver) Rendered(Semester, int, time.Duration)                    {}

// LogObserver writes events to the application logger.
type LogObserver struct{}

func (LogObserver) ParseFailed(course model.CourseSession, line string, reason meeting.Failure) {
	appLog.Debug("meeting line skipped", "code", course.Identity(), "reason", string(reason), "line", line)
}

func (LogObserver) GridMiss(course model.CourseSession, occ model.Occurrence) {
	appLog.Debug("occurrence outside grid",
		"code", course.Identity(),
		"start_minute", occ.StartMinute,
		"end_minute", occ.EndMinute,
	)
}

func (LogObserver) ConflictDetected(day model.Day, owners []string) {
	appLog.Info("schedule conflict", "day", day.Abbrev(), "courses", owners)
}

func (LogObserver) Rendered(semester Semester, blocks int, elapsed time.Duration) {
	appLog.Debug("schedule rendered", "semester", string(semester), "blocks", blocks, "elapsed", elapsed)
}

// Observers fans events out to several observers.
type Observers []Observer

func (obs Observers) ParseFailed(course model.CourseSession, line string, reason meeting.Failure) {
	for _, o := range obs {
		o.ParseFailed(course, line, reason)
	}
}

func (obs Observers) GridMiss(course model.CourseSession, occ model.Occurrence) {
	for _, o := range obs {
		o.GridMiss(course, occ)
	}
}

func (obs Observers) ConflictDetected(day model.Day, owners []string) {
	for _, o := range obs {
		o.ConflictDetected(day, owners)
	}
}

func (obs Observers) Rendered(semester Semester, blocks int, elapsed time.Duration) {
	for _, o := range obs {
		o.Rendered(semester, blocks, elapsed)
	}
}
