package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"wstcal/internal/model"
)

const (
	// Key is the storage key (Redis key, default file stem) of the saved list.
	Key = "wdSavedSchedules"

	// MaxSchedules is the default cap on saved snapshots.
	MaxSchedules = 10

	untitled = "Untitled"
)

var (
	ErrLimitReached = errors.New("store: saved schedule limit reached")
	ErrNotFound     = errors.New("store: schedule not found")
)

// NewSnapshot copies courses into a new, uniquely identified snapshot.
func NewSnapshot(name string, courses []model.CourseSession, now time.Time) model.Snapshot {
	if name == "" {
		name = untitled
	}
	return model.Snapshot{
		ID:      uuid.NewString(),
		Name:    name,
		SavedAt: now.UTC(),
		Courses: cloneCourses(courses),
	}
}

// CanSaveMore reports whether list is below max.
func CanSaveMore(list []model.Snapshot, max int) bool {
	return len(list) < max
}

// Prepend puts s first, failing with ErrLimitReached when list is full.
func Prepend(list []model.Snapshot, s model.Snapshot, max int) ([]model.Snapshot, error) {
	if !CanSaveMore(list, max) {
		return list, ErrLimitReached
	}
	out := make([]model.Snapshot, 0, len(list)+1)
	out = append(out, s)
	return append(out, list...), nil
}

// Remove drops the snapshot with id.
func Remove(list []model.Snapshot, id string) ([]model.Snapshot, error) {
	for i, s := range list {
		if s.ID == id {
			out := make([]model.Snapshot, 0, len(list)-1)
			out = append(out, list[:i]...)
			return append(out, list[i+1:]...), nil
		}
	}
	return list, ErrNotFound
}

// Find returns the snapshot with id.
func Find(list []model.Snapshot, id string) (model.Snapshot, error) {
	for _, s := range list {
		if s.ID == id {
			return s, nil
		}
	}
	return model.Snapshot{}, ErrNotFound
}

// Meta is the one-line card summary, e.g. "3 courses · Saved 2 hours ago".
func Meta(s model.Snapshot, now time.Time) string {
	return fmt.Sprintf("%d courses · Saved %s", len(s.Courses), humanize.RelTime(s.SavedAt, now, "ago", "from now"))
}

// storedSnapshot is the lenient on-disk form: courses may be missing and
// savedAt may be blank or malformed.
type storedSnapshot struct {
	ID      string                `json:"id"`
	Name    string                `json:"name"`
	SavedAt string                `json:"savedAt"`
	Courses []model.CourseSession `json:"courses"`
}

// Decode parses a stored list and sanitizes it.
func Decode(data []byte, now time.Time) ([]model.Snapshot, error) {
	if len(data) == 0 {
		return []model.Snapshot{}, nil
	}
	var raw []storedSnapshot
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("store: decode schedules: %w", err)
	}
	return sanitize(raw, now), nil
}

// Encode sanitizes list and serializes it.
func Encode(list []model.Snapshot, now time.Time) ([]byte, error) {
	return json.Marshal(Sanitize(list, now))
}

// Sanitize drops entries without a course list and fills a blank name or
// save time.
func Sanitize(list []model.Snapshot, now time.Time) []model.Snapshot {
	out := make([]model.Snapshot, 0, len(list))
	for _, s := range list {
		if s.Courses == nil {
			continue
		}
		if s.Name == "" {
			s.Name = untitled
		}
		if s.SavedAt.IsZero() {
			s.SavedAt = now.UTC()
		}
		out = append(out, s)
	}
	return out
}

func sanitize(raw []storedSnapshot, now time.Time) []model.Snapshot {
	list := make([]model.Snapshot, 0, len(raw))
	for _, r := range raw {
		s := model.Snapshot{ID: r.ID, Name: r.Name, Courses: r.Courses}
		if t, err := time.Parse(time.RFC3339Nano, r.SavedAt); err == nil {
			s.SavedAt = t
		}
		list = append(list, s)
	}
	return Sanitize(list, now)
}

func cloneCourses(in []model.CourseSession) []model.CourseSession {
	out := make([]model.CourseSession, len(in))
	for i, c := range in {
		c.MeetingLines = append([]string(nil), c.MeetingLines...)
		out[i] = c
	}
	return out
}
