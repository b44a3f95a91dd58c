package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "wstcal/internal/log"
)

const (
	defaultMaxOccurrencesPerEvent = 5000
)

// AgendaConfig controls recurrence expansion.
type AgendaConfig struct {
	// DisplayLocation is the zone occurrences are converted to. Nil means UTC.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd bound occurrence starts, inclusive.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps expansion per event. Zero uses
	// defaultMaxOccurrencesPerEvent.
	MaxOccurrencesPerEvent int
}

// AgendaEntry is one concrete class meeting.
type AgendaEntry struct {
	UID      string    `json:"uid"`
	Summary  string    `json:"summary"`
	Location string    `json:"location,omitempty"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
}

// Agenda parses an exported calendar and expands it in one step.
func Agenda(body []byte, cfg AgendaConfig) ([]AgendaEntry, error) {
	events, err := ParseCalendar(body, cfg.DisplayLocation)
	if err != nil {
		return nil, err
	}
	return ExpandAgenda(events, cfg)
}

// ExpandAgenda expands events into concrete meetings whose start falls in
// [RangeStart, RangeEnd], sorted by start then summary.
func ExpandAgenda(events []ParsedEvent, cfg AgendaConfig) ([]AgendaEntry, error) {
	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return nil, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.UTC
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	out := make([]AgendaEntry, 0)
	for _, ev := range events {
		if ev.RawRRule == "" {
			if !ev.Start.Before(cfg.RangeStart) && !ev.Start.After(cfg.RangeEnd) {
				out = append(out, makeEntry(ev, ev.Start, ev.End, cfg.DisplayLocation))
			}
			continue
		}
		entries, hitCap := expandRecurring(ev, cfg)
		if hitCap {
			appLog.Error("expand: truncated occurrences for UID due to cap",
				errors.New("max occurrences reached"),
				"uid", ev.UID,
				"cap", cfg.MaxOccurrencesPerEvent,
			)
		}
		out = append(out, entries...)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].Summary < out[j].Summary
	})
	return out, nil
}

func expandRecurring(ev ParsedEvent, cfg AgendaConfig) ([]AgendaEntry, bool) {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)

	starts := set.Between(cfg.RangeStart.In(ev.Start.Location()), cfg.RangeEnd.In(ev.Start.Location()), true)
	hitCap := false
	if len(starts) > cfg.MaxOccurrencesPerEvent {
		starts = starts[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	dur := ev.End.Sub(ev.Start)
	out := make([]AgendaEntry, 0, len(starts))
	for _, s := range starts {
		out = append(out, makeEntry(ev, s, s.Add(dur), cfg.DisplayLocation))
	}
	return out, hitCap
}

func makeEntry(ev ParsedEvent, start, end time.Time, loc *time.Location) AgendaEntry {
	return AgendaEntry{
		UID:      ev.UID,
		Summary:  ev.Summary,
		Location: ev.Location,
		Start:    start.In(loc),
		End:      end.In(loc),
	}
}
