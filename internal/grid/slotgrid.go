// Package grid discretizes the display day into fixed-width slots and groups
// overlapping blocks placed on it.
package grid

import (
	"errors"
	"fmt"
)

// Default display window: 8:00 to 21:00 in half-hour rows.
const (
	DefaultStartHour   = 8
	DefaultEndHour     = 21
	DefaultSlotMinutes = 30
)

var ErrInvalidGrid = errors.New("grid: invalid configuration")

// SlotGrid is the ordered list of minute-of-day row boundaries from
// StartHour*60 to EndHour*60 inclusive. It is read-only after New.
type SlotGrid struct {
	startHour   int
	endHour     int
	slotMinutes int
	bounds      []int
}

// New builds a grid. The slot width must evenly divide both the start offset
// and the window length so every snapped value is a boundary.
func New(startHour, endHour, slotMinutes int) (*SlotGrid, error) {
	if startHour < 0 || endHour > 24 || endHour <= startHour {
		return nil, fmt.Errorf("%w: hours %d..%d", ErrInvalidGrid, startHour, endHour)
	}
	if slotMinutes <= 0 {
		return nil, fmt.Errorf("%w: slot minutes %d", ErrInvalidGrid, slotMinutes)
	}
	first, last := startHour*60, endHour*60
	if first%slotMinutes != 0 || (last-first)%slotMinutes != 0 {
		return nil, fmt.Errorf("%w: %d-minute slots do not tile %02d:00-%02d:00", ErrInvalidGrid, slotMinutes, startHour, endHour)
	}

	bounds := make([]int, 0, (last-first)/slotMinutes+1)
	for m := first; m <= last; m += slotMinutes {
		bounds = append(bounds, m)
	}

	return &SlotGrid{
		startHour:   startHour,
		endHour:     endHour,
		slotMinutes: slotMinutes,
		bounds:      bounds,
	}, nil
}

// Default returns the 8:00-21:00 half-hour grid.
func Default() *SlotGrid {
	g, err := New(DefaultStartHour, DefaultEndHour, DefaultSlotMinutes)
	if err != nil {
		panic(err)
	}
	return g
}

func (g *SlotGrid) StartHour() int   { return g.startHour }
func (g *SlotGrid) EndHour() int     { return g.endHour }
func (g *SlotGrid) SlotMinutes() int { return g.slotMinutes }

// Len is the number of boundaries; there are Len()-1 rows between them.
func (g *SlotGrid) Len() int { return len(g.bounds) }

// Rows is the number of slot rows.
func (g *SlotGrid) Rows() int { return len(g.bounds) - 1 }

// Boundaries returns a copy of the boundary sequence.
func (g *SlotGrid) Boundaries() []int {
	out := make([]int, len(g.bounds))
	copy(out, g.bounds)
	return out
}

// At returns the minute value of boundary i.
func (g *SlotGrid) At(i int) int { return g.bounds[i] }

// Clamp bounds minute to [StartHour*60, EndHour*60].
func (g *SlotGrid) Clamp(minute int) int {
	lo, hi := g.startHour*60, g.endHour*60
	if minute < lo {
		return lo
	}
	if minute > hi {
		return hi
	}
	return minute
}

// SnapDown returns the nearest multiple of the slot width <= minute.
func (g *SlotGrid) SnapDown(minute int) int {
	return floorDiv(minute, g.slotMinutes) * g.slotMinutes
}

// SnapUp returns the nearest multiple of the slot width >= minute.
func (g *SlotGrid) SnapUp(minute int) int {
	return -floorDiv(-minute, g.slotMinutes) * g.slotMinutes
}

// IndexOf returns the position of minute in the boundary sequence, or -1 if
// minute is not an exact boundary.
func (g *SlotGrid) IndexOf(minute int) int {
	lo := g.startHour * 60
	if minute < lo || minute > g.endHour*60 || (minute-lo)%g.slotMinutes != 0 {
		return -1
	}
	return (minute - lo) / g.slotMinutes
}

// Place snaps a [start, end) minute range onto the grid. It returns false when
// either edge misses the boundary list or the span is not positive after
// clamping, e.g. for a range entirely outside the display window.
func (g *SlotGrid) Place(startMinute, endMinute int) (rowStart, rowSpan int, ok bool) {
	rowStart = g.IndexOf(g.SnapDown(g.Clamp(startMinute)))
	rowEnd := g.IndexOf(g.SnapUp(g.Clamp(endMinute)))
	if rowStart < 0 || rowEnd < 0 || rowEnd <= rowStart {
		return 0, 0, false
	}
	return rowStart, rowEnd - rowStart, true
}

// Label formats boundary i as "H:MM" on a 24-hour clock.
func (g *SlotGrid) Label(i int) string {
	m := g.bounds[i]
	return fmt.Sprintf("%d:%02d", m/60, m%60)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
