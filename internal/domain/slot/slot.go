package slot

import (
	"fmt"
	"time"
)

// Status is the bookability of a single hour slot as last reported by the
// availability endpoint. Only StatusAvailable is selectable; the other three
// are terminal from the client's point of view.
type Status string

const (
	StatusAvailable Status = "available"
	StatusBooked    Status = "booked"
	StatusOccupied  Status = "occupied" // held by a pending, unconfirmed payment
	StatusPast      Status = "past"
)

func (s Status) Selectable() bool { return s == StatusAvailable }

func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusBooked, StatusOccupied, StatusPast:
		return true
	}
	return false
}

// Slot is one bookable one-hour unit of a space on a given date.
type Slot struct {
	ID        int    // 1-based, contiguous within a day
	HourLabel string // "HH:00"
	Status    Status
}

// Day is a calendar date built from local year/month/day fields. It is kept
// as plain fields rather than a time.Time so formatting can never be shifted
// across a day boundary by a UTC conversion.
type Day struct {
	Year  int
	Month time.Month
	Dom   int
}

func DayOf(t time.Time) Day {
	y, m, d := t.Date()
	return Day{Year: y, Month: m, Dom: d}
}

func (d Day) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Dom)
}

// At returns the local wall-clock time for the given hour on this day.
func (d Day) At(hour int) time.Time {
	return time.Date(d.Year, d.Month, d.Dom, hour, 0, 0, 0, time.Local)
}

func (d Day) IsZero() bool { return d.Year == 0 }

// ParseDay parses a YYYY-MM-DD string.
func ParseDay(s string) (Day, error) {
	t, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return Day{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DayOf(t), nil
}

// Window is the daily opening window in whole hours. Open and Close are the
// first and last bookable start hours, both inclusive: a 9-17 window yields 9
// one-hour slots with start times 09:00 through 17:00, the last ending 18:00.
type Window struct {
	Open  int
	Close int
}

func (w Window) Hours() int { return w.Close - w.Open + 1 }

func (w Window) Valid() bool {
	return w.Open >= 0 && w.Close <= 23 && w.Open <= w.Close
}

// IDForHour maps a start hour to its slot id (opening hour -> 1).
func (w Window) IDForHour(hour int) (int, bool) {
	if hour < w.Open || hour > w.Close {
		return 0, false
	}
	return hour - w.Open + 1, true
}

// HourForID is the inverse of IDForHour.
func (w Window) HourForID(id int) (int, bool) {
	if id < 1 || id > w.Hours() {
		return 0, false
	}
	return w.Open + id - 1, true
}

// Grid is the full, ordered set of slots for one (space, date) pair.
// A Grid is immutable once built: refreshes replace it wholesale, never
// patch it in place.
type Grid struct {
	SpaceID int64
	Day     Day
	Window  Window

	slots []Slot
}

// NewGrid builds a grid for the window, taking each slot's status from
// statusFor keyed by the "HH:00" label. Hours missing from statusFor
// default to available.
func NewGrid(spaceID int64, day Day, w Window, statusFor map[string]Status) (*Grid, error) {
	if !w.Valid() {
		return nil, fmt.Errorf("invalid opening window %d-%d", w.Open, w.Close)
	}
	g := &Grid{SpaceID: spaceID, Day: day, Window: w, slots: make([]Slot, 0, w.Hours())}
	for h := w.Open; h <= w.Close; h++ {
		label := fmt.Sprintf("%02d:00", h)
		st := StatusAvailable
		if s, ok := statusFor[label]; ok {
			if !s.Valid() {
				return nil, fmt.Errorf("unknown slot status %q at %s", s, label)
			}
			st = s
		}
		id, _ := w.IDForHour(h)
		g.slots = append(g.slots, Slot{ID: id, HourLabel: label, Status: st})
	}
	return g, nil
}

// Slots returns a copy of the slot sequence, ids ascending.
func (g *Grid) Slots() []Slot {
	out := make([]Slot, len(g.slots))
	copy(out, g.slots)
	return out
}

func (g *Grid) Len() int { return len(g.slots) }

func (g *Grid) Slot(id int) (Slot, bool) {
	if id < 1 || id > len(g.slots) {
		return Slot{}, false
	}
	return g.slots[id-1], true
}

// StatusOf reports the status of a slot id; ids outside the grid read as past.
func (g *Grid) StatusOf(id int) Status {
	s, ok := g.Slot(id)
	if !ok {
		return StatusPast
	}
	return s.Status
}

func (g *Grid) Selectable(id int) bool { return g.StatusOf(id).Selectable() }

// Equal reports structural equality, used to detect no-op refreshes.
func (g *Grid) Equal(o *Grid) bool {
	if o == nil || g.SpaceID != o.SpaceID || g.Day != o.Day || g.Window != o.Window || len(g.slots) != len(o.slots) {
		return false
	}
	for i := range g.slots {
		if g.slots[i] != o.slots[i] {
			return false
		}
	}
	return true
}
