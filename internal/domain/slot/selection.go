package slot

import (
	"errors"
	"sort"
)

// Phase is the selection state machine's current state.
type Phase int

const (
	PhaseEmpty Phase = iota
	PhaseAnchored
	PhaseRanged
)

var (
	// ErrEndBeforeStart is returned when the second click lands on or before
	// the anchor. Resolved locally by the caller (re-render with a message);
	// it never aborts the session or clears the anchor.
	ErrEndBeforeStart = errors.New("end must be after start")

	// ErrNotSelectable is returned for clicks on booked/occupied/past slots.
	ErrNotSelectable = errors.New("slot is not available")

	ErrNoGrid        = errors.New("no availability grid loaded")
	ErrUnknownPreset = errors.New("unknown preset")
)

// Preset is a named fixed hour range for one-click selection. StartHour and
// EndHour are both inclusive start hours, matching the two-click fill.
type Preset struct {
	Name      string
	StartHour int
	EndHour   int
}

// Presets in display order. Ranges outside the grid's opening window are
// clamped at fill time.
var Presets = []Preset{
	{Name: "morning", StartHour: 9, EndHour: 12},
	{Name: "afternoon", StartHour: 14, EndHour: 17},
	{Name: "full-day", StartHour: 9, EndHour: 17},
}

func presetByName(name string) (Preset, bool) {
	for _, p := range Presets {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}

// Controller turns slot clicks into a selection that, whenever non-empty,
// covers every selectable slot between its lowest and highest id.
// Unavailable slots inside the span are skipped, never selected.
//
// It is the single owner of selection state; rendering layers subscribe via
// OnChange instead of reading DOM-style shared state.
type Controller struct {
	grid *Grid

	phase  Phase
	anchor int
	picked []int // insertion order, for UndoLast

	onChange func(ids []int)
}

func NewController() *Controller { return &Controller{} }

// OnChange registers the selectionChanged subscriber. Every state transition
// notifies it with the current ordered ids; rejected clicks do not.
func (c *Controller) OnChange(fn func(ids []int)) { c.onChange = fn }

// SetGrid switches the controller to a new (space, date) context. Any
// in-progress selection is cleared: ids from one grid mean nothing in another.
func (c *Controller) SetGrid(g *Grid) {
	c.grid = g
	c.reset()
	c.notify()
}

func (c *Controller) Grid() *Grid { return c.grid }

func (c *Controller) Phase() Phase { return c.phase }

// Selected returns the selected ids in ascending order.
func (c *Controller) Selected() []int {
	out := make([]int, len(c.picked))
	copy(out, c.picked)
	sort.Ints(out)
	return out
}

func (c *Controller) IsSelected(id int) bool {
	for _, p := range c.picked {
		if p == id {
			return true
		}
	}
	return false
}

// Span returns the lowest and highest selected id.
func (c *Controller) Span() (min, max int, ok bool) {
	if len(c.picked) == 0 {
		return 0, 0, false
	}
	min, max = c.picked[0], c.picked[0]
	for _, p := range c.picked[1:] {
		if p < min {
			min = p
		}
		if p > max {
			max = p
		}
	}
	return min, max, true
}

// Click processes a user click on slot id.
//
// Clicking any already-selected slot clears the whole selection (the product
// behavior is "start over", not partial edits). Otherwise: an empty selection
// anchors on the slot; a second click after the anchor fills the span; a click
// while a range is confirmed re-anchors on the new slot.
func (c *Controller) Click(id int) error {
	if c.grid == nil {
		return ErrNoGrid
	}
	if c.IsSelected(id) {
		c.reset()
		c.notify()
		return nil
	}
	if !c.grid.Selectable(id) {
		return ErrNotSelectable
	}

	switch c.phase {
	case PhaseEmpty:
		c.anchorOn(id)
	case PhaseAnchored:
		if id <= c.anchor {
			return ErrEndBeforeStart
		}
		c.fill(c.anchor, id)
		c.phase = PhaseRanged
	case PhaseRanged:
		c.reset()
		c.anchorOn(id)
	}
	c.notify()
	return nil
}

// SelectPreset clears the current selection and fills the preset's hour
// range, skipping unavailable slots exactly like a two-click range.
func (c *Controller) SelectPreset(name string) error {
	if c.grid == nil {
		return ErrNoGrid
	}
	p, ok := presetByName(name)
	if !ok {
		return ErrUnknownPreset
	}
	c.reset()

	w := c.grid.Window
	from, to := p.StartHour, p.EndHour
	if from < w.Open {
		from = w.Open
	}
	if to > w.Close {
		to = w.Close
	}
	if lo, ok := w.IDForHour(from); ok {
		hi, _ := w.IDForHour(to)
		c.fill(lo, hi)
	}
	switch len(c.picked) {
	case 0:
		c.phase = PhaseEmpty
	case 1:
		c.phase = PhaseAnchored
		c.anchor = c.picked[0]
	default:
		c.phase = PhaseRanged
	}
	c.notify()
	return nil
}

// UndoLast removes the most recently added slot from the selection.
func (c *Controller) UndoLast() {
	if len(c.picked) == 0 {
		return
	}
	c.picked = c.picked[:len(c.picked)-1]
	switch len(c.picked) {
	case 0:
		c.phase = PhaseEmpty
		c.anchor = 0
	case 1:
		c.phase = PhaseAnchored
		c.anchor = c.picked[0]
	}
	c.notify()
}

// Clear unconditionally empties the selection.
func (c *Controller) Clear() {
	c.reset()
	c.notify()
}

// DropUnavailable removes the given ids from the selection without touching
// the rest of it. Used when a submission pre-check or a booking conflict
// reveals that previously-available slots are gone: the user keeps the
// remainder of their selection instead of re-entering it.
func (c *Controller) DropUnavailable(ids []int) {
	if len(ids) == 0 || len(c.picked) == 0 {
		return
	}
	gone := make(map[int]bool, len(ids))
	for _, id := range ids {
		gone[id] = true
	}
	kept := c.picked[:0]
	for _, p := range c.picked {
		if !gone[p] {
			kept = append(kept, p)
		}
	}
	c.picked = kept
	switch len(c.picked) {
	case 0:
		c.phase = PhaseEmpty
		c.anchor = 0
	case 1:
		c.phase = PhaseAnchored
		c.anchor = c.picked[0]
	}
	c.notify()
}

func (c *Controller) anchorOn(id int) {
	c.phase = PhaseAnchored
	c.anchor = id
	c.picked = append(c.picked, id)
}

// fill appends every selectable id in [lo, hi], ascending. The anchor is
// already in picked when filling from a click, so duplicates are skipped.
func (c *Controller) fill(lo, hi int) {
	for id := lo; id <= hi; id++ {
		if !c.grid.Selectable(id) || c.IsSelected(id) {
			continue
		}
		c.picked = append(c.picked, id)
	}
}

func (c *Controller) reset() {
	c.phase = PhaseEmpty
	c.anchor = 0
	c.picked = c.picked[:0]
}

func (c *Controller) notify() {
	if c.onChange != nil {
		c.onChange(c.Selected())
	}
}
