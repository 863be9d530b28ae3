package slot

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func controllerOn(t *testing.T, g *Grid) *Controller {
	t.Helper()
	c := NewController()
	c.SetGrid(g)
	return c
}

func TestClick_AnchorThenExtend(t *testing.T) {
	// Slots 1-9 all available; click 2 then 5 selects 2,3,4,5.
	c := controllerOn(t, allAvailable(t))

	require.NoError(t, c.Click(2))
	assert.Equal(t, PhaseAnchored, c.Phase())
	assert.Equal(t, []int{2}, c.Selected())

	require.NoError(t, c.Click(5))
	assert.Equal(t, PhaseRanged, c.Phase())
	assert.Equal(t, []int{2, 3, 4, 5}, c.Selected())
}

func TestClick_SelectedSlotClearsWholeRange(t *testing.T) {
	c := controllerOn(t, allAvailable(t))
	require.NoError(t, c.Click(2))
	require.NoError(t, c.Click(5))

	// Any slot of the range, not just the one clicked last.
	require.NoError(t, c.Click(3))
	assert.Equal(t, PhaseEmpty, c.Phase())
	assert.Empty(t, c.Selected())
}

func TestClick_AnchorReclickedClears(t *testing.T) {
	c := controllerOn(t, allAvailable(t))
	require.NoError(t, c.Click(3))
	require.NoError(t, c.Click(3))
	assert.Equal(t, PhaseEmpty, c.Phase())
	assert.Empty(t, c.Selected())
}

func TestClick_EndBeforeStartRejected(t *testing.T) {
	c := controllerOn(t, allAvailable(t))
	require.NoError(t, c.Click(5))

	err := c.Click(2)
	assert.ErrorIs(t, err, ErrEndBeforeStart)
	// State unchanged: still anchored on 5.
	assert.Equal(t, PhaseAnchored, c.Phase())
	assert.Equal(t, []int{5}, c.Selected())
}

func TestClick_FillSkipsUnavailable(t *testing.T) {
	// Slot 4 booked; clicking 2 then 6 selects 2,3,5,6 without error.
	g := gridWith(t, map[string]Status{"12:00": StatusBooked})
	c := controllerOn(t, g)

	require.NoError(t, c.Click(2))
	require.NoError(t, c.Click(6))
	assert.Equal(t, []int{2, 3, 5, 6}, c.Selected())
}

func TestClick_UnavailableSlotRejected(t *testing.T) {
	g := gridWith(t, map[string]Status{"12:00": StatusBooked})
	c := controllerOn(t, g)

	assert.ErrorIs(t, c.Click(4), ErrNotSelectable)
	assert.Empty(t, c.Selected())
}

func TestClick_RangedReanchorsOnNewSlot(t *testing.T) {
	c := controllerOn(t, allAvailable(t))
	require.NoError(t, c.Click(2))
	require.NoError(t, c.Click(4))
	require.True(t, c.Phase() == PhaseRanged)

	// A click outside the confirmed range starts a new selection.
	require.NoError(t, c.Click(7))
	assert.Equal(t, PhaseAnchored, c.Phase())
	assert.Equal(t, []int{7}, c.Selected())
}

func TestClick_NoGrid(t *testing.T) {
	c := NewController()
	assert.ErrorIs(t, c.Click(1), ErrNoGrid)
}

func TestSelectPreset_FullDay(t *testing.T) {
	c := controllerOn(t, allAvailable(t))
	require.NoError(t, c.SelectPreset("full-day"))
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9}, c.Selected())
}

func TestSelectPreset_Morning(t *testing.T) {
	c := controllerOn(t, allAvailable(t))
	require.NoError(t, c.SelectPreset("morning"))
	// Hours 9-12 inclusive.
	assert.Equal(t, []int{1, 2, 3, 4}, c.Selected())
}

func TestSelectPreset_SkipsUnavailable(t *testing.T) {
	g := gridWith(t, map[string]Status{
		"10:00": StatusBooked,
		"11:00": StatusOccupied,
	})
	c := controllerOn(t, g)
	require.NoError(t, c.SelectPreset("morning"))
	assert.Equal(t, []int{1, 4}, c.Selected())
	for _, id := range c.Selected() {
		assert.True(t, g.Selectable(id))
	}
}

func TestSelectPreset_ReplacesCurrentSelection(t *testing.T) {
	c := controllerOn(t, allAvailable(t))
	require.NoError(t, c.Click(8))
	require.NoError(t, c.SelectPreset("morning"))
	assert.Equal(t, []int{1, 2, 3, 4}, c.Selected())
}

func TestSelectPreset_Unknown(t *testing.T) {
	c := controllerOn(t, allAvailable(t))
	assert.ErrorIs(t, c.SelectPreset("nightshift"), ErrUnknownPreset)
}

func TestSelectPreset_NothingAvailableGoesEmpty(t *testing.T) {
	g := gridWith(t, map[string]Status{
		"09:00": StatusBooked, "10:00": StatusBooked,
		"11:00": StatusBooked, "12:00": StatusBooked,
	})
	c := controllerOn(t, g)
	require.NoError(t, c.SelectPreset("morning"))
	assert.Equal(t, PhaseEmpty, c.Phase())
	assert.Empty(t, c.Selected())
}

func TestUndoLast(t *testing.T) {
	c := controllerOn(t, allAvailable(t))
	require.NoError(t, c.Click(2))
	require.NoError(t, c.Click(4))

	c.UndoLast()
	assert.Equal(t, []int{2, 3}, c.Selected())

	c.UndoLast()
	assert.Equal(t, []int{2}, c.Selected())
	assert.Equal(t, PhaseAnchored, c.Phase())

	c.UndoLast()
	assert.Empty(t, c.Selected())
	assert.Equal(t, PhaseEmpty, c.Phase())

	// Undo on empty is a no-op.
	c.UndoLast()
	assert.Equal(t, PhaseEmpty, c.Phase())
}

func TestClear(t *testing.T) {
	c := controllerOn(t, allAvailable(t))
	require.NoError(t, c.Click(2))
	require.NoError(t, c.Click(6))
	c.Clear()
	assert.Equal(t, PhaseEmpty, c.Phase())
	assert.Empty(t, c.Selected())
}

func TestDropUnavailable_KeepsRestOfSelection(t *testing.T) {
	c := controllerOn(t, allAvailable(t))
	require.NoError(t, c.Click(2))
	require.NoError(t, c.Click(6))

	c.DropUnavailable([]int{5})
	assert.Equal(t, []int{2, 3, 4, 6}, c.Selected())

	c.DropUnavailable([]int{2, 3, 4})
	assert.Equal(t, []int{6}, c.Selected())
	assert.Equal(t, PhaseAnchored, c.Phase())

	c.DropUnavailable([]int{6})
	assert.Equal(t, PhaseEmpty, c.Phase())
}

func TestSetGrid_ClearsSelection(t *testing.T) {
	c := controllerOn(t, allAvailable(t))
	require.NoError(t, c.Click(2))
	c.SetGrid(allAvailable(t))
	assert.Empty(t, c.Selected())
}

func TestOnChange_FiresPerTransition(t *testing.T) {
	c := NewController()
	var events [][]int
	c.OnChange(func(ids []int) { events = append(events, ids) })

	g := gridWith(t, map[string]Status{"17:00": StatusBooked}) // slot 9 unavailable
	c.SetGrid(g)                                               // emit (empty)
	require.NoError(t, c.Click(2))                             // emit {2}
	require.NoError(t, c.Click(4))                             // emit {2,3,4}

	// Rejected clicks do not transition, so no event.
	before := len(events)
	assert.ErrorIs(t, c.Click(9), ErrNotSelectable)
	assert.Len(t, events, before)

	c.Clear()                      // emit (empty)
	require.NoError(t, c.Click(5)) // emit {5}
	before = len(events)
	assert.ErrorIs(t, c.Click(3), ErrEndBeforeStart)
	assert.Len(t, events, before)

	c.Clear() // emit (empty)
	require.Len(t, events, 6)
	assert.Equal(t, []int{2, 3, 4}, events[2])
	assert.Empty(t, events[3])
	assert.Equal(t, []int{5}, events[4])
	assert.Empty(t, events[5])
}

// contiguousOverAvailable verifies the selection invariant: every selectable
// id between the selection's min and max is selected, and nothing outside
// the span is.
func contiguousOverAvailable(t *testing.T, g *Grid, sel []int) {
	t.Helper()
	if len(sel) == 0 {
		return
	}
	min, max := sel[0], sel[len(sel)-1]
	inSel := make(map[int]bool, len(sel))
	for _, id := range sel {
		inSel[id] = true
		require.True(t, g.Selectable(id), "selected id %d is not selectable", id)
	}
	for id := min; id <= max; id++ {
		if g.Selectable(id) {
			require.True(t, inSel[id], "gap at selectable id %d in %v", id, sel)
		}
	}
}

func TestRandomClickSequences_SelectionAlwaysContiguous(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 200; round++ {
		statusFor := map[string]Status{}
		for h := 9; h <= 17; h++ {
			if rng.Intn(4) == 0 {
				statusFor[labelFor(h)] = StatusBooked
			}
		}
		g := gridWith(t, statusFor)
		c := controllerOn(t, g)

		for i := 0; i < 30; i++ {
			switch rng.Intn(10) {
			case 0:
				c.UndoLast()
			case 1:
				_ = c.SelectPreset(Presets[rng.Intn(len(Presets))].Name)
			default:
				// Clicks land on any slot, selected ones included.
				_ = c.Click(1 + rng.Intn(9))
			}
			contiguousOverAvailable(t, g, c.Selected())
		}
	}
}

func labelFor(h int) string {
	return fmt.Sprintf("%02d:00", h)
}
