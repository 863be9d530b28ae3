package presenter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/deskbook/internal/application/usecases"
	"github.com/example/deskbook/internal/domain/booking"
	"github.com/example/deskbook/internal/domain/slot"
)

func testGrid(t *testing.T) *slot.Grid {
	t.Helper()
	g, err := slot.NewGrid(7, slot.Day{Year: 2026, Month: time.September, Dom: 14}, slot.Window{Open: 9, Close: 17}, nil)
	require.NoError(t, err)
	return g
}

func TestSummarize_SelectionAndPrice(t *testing.T) {
	p := Presenter{Pricer: slot.Pricer{HourlyRateCents: 1500}}

	// Slots 2..5 are 10:00 through 13:00; the shown end is exclusive.
	sum := p.Summarize(testGrid(t), []int{2, 3, 4, 5}, usecases.StateIdle, nil)

	assert.True(t, sum.HasSelection)
	assert.Equal(t, "10:00", sum.StartLabel)
	assert.Equal(t, "14:00", sum.EndLabel)
	assert.Equal(t, 4, sum.Hours)
	assert.Equal(t, int64(6000), sum.PriceCents)
	assert.Equal(t, "60.00 €", sum.PriceLabel())
	assert.True(t, sum.CanSubmit)
	assert.Empty(t, sum.Message)
}

func TestSummarize_Empty(t *testing.T) {
	p := Presenter{Pricer: slot.Pricer{HourlyRateCents: 1500}}

	sum := p.Summarize(testGrid(t), nil, usecases.StateIdle, nil)

	assert.False(t, sum.HasSelection)
	assert.False(t, sum.CanSubmit)
	assert.Zero(t, sum.PriceCents)
}

func TestSummarize_SubmitDisabledWhileInFlight(t *testing.T) {
	p := Presenter{Pricer: slot.Pricer{HourlyRateCents: 1500}}

	for _, st := range []usecases.SubmitState{usecases.StateValidating, usecases.StateSubmitting} {
		sum := p.Summarize(testGrid(t), []int{2, 3}, st, nil)
		assert.False(t, sum.CanSubmit, "state %s", st)
	}
}

func TestSummarize_StateMessages(t *testing.T) {
	p := Presenter{Pricer: slot.Pricer{HourlyRateCents: 1500}}
	g := testGrid(t)

	success := p.Summarize(g, nil, usecases.StateSucceeded, nil)
	assert.Contains(t, success.Message, "confirmed")

	stale := p.Summarize(g, []int{2, 3}, usecases.StateConflictDetected,
		&booking.StaleAvailabilityError{SlotIDs: []int{4}})
	assert.NotEmpty(t, stale.Message)
	assert.True(t, stale.CanSubmit, "remaining selection can be rebooked")

	conflict := p.Summarize(g, []int{2, 3}, usecases.StateConflictDetected,
		&booking.ConflictError{Reason: "taken"})
	assert.NotEmpty(t, conflict.Message)
	assert.NotEqual(t, stale.Message, conflict.Message)
}

func TestWatch_EmitsPricePerSelectionChange(t *testing.T) {
	p := Presenter{Pricer: slot.Pricer{HourlyRateCents: 1500}}
	ctrl := slot.NewController()

	var prices []int64
	var selections [][]int
	p.Watch(ctrl,
		func(ids []int) { selections = append(selections, ids) },
		func(cents int64) { prices = append(prices, cents) },
	)

	ctrl.SetGrid(testGrid(t))
	require.NoError(t, ctrl.Click(2))
	require.NoError(t, ctrl.Click(5))
	ctrl.Clear()

	assert.Equal(t, []int64{0, 1500, 6000, 0}, prices)
	require.Len(t, selections, 4)
	assert.Equal(t, []int{2, 3, 4, 5}, selections[2])
}

func TestWatch_NilCallbacks(t *testing.T) {
	p := Presenter{Pricer: slot.Pricer{HourlyRateCents: 1500}}
	ctrl := slot.NewController()
	p.Watch(ctrl, nil, nil)

	ctrl.SetGrid(testGrid(t))
	require.NoError(t, ctrl.Click(3))
}

func TestSummarize_SingleSlot(t *testing.T) {
	p := Presenter{Pricer: slot.Pricer{HourlyRateCents: 1500}}

	sum := p.Summarize(testGrid(t), []int{9}, usecases.StateIdle, nil)

	assert.Equal(t, "17:00", sum.StartLabel)
	assert.Equal(t, "18:00", sum.EndLabel)
	assert.Equal(t, 1, sum.Hours)
	assert.Equal(t, int64(1500), sum.PriceCents)
}
