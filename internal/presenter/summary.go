package presenter

import (
	"fmt"

	"github.com/example/deskbook/internal/application/usecases"
	"github.com/example/deskbook/internal/domain/booking"
	"github.com/example/deskbook/internal/domain/slot"
)

// Summary is everything the booking sidebar shows: the selected range, its
// price, whether the confirm button is live, and the message for the current
// submission state. It is plain data; rendering is someone else's job.
type Summary struct {
	HasSelection bool
	StartLabel   string
	EndLabel     string // exclusive end, one hour past the last slot
	Hours        int
	PriceCents   int64

	CanSubmit bool
	State     usecases.SubmitState
	Message   string
}

type Presenter struct {
	Pricer slot.Pricer
}

// Watch subscribes to the controller and fans each selection transition out
// to the UI callbacks: the changed ids and the recomputed total price. Either
// callback may be nil.
func (p Presenter) Watch(ctrl *slot.Controller, onSelection func(ids []int), onPrice func(cents int64)) {
	ctrl.OnChange(func(ids []int) {
		if onSelection != nil {
			onSelection(ids)
		}
		if onPrice != nil {
			onPrice(p.Pricer.PriceCents(ids))
		}
	})
}

// Summarize builds the view model for the current selection and submission
// state. err is the taxonomy error behind a non-success state, if any.
func (p Presenter) Summarize(g *slot.Grid, selected []int, state usecases.SubmitState, err error) Summary {
	sum := Summary{
		State:      state,
		PriceCents: p.Pricer.PriceCents(selected),
		Message:    booking.UserMessage(err),
	}
	if state == usecases.StateSucceeded {
		sum.Message = "Booking confirmed. Continue to payment to secure your hours."
	}
	if g == nil || len(selected) == 0 {
		return sum
	}

	min, max := selected[0], selected[0]
	for _, id := range selected[1:] {
		if id < min {
			min = id
		}
		if id > max {
			max = id
		}
	}
	startHour, ok := g.Window.HourForID(min)
	if !ok {
		return sum
	}
	endHour, _ := g.Window.HourForID(max)

	sum.HasSelection = true
	sum.Hours = len(selected)
	sum.StartLabel = fmt.Sprintf("%02d:00", startHour)
	sum.EndLabel = fmt.Sprintf("%02d:00", endHour+1)
	sum.CanSubmit = state != usecases.StateValidating && state != usecases.StateSubmitting
	return sum
}

func (s Summary) PriceLabel() string {
	return fmt.Sprintf("%d.%02d €", s.PriceCents/100, s.PriceCents%100)
}
