package booking

import (
	"errors"
	"fmt"
	"time"

	"github.com/example/deskbook/internal/domain/slot"
)

// Request is the payload for one booking-creation call: the selection's span
// expressed as wall-clock times. End is exclusive, one hour past the last
// selected slot. It is built at submit time and never persisted.
type Request struct {
	SpaceID int64
	Start   time.Time
	End     time.Time
}

var ErrEmptySelection = errors.New("selection is empty")

// NewRequest derives a Request from the selected ids on a grid.
func NewRequest(g *slot.Grid, selected []int) (Request, error) {
	if len(selected) == 0 {
		return Request{}, ErrEmptySelection
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
		return Request{}, &ValidationError{Msg: "selection outside opening hours"}
	}
	endHour, ok := g.Window.HourForID(max)
	if !ok {
		return Request{}, &ValidationError{Msg: "selection outside opening hours"}
	}
	return Request{
		SpaceID: g.SpaceID,
		Start:   g.Day.At(startHour),
		End:     g.Day.At(endHour + 1),
	}, nil
}

// Booking is a confirmed reservation as recorded locally after a successful
// submission.
type Booking struct {
	ID         int64
	UserID     int64
	BookingRef string // server-assigned id, used for the payment step
	SpaceID    int64
	Day        string // YYYY-MM-DD
	StartHour  int
	EndHour    int // exclusive
	PriceCents int64
	CreatedAt  time.Time
}

// PendingSelection is the selection context stashed away when a submission
// hits AuthRequired, so the user can log in and resume where they left off.
type PendingSelection struct {
	SpaceID  int64  `json:"space_id"`
	Day      string `json:"day"`
	Selected []int  `json:"selected"`
}

func (p PendingSelection) Empty() bool { return len(p.Selected) == 0 }

func (b Booking) PriceLabel() string {
	return fmt.Sprintf("%d.%02d €", b.PriceCents/100, b.PriceCents%100)
}
