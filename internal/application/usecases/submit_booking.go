package usecases

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/example/deskbook/internal/auth"
	"github.com/example/deskbook/internal/domain/booking"
	"github.com/example/deskbook/internal/domain/slot"
)

// SubmitState is the phase of one submission attempt, surfaced to the UI via
// the OnState subscriber.
type SubmitState string

const (
	StateIdle             SubmitState = "idle"
	StateValidating       SubmitState = "validating"
	StateSubmitting       SubmitState = "submitting"
	StateSucceeded        SubmitState = "succeeded"
	StateConflictDetected SubmitState = "conflict"
	StateAuthRequired     SubmitState = "auth-required"
	StateFailed           SubmitState = "failed"
)

// GridSource is the slice of the availability store the submitter needs.
type GridSource interface {
	Fetch(ctx context.Context, spaceID int64, day slot.Day) (*slot.Grid, error)
	Invalidate(spaceID int64, day slot.Day)
}

// BookingAPI is one booking-creation call; the submitter owns the retry
// policy around it.
type BookingAPI interface {
	CreateBooking(ctx context.Context, bearer string, req booking.Request) (string, error)
}

// Result of one submission attempt. Err carries the taxonomy error when the
// state is not Succeeded.
type Result struct {
	State       SubmitState
	BookingRef  string
	ConflictIDs []int
	Err         error
}

// Submitter drives one booking attempt end to end: session check,
// fresh availability recheck, booking call with bounded retry, and cache and
// selection upkeep on each outcome.
type Submitter struct {
	Availability GridSource
	API          BookingAPI
	Log          *zap.Logger

	// Retry policy for transient network failures on the create call.
	// Conflict and validation responses are terminal and never retried.
	MaxAttempts int
	BackoffBase time.Duration

	OnState func(SubmitState)

	// Now and Sleep are injectable for tests; nil means the real clock.
	Now   func() time.Time
	Sleep func(d time.Duration)
}

// Submit books the controller's current selection. The controller is mutated
// according to the outcome: cleared on success, trimmed of the offending ids
// on a stale pre-check, and left untouched on conflict, auth and network
// failures.
func (s *Submitter) Submit(ctx context.Context, sess auth.APISession, ctrl *slot.Controller) Result {
	g := ctrl.Grid()
	selected := ctrl.Selected()

	if g == nil || len(selected) == 0 {
		return s.fail(Result{State: StateFailed, Err: &booking.ValidationError{Msg: "select at least one hour before booking"}})
	}
	if !sess.Usable(s.now()) {
		s.setState(StateAuthRequired)
		return Result{State: StateAuthRequired, Err: booking.ErrAuthRequired}
	}

	// Recheck availability on a fresh fetch, not the grid the UI is showing:
	// every slot status is stale the moment it is rendered.
	s.setState(StateValidating)
	fresh, err := s.Availability.Fetch(ctx, g.SpaceID, g.Day)
	if err != nil {
		return s.fail(Result{State: StateFailed, Err: err})
	}
	var gone []int
	for _, id := range selected {
		if !fresh.Selectable(id) {
			gone = append(gone, id)
		}
	}
	if len(gone) > 0 {
		// The booking endpoint is not called. Only the offending ids leave
		// the selection; the user keeps the rest.
		ctrl.DropUnavailable(gone)
		s.setState(StateConflictDetected)
		return Result{State: StateConflictDetected, ConflictIDs: gone, Err: &booking.StaleAvailabilityError{SlotIDs: gone}}
	}

	req, err := booking.NewRequest(g, selected)
	if err != nil {
		return s.fail(Result{State: StateFailed, Err: err})
	}

	s.setState(StateSubmitting)
	ref, err := s.createWithRetry(ctx, sess.Token, req)
	switch {
	case err == nil:
		// The grid for this key now disagrees with the server by exactly one
		// booking; drop it so the next fetch is a hard refresh.
		s.Availability.Invalidate(g.SpaceID, g.Day)
		ctrl.Clear()
		s.setState(StateSucceeded)
		return Result{State: StateSucceeded, BookingRef: ref}
	case errors.Is(err, booking.ErrAuthRequired):
		s.setState(StateAuthRequired)
		return Result{State: StateAuthRequired, Err: err}
	case isConflict(err):
		// A true race: another client won between our recheck and the create
		// call. The conflict proves the cached view was stale.
		s.Availability.Invalidate(g.SpaceID, g.Day)
		s.setState(StateConflictDetected)
		return Result{State: StateConflictDetected, Err: err}
	default:
		return s.fail(Result{State: StateFailed, Err: err})
	}
}

// createWithRetry retries the create call on transient network failures with
// exponential backoff, up to MaxAttempts total attempts.
func (s *Submitter) createWithRetry(ctx context.Context, bearer string, req booking.Request) (string, error) {
	attempts := s.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		ref, err := s.API.CreateBooking(ctx, bearer, req)
		if err == nil {
			return ref, nil
		}
		lastErr = err

		var ne *booking.NetworkError
		if !errors.As(err, &ne) || attempt == attempts {
			return "", err
		}
		backoff := s.BackoffBase << (attempt - 1)
		s.Log.Warn("booking call failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		s.sleep(backoff)
		if ctx.Err() != nil {
			return "", &booking.NetworkError{Err: ctx.Err()}
		}
	}
	return "", lastErr
}

// PendingFor captures the selection context for post-login restoration.
func PendingFor(ctrl *slot.Controller) booking.PendingSelection {
	g := ctrl.Grid()
	if g == nil {
		return booking.PendingSelection{}
	}
	return booking.PendingSelection{
		SpaceID:  g.SpaceID,
		Day:      g.Day.String(),
		Selected: ctrl.Selected(),
	}
}

func (s *Submitter) fail(r Result) Result {
	s.Log.Error("booking submission failed", zap.Error(r.Err))
	s.setState(r.State)
	return r
}

func (s *Submitter) setState(st SubmitState) {
	if s.OnState != nil {
		s.OnState(st)
	}
}

func (s *Submitter) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Submitter) sleep(d time.Duration) {
	if s.Sleep != nil {
		s.Sleep(d)
		return
	}
	time.Sleep(d)
}

func isConflict(err error) bool {
	var ce *booking.ConflictError
	return errors.As(err, &ce)
}
