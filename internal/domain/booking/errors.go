package booking

import (
	"errors"
	"fmt"
)

// Failure taxonomy for a booking attempt. Each category maps to a distinct
// user-facing message because each requires a different user action:
// stale/conflict means refresh and re-select, auth means log in, network
// means try again.

// ErrAuthRequired means no usable session was present. Recoverable by
// authenticating and restoring the stashed selection.
var ErrAuthRequired = errors.New("authentication required")

// ValidationError is a malformed request rejected before any network call.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return "validation: " + e.Msg }

// StaleAvailabilityError means the pre-submission recheck found slots in the
// selection that are no longer available. The booking endpoint was not
// called. SlotIDs lists only the offending ids; the rest of the selection
// stays intact.
type StaleAvailabilityError struct {
	SlotIDs []int
}

func (e *StaleAvailabilityError) Error() string {
	return fmt.Sprintf("availability changed for slots %v", e.SlotIDs)
}

// ConflictError is the server rejecting the booking at commit time: another
// client won the race between our recheck and the create call.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	if e.Reason == "" {
		return "booking conflict"
	}
	return "booking conflict: " + e.Reason
}

// NetworkError is a transport-level failure (timeout, connection refused).
// Retried automatically with backoff before being surfaced.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return "network: " + e.Err.Error() }
func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError is any non-conflict 4xx/5xx. Terminal for the attempt.
type ServerError struct {
	Status int
	Msg    string
}

func (e *ServerError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("server error (status=%d)", e.Status)
	}
	return fmt.Sprintf("server error (status=%d): %s", e.Status, e.Msg)
}

// UserMessage renders the failure as the message shown to the user. Every
// category gets its own wording; a generic "something went wrong" is not
// enough because the recovery action differs per category.
func UserMessage(err error) string {
	var (
		ve *ValidationError
		se *StaleAvailabilityError
		ce *ConflictError
		ne *NetworkError
		sv *ServerError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuthRequired):
		return "Please log in to complete your booking. Your selection is saved."
	case errors.As(err, &ve):
		return ve.Msg
	case errors.As(err, &se):
		return fmt.Sprintf("Some of your chosen hours were just taken (%s). They have been removed; please review and confirm again.", idList(se.SlotIDs))
	case errors.As(err, &ce):
		return "Someone booked these hours a moment before you. Refresh the availability and pick again."
	case errors.As(err, &ne):
		return "Could not reach the booking service. Check your connection and try again."
	case errors.As(err, &sv):
		return "The booking service reported an error. Please try again later."
	default:
		return "The booking could not be completed."
	}
}

func idList(ids []int) string {
	s := ""
	for i, id := range ids {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("slot %d", id)
	}
	return s
}
