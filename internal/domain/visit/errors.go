package visit

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("visit not found")
	ErrPatientNotFound = errors.New("patient not found")
	ErrNotInProgress   = errors.New("visit is not in progress")
	ErrNotClockedIn    = errors.New("no open clock-in on the current stage")
	ErrAlreadyClocked  = errors.New("stage already has an open clock-in")
	ErrTerminal        = errors.New("visit is already completed or cancelled")
	ErrStageNotFound   = errors.New("no record for that stage on this visit")
)

// ErrActiveVisitExists rejects a second concurrent visit for a patient.
// The existing visit number travels with the error so the front desk can
// show it.
type ErrActiveVisitExists struct {
	VisitNumber string
}

func (e *ErrActiveVisitExists) Error() string {
	return fmt.Sprintf("patient already has an active visit %s", e.VisitNumber)
}

// ErrStageMismatch carries the visit's actual stage for the 400 message.
type ErrStageMismatch struct {
	Expected Stage
	Actual   Stage
}

func (e *ErrStageMismatch) Error() string {
	return fmt.Sprintf("visit is at stage %s, not %s", e.Actual, e.Expected)
}

// ErrInvalidInput marks request-payload validation failures so the handler
// can answer 400 instead of treating them as internal errors.
type ErrInvalidInput struct {
	Reason string
}

func (e *ErrInvalidInput) Error() string { return e.Reason }

// ErrUnresolvedClockIn rejects a handoff while the current stage still has
// an open clock-in.
type ErrUnresolvedClockIn struct {
	Stage Stage
}

func (e *ErrUnresolvedClockIn) Error() string {
	return fmt.Sprintf("clock out of stage %s before handing off", e.Stage)
}
