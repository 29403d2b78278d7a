package booking

import (
	"errors"
	"fmt"

	"github.com/celi21/feattreatmentschedulingapp/internal/model"
)

// ErrSlotConflict is returned when a requested interval was valid but
// became unavailable between the client's read and the commit. Callers
// should re-fetch availability rather than resubmit the same request.
var ErrSlotConflict = errors.New("time slot is no longer available")

// ValidationError reports a malformed or unsatisfiable request field.
// NotFound distinguishes "no such entity" from "bad value" so the HTTP
// layer can answer 404 vs 400; both are client errors and neither is
// retried.
type ValidationError struct {
	Field    string
	Reason   string
	NotFound bool
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// TransitionError reports an appointment lifecycle transition that is
// not allowed from the appointment's current state, including the case
// where the state moved concurrently.
type TransitionError struct {
	From model.AppointmentStatus
	To   model.AppointmentStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot transition appointment from %s to %s", e.From, e.To)
}

// IsValidation reports whether err is a client-input failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err is a validation failure for an
// entity that does not exist.
func IsNotFound(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) && ve.NotFound
}

// IsConflict reports whether err means the world changed under the
// caller: a lost booking race or a stale lifecycle transition.
func IsConflict(err error) bool {
	if errors.Is(err, ErrSlotConflict) {
		return true
	}
	var te *TransitionError
	return errors.As(err, &te)
}
