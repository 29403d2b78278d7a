package model

import "fmt"

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

// BlockingStatuses is the policy for which appointment states occupy a
// provider's calendar. Completed appointments lie in the past and do
// not block; cancelled appointments never block.
var BlockingStatuses = []AppointmentStatus{StatusPending, StatusConfirmed}

// Blocks reports whether an appointment in this state occupies its
// interval for availability and conflict checks.
func (s AppointmentStatus) Blocks() bool {
	for _, b := range BlockingStatuses {
		if s == b {
			return true
		}
	}
	return false
}

// Valid reports whether s is one of the known lifecycle states.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo enforces the appointment lifecycle: pending may be
// confirmed or cancelled, confirmed may be completed or cancelled, and
// completed/cancelled are terminal.
func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) error {
	switch s {
	case StatusPending:
		if next == StatusConfirmed || next == StatusCancelled {
			return nil
		}
	case StatusConfirmed:
		if next == StatusCompleted || next == StatusCancelled {
			return nil
		}
	}
	return fmt.Errorf("illegal status transition %s -> %s", s, next)
}
