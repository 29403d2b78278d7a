package model

import (
	"time"
)

// Business owns providers and services. Its timezone is the only
// timezone in which provider working hours may be interpreted; the
// host process timezone is never consulted.
type Business struct {
	ID       string
	Name     string
	Slug     string
	Timezone string
	IsActive bool
}

// Location resolves the business timezone, falling back to UTC for
// unknown or empty zone names.
func (b Business) Location() *time.Location {
	if b.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Provider is a bookable staff member with a daily working-hours
// window [WorkStartHour, WorkEndHour) in the business's local time.
// The window is assumed identical every day of the week.
type Provider struct {
	ID            string
	BusinessID    string
	Name          string
	IsActive      bool
	WorkStartHour int
	WorkEndHour   int
}

// Service is a bookable offering with a fixed duration and price.
type Service struct {
	ID           string
	BusinessID   string
	Name         string
	DurationMins int
	PriceCents   int
	IsActive     bool
}

// Duration returns the service length as a time.Duration.
func (s Service) Duration() time.Duration {
	return time.Duration(s.DurationMins) * time.Minute
}

// Appointment is a booked [Start, End) interval against a provider.
// End is always derived from Start plus the service duration at
// booking time and is never set independently. Appointments are never
// deleted; cancellation is a status change.
type Appointment struct {
	ID           string
	BusinessID   string
	ProviderID   string
	ServiceID    string
	ClientName   string
	ClientEmail  string
	ClientPhone  string
	Notes        string
	Start        time.Time
	End          time.Time
	Status       AppointmentStatus
	CancelledAt  *time.Time
	CancelReason string
	CreatedAt    time.Time
}

// Slot is a candidate bookable window offered to clients.
type Slot struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect. Touching endpoints do not conflict.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
