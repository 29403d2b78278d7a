// Package availability computes candidate booking slots. It is pure:
// all inputs, including the current moment, are passed in, so output
// is deterministic for fixed inputs.
package availability

import (
	"time"

	"github.com/celi21/feattreatmentschedulingapp/internal/model"
)

// DayWindow builds the working-hour window for one calendar day. The
// hours are wall-clock hours in loc; the returned instants are
// absolute. The interval is half-open: [start:00, end:00).
func DayWindow(day time.Time, startHour, endHour int, loc *time.Location) (time.Time, time.Time) {
	windowStart := time.Date(day.Year(), day.Month(), day.Day(), startHour, 0, 0, 0, loc)
	windowEnd := time.Date(day.Year(), day.Month(), day.Day(), endHour, 0, 0, 0, loc)
	return windowStart, windowEnd
}

// Slots walks [windowStart, windowEnd) in fixed steps of slotDuration
// and returns every candidate [cursor, cursor+slotDuration) that
//   - fits entirely inside the window (no partial trailing slot),
//   - does not overlap any busy interval (half-open test, so touching
//     endpoints do not conflict), and
//   - does not start before now.
//
// The start-before-now rule alone covers the calendar semantics: on
// the current day it hides elapsed slots, on past days it hides
// everything, and on future days it filters nothing.
//
// A non-positive slotDuration or an inverted/empty window yields zero
// slots rather than looping.
func Slots(windowStart, windowEnd time.Time, slotDuration time.Duration, busy []model.Slot, now time.Time) []model.Slot {
	if slotDuration <= 0 {
		return nil
	}
	if !windowEnd.After(windowStart) {
		return nil
	}

	var slots []model.Slot
	for cursor := windowStart; !cursor.Add(slotDuration).After(windowEnd); cursor = cursor.Add(slotDuration) {
		if cursor.Before(now) {
			continue
		}
		end := cursor.Add(slotDuration)
		if overlapsAny(cursor, end, busy) {
			continue
		}
		slots = append(slots, model.Slot{Start: cursor, End: end})
	}
	return slots
}

func overlapsAny(start, end time.Time, busy []model.Slot) bool {
	for _, b := range busy {
		if model.Overlaps(start, end, b.Start, b.End) {
			return true
		}
	}
	return false
}
