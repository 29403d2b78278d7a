package availability

import (
	"testing"
	"time"

	"github.com/celi21/feattreatmentschedulingapp/internal/model"
)

func day(t *testing.T) time.Time {
	t.Helper()
	return time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)
}

func TestSlots_FullWorkday(t *testing.T) {
	d := day(t)
	windowStart, windowEnd := DayWindow(d, 9, 17, time.UTC)

	slots := Slots(windowStart, windowEnd, 30*time.Minute, nil, d)
	if len(slots) != 16 {
		t.Fatalf("expected 16 slots for a 9-17 day, got %d", len(slots))
	}
	if !slots[0].Start.Equal(d.Add(9 * time.Hour)) {
		t.Fatalf("first slot should start 09:00, got %s", slots[0].Start)
	}
	last := slots[len(slots)-1]
	if !last.Start.Equal(d.Add(16*time.Hour + 30*time.Minute)) {
		t.Fatalf("last slot should start 16:30, got %s", last.Start)
	}

	for i, s := range slots {
		if s.End.Sub(s.Start) != 30*time.Minute {
			t.Fatalf("slot %d has width %s", i, s.End.Sub(s.Start))
		}
		if s.End.After(windowEnd) {
			t.Fatalf("slot %d ends after the window: %s", i, s.End)
		}
		if i > 0 && !slots[i-1].Start.Before(s.Start) {
			t.Fatalf("slots out of order at %d", i)
		}
	}
}

func TestSlots_BookedIntervalRemovesOverlappingSlots(t *testing.T) {
	d := day(t)
	windowStart, windowEnd := DayWindow(d, 9, 17, time.UTC)
	busy := []model.Slot{
		{Start: d.Add(9 * time.Hour), End: d.Add(10 * time.Hour)},
	}

	slots := Slots(windowStart, windowEnd, 30*time.Minute, busy, d)
	if len(slots) != 14 {
		t.Fatalf("expected 14 slots, got %d", len(slots))
	}
	for _, s := range slots {
		if s.Start.Equal(d.Add(9*time.Hour)) || s.Start.Equal(d.Add(9*time.Hour+30*time.Minute)) {
			t.Fatalf("slot at %s should be blocked", s.Start)
		}
	}
	// Touching endpoints do not conflict: 10:00 must survive.
	if !slots[0].Start.Equal(d.Add(10 * time.Hour)) {
		t.Fatalf("first free slot should be 10:00, got %s", slots[0].Start)
	}
}

func TestSlots_NoPartialTrailingSlot(t *testing.T) {
	d := day(t)
	windowStart, windowEnd := DayWindow(d, 9, 10, time.UTC)

	slots := Slots(windowStart, windowEnd, 45*time.Minute, nil, d)
	if len(slots) != 1 {
		t.Fatalf("expected exactly 1 slot, got %d", len(slots))
	}
	if !slots[0].End.Equal(d.Add(9*time.Hour + 45*time.Minute)) {
		t.Fatalf("unexpected slot end %s", slots[0].End)
	}
}

func TestSlots_PastStartsExcluded(t *testing.T) {
	d := day(t)
	windowStart, windowEnd := DayWindow(d, 9, 17, time.UTC)

	// Late afternoon: every slot starting before 16:45 is gone,
	// including the 16:30-17:00 slot that now falls inside.
	now := d.Add(16*time.Hour + 45*time.Minute)
	slots := Slots(windowStart, windowEnd, 30*time.Minute, nil, now)
	if len(slots) != 0 {
		t.Fatalf("expected no slots at 16:45, got %d", len(slots))
	}

	now = d.Add(16*time.Hour + 15*time.Minute)
	slots = Slots(windowStart, windowEnd, 30*time.Minute, nil, now)
	if len(slots) != 1 {
		t.Fatalf("expected only the 16:30 slot, got %d", len(slots))
	}
	if !slots[0].Start.Equal(d.Add(16*time.Hour + 30*time.Minute)) {
		t.Fatalf("expected 16:30 slot, got %s", slots[0].Start)
	}
}

func TestSlots_FutureDayNotFilteredByNow(t *testing.T) {
	d := day(t)
	windowStart, windowEnd := DayWindow(d, 9, 17, time.UTC)

	now := d.AddDate(0, 0, -1).Add(23 * time.Hour)
	slots := Slots(windowStart, windowEnd, 30*time.Minute, nil, now)
	if len(slots) != 16 {
		t.Fatalf("expected all 16 slots on a future day, got %d", len(slots))
	}
}

func TestSlots_DegenerateInputs(t *testing.T) {
	d := day(t)

	// Inverted working hours must not loop.
	windowStart, windowEnd := DayWindow(d, 17, 9, time.UTC)
	if got := Slots(windowStart, windowEnd, 30*time.Minute, nil, d); len(got) != 0 {
		t.Fatalf("inverted window should yield no slots, got %d", len(got))
	}

	windowStart, windowEnd = DayWindow(d, 9, 17, time.UTC)
	if got := Slots(windowStart, windowEnd, 0, nil, d); len(got) != 0 {
		t.Fatalf("zero duration should yield no slots, got %d", len(got))
	}
	if got := Slots(windowStart, windowEnd, -15*time.Minute, nil, d); len(got) != 0 {
		t.Fatalf("negative duration should yield no slots, got %d", len(got))
	}
}

func TestSlots_Deterministic(t *testing.T) {
	d := day(t)
	windowStart, windowEnd := DayWindow(d, 9, 17, time.UTC)
	busy := []model.Slot{
		{Start: d.Add(11 * time.Hour), End: d.Add(12*time.Hour + 15*time.Minute)},
	}
	now := d.Add(10 * time.Hour)

	first := Slots(windowStart, windowEnd, 30*time.Minute, busy, now)
	second := Slots(windowStart, windowEnd, 30*time.Minute, busy, now)
	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if !first[i].Start.Equal(second[i].Start) || !first[i].End.Equal(second[i].End) {
			t.Fatalf("slot %d differs between runs", i)
		}
	}
}

func TestDayWindow_UsesLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	d := time.Date(2026, 9, 14, 0, 0, 0, 0, loc)
	windowStart, _ := DayWindow(d, 9, 17, loc)
	// 09:00 in New York is 13:00 UTC during DST.
	if !windowStart.UTC().Equal(time.Date(2026, 9, 14, 13, 0, 0, 0, time.UTC)) {
		t.Fatalf("window start not anchored to business timezone: %s", windowStart.UTC())
	}
}
