package booking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/celi21/feattreatmentschedulingapp/internal/model"
	"github.com/celi21/feattreatmentschedulingapp/internal/storage"
)

var testNow = time.Date(2026, 9, 14, 8, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*Engine, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	store.AddBusiness(model.Business{ID: "biz-1", Name: "Glow Studio", Slug: "glow-studio", Timezone: "UTC", IsActive: true})
	store.AddProvider(model.Provider{ID: "prov-1", BusinessID: "biz-1", Name: "Dana", WorkStartHour: 9, WorkEndHour: 17, IsActive: true})
	store.AddService(model.Service{ID: "svc-30", BusinessID: "biz-1", Name: "Consultation", DurationMins: 30, PriceCents: 5000, IsActive: true})
	store.AddService(model.Service{ID: "svc-90", BusinessID: "biz-1", Name: "Deep Treatment", DurationMins: 90, PriceCents: 15000, IsActive: true})
	store.AddService(model.Service{ID: "svc-off", BusinessID: "biz-1", Name: "Retired", DurationMins: 30, IsActive: false})

	store.AddBusiness(model.Business{ID: "biz-2", Name: "Other Shop", Slug: "other-shop", Timezone: "UTC", IsActive: true})
	store.AddService(model.Service{ID: "svc-foreign", BusinessID: "biz-2", Name: "Foreign", DurationMins: 30, IsActive: true})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng := NewEngine(store, store, logger, Config{Now: func() time.Time { return testNow }})
	return eng, store
}

func validRequest(start string) BookingRequest {
	return BookingRequest{
		ProviderID:  "prov-1",
		ServiceID:   "svc-30",
		Start:       start,
		ClientName:  "Pat Doe",
		ClientEmail: "pat@example.com",
	}
}

func TestAvailability_FullDay(t *testing.T) {
	eng, _ := newTestEngine(t)

	slots, err := eng.Availability(context.Background(), "prov-1", "", "2026-09-15")
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if len(slots) != 16 {
		t.Fatalf("expected 16 slots, got %d", len(slots))
	}
}

func TestAvailability_BookedSlotsHidden(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	if _, err := eng.Book(ctx, validRequest("2026-09-15T09:00:00Z")); err != nil {
		t.Fatalf("book: %v", err)
	}

	slots, err := eng.Availability(ctx, "prov-1", "", "2026-09-15")
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if len(slots) != 15 {
		t.Fatalf("expected 15 slots after booking, got %d", len(slots))
	}
	for _, s := range slots {
		if s.Start.Hour() == 9 && s.Start.Minute() == 0 {
			t.Fatalf("booked slot still offered: %s", s.Start)
		}
	}
}

func TestAvailability_CancelledDoesNotBlock(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	appt, err := eng.Book(ctx, validRequest("2026-09-15T09:00:00Z"))
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if _, err := eng.Cancel(ctx, appt.ID, "client request"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	slots, err := eng.Availability(ctx, "prov-1", "", "2026-09-15")
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if len(slots) != 16 {
		t.Fatalf("cancelled appointment should free its slot, got %d slots", len(slots))
	}
}

func TestAvailability_ServiceSizedSlots(t *testing.T) {
	eng, _ := newTestEngine(t)

	slots, err := eng.Availability(context.Background(), "prov-1", "svc-90", "2026-09-15")
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	// 8 working hours / 90 minutes = 5 whole slots.
	if len(slots) != 5 {
		t.Fatalf("expected 5 slots for a 90-minute service, got %d", len(slots))
	}
	for _, s := range slots {
		if s.End.Sub(s.Start) != 90*time.Minute {
			t.Fatalf("slot width %s, want 90m", s.End.Sub(s.Start))
		}
	}
}

func TestAvailability_PastDateEmpty(t *testing.T) {
	eng, _ := newTestEngine(t)

	slots, err := eng.Availability(context.Background(), "prov-1", "", "2026-09-13")
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("past date should yield no slots, got %d", len(slots))
	}
}

func TestAvailability_TodayHidesElapsedSlots(t *testing.T) {
	eng, _ := newTestEngine(t)

	// testNow is 08:00 so nothing is elapsed yet; move the clock.
	eng.now = func() time.Time { return time.Date(2026, 9, 14, 12, 10, 0, 0, time.UTC) }
	slots, err := eng.Availability(context.Background(), "prov-1", "", "2026-09-14")
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	// Slots from 12:30 through 16:30 remain.
	if len(slots) != 9 {
		t.Fatalf("expected 9 remaining slots, got %d", len(slots))
	}
	if slots[0].Start.Hour() != 12 || slots[0].Start.Minute() != 30 {
		t.Fatalf("first remaining slot should be 12:30, got %s", slots[0].Start)
	}
}

func TestAvailability_Errors(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()

	if _, err := eng.Availability(ctx, "nope", "", "2026-09-15"); !IsNotFound(err) {
		t.Fatalf("unknown provider should be not-found, got %v", err)
	}
	if _, err := eng.Availability(ctx, "prov-1", "", "Sept 15"); !IsValidation(err) {
		t.Fatalf("malformed date should be a validation error, got %v", err)
	}
	if _, err := eng.Availability(ctx, "prov-1", "nope", "2026-09-15"); !IsNotFound(err) {
		t.Fatalf("unknown service should be not-found, got %v", err)
	}
	if _, err := eng.Availability(ctx, "prov-1", "svc-foreign", "2026-09-15"); !IsNotFound(err) {
		t.Fatalf("foreign service should be not-found, got %v", err)
	}

	slots, err := eng.Availability(ctx, "prov-1", "svc-off", "2026-09-15")
	if err != nil {
		t.Fatalf("inactive service: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("inactive service should yield no slots, got %d", len(slots))
	}

	store.AddProvider(model.Provider{ID: "prov-off", BusinessID: "biz-1", Name: "Gone", WorkStartHour: 9, WorkEndHour: 17, IsActive: false})
	slots, err = eng.Availability(ctx, "prov-off", "", "2026-09-15")
	if err != nil {
		t.Fatalf("inactive provider: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("inactive provider should yield no slots, got %d", len(slots))
	}
}

func TestBook_Success(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()

	appt, err := eng.Book(ctx, validRequest("2026-09-15T10:00:00Z"))
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if appt.ID == "" {
		t.Fatal("appointment id not assigned")
	}
	if appt.Status != model.StatusPending {
		t.Fatalf("new appointment should be pending, got %s", appt.Status)
	}
	want := time.Date(2026, 9, 15, 10, 30, 0, 0, time.UTC)
	if !appt.End.Equal(want) {
		t.Fatalf("end should be start + service duration, got %s", appt.End)
	}

	stored, err := store.GetAppointment(ctx, appt.ID)
	if err != nil {
		t.Fatalf("stored appointment missing: %v", err)
	}
	if stored.BusinessID != "biz-1" || stored.ServiceID != "svc-30" {
		t.Fatalf("stored appointment has wrong references: %+v", stored)
	}
}

func TestBook_Conflict(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()

	if _, err := eng.Book(ctx, validRequest("2026-09-15T10:00:00Z")); err != nil {
		t.Fatalf("first booking: %v", err)
	}

	// Identical and partially overlapping intervals both collide.
	for _, start := range []string{"2026-09-15T10:00:00Z", "2026-09-15T10:15:00Z", "2026-09-15T09:45:00Z"} {
		_, err := eng.Book(ctx, validRequest(start))
		if !errors.Is(err, ErrSlotConflict) {
			t.Fatalf("start %s: expected slot conflict, got %v", start, err)
		}
	}

	// Back-to-back is fine.
	if _, err := eng.Book(ctx, validRequest("2026-09-15T10:30:00Z")); err != nil {
		t.Fatalf("adjacent booking: %v", err)
	}

	appts, err := store.ListAppointments(ctx, "prov-1", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(appts) != 2 {
		t.Fatalf("expected 2 stored appointments, got %d", len(appts))
	}
}

func TestBook_ConcurrentSameSlot(t *testing.T) {
	eng, store := newTestEngine(t)
	ctx := context.Background()

	const racers = 8
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = eng.Book(ctx, validRequest("2026-09-15T14:00:00Z"))
		}(i)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrSlotConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("exactly one racer should win, got %d", wins)
	}
	if conflicts != racers-1 {
		t.Fatalf("expected %d conflicts, got %d", racers-1, conflicts)
	}

	appts, err := store.ListAppointments(ctx, "prov-1", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(appts) != 1 {
		t.Fatalf("expected a single stored appointment, got %d", len(appts))
	}
}

func TestBook_Validation(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	cases := []struct {
		name     string
		mutate   func(*BookingRequest)
		notFound bool
	}{
		{"unknown provider", func(r *BookingRequest) { r.ProviderID = "nope" }, true},
		{"unknown service", func(r *BookingRequest) { r.ServiceID = "nope" }, true},
		{"foreign service", func(r *BookingRequest) { r.ServiceID = "svc-foreign" }, true},
		{"inactive service", func(r *BookingRequest) { r.ServiceID = "svc-off" }, true},
		{"missing name", func(r *BookingRequest) { r.ClientName = "  " }, false},
		{"bad email", func(r *BookingRequest) { r.ClientEmail = "not-an-email" }, false},
		{"bad start", func(r *BookingRequest) { r.Start = "2026-09-15 10:00" }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest("2026-09-15T10:00:00Z")
			tc.mutate(&req)
			_, err := eng.Book(ctx, req)
			if !IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if IsNotFound(err) != tc.notFound {
				t.Fatalf("not-found = %v, want %v (err: %v)", IsNotFound(err), tc.notFound, err)
			}
			if errors.Is(err, ErrSlotConflict) {
				t.Fatalf("validation failure must not read as a conflict: %v", err)
			}
		})
	}
}

func TestTransition_Lifecycle(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	appt, err := eng.Book(ctx, validRequest("2026-09-15T10:00:00Z"))
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	updated, err := eng.Transition(ctx, appt.ID, model.StatusConfirmed)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if updated.Status != model.StatusConfirmed {
		t.Fatalf("status = %s, want confirmed", updated.Status)
	}

	updated, err = eng.Transition(ctx, appt.ID, model.StatusCompleted)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if updated.Status != model.StatusCompleted {
		t.Fatalf("status = %s, want completed", updated.Status)
	}

	// Terminal: no further transitions, no cancellation.
	if _, err := eng.Transition(ctx, appt.ID, model.StatusConfirmed); !IsConflict(err) {
		t.Fatalf("transition out of completed should conflict, got %v", err)
	}
	if _, err := eng.Cancel(ctx, appt.ID, ""); !IsConflict(err) {
		t.Fatalf("cancelling a completed appointment should conflict, got %v", err)
	}
}

func TestTransition_Rejections(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	appt, err := eng.Book(ctx, validRequest("2026-09-15T10:00:00Z"))
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	if _, err := eng.Transition(ctx, appt.ID, model.StatusCompleted); !IsConflict(err) {
		t.Fatalf("pending -> completed should conflict, got %v", err)
	}
	if _, err := eng.Transition(ctx, appt.ID, "archived"); !IsValidation(err) {
		t.Fatalf("unknown status should be a validation error, got %v", err)
	}
	if _, err := eng.Transition(ctx, "missing", model.StatusConfirmed); !IsNotFound(err) {
		t.Fatalf("unknown appointment should be not-found, got %v", err)
	}
}

func TestCancel_Idempotent(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	appt, err := eng.Book(ctx, validRequest("2026-09-15T10:00:00Z"))
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	first, err := eng.Cancel(ctx, appt.ID, "client request")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if first.Status != model.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", first.Status)
	}
	if first.CancelledAt == nil {
		t.Fatal("cancelled_at not set")
	}
	if first.CancelReason != "client request" {
		t.Fatalf("cancel reason = %q", first.CancelReason)
	}

	second, err := eng.Cancel(ctx, appt.ID, "again")
	if err != nil {
		t.Fatalf("second cancel should be idempotent: %v", err)
	}
	if second.Status != model.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", second.Status)
	}
	if second.CancelReason != "client request" {
		t.Fatalf("second cancel must not overwrite the reason, got %q", second.CancelReason)
	}
}

func TestList(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	for _, start := range []string{"2026-09-15T09:00:00Z", "2026-09-15T11:00:00Z", "2026-09-15T13:00:00Z"} {
		if _, err := eng.Book(ctx, validRequest(start)); err != nil {
			t.Fatalf("book %s: %v", start, err)
		}
	}

	appts, err := eng.List(ctx, "prov-1", 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(appts) != 2 {
		t.Fatalf("limit not applied, got %d", len(appts))
	}
	if appts[0].Start.Before(appts[1].Start) {
		t.Fatal("appointments should be newest first")
	}

	if _, err := eng.List(ctx, " ", 10); !IsValidation(err) {
		t.Fatalf("blank provider should be a validation error, got %v", err)
	}
}
