// Package booking holds the scheduling core: the slot generator
// orchestration (read path) and the booking arbiter (write path). The
// stores it depends on are interfaces; the atomicity contract for
// Book lives with the store implementation.
package booking

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/celi21/feattreatmentschedulingapp/internal/availability"
	"github.com/celi21/feattreatmentschedulingapp/internal/model"
	"github.com/celi21/feattreatmentschedulingapp/internal/storage"
)

// DefaultSlotDuration is the fixed slot granularity offered to clients
// when no service is named. It is independent of service durations.
const DefaultSlotDuration = 30 * time.Minute

// CatalogStore is the read-only lookup for businesses, providers and
// services.
type CatalogStore interface {
	GetBusiness(ctx context.Context, id string) (model.Business, error)
	GetProvider(ctx context.Context, id string) (model.Provider, error)
	GetService(ctx context.Context, id string) (model.Service, error)
}

// AppointmentStore persists appointments. Book must perform its
// overlap check and insert as one atomic unit per provider and return
// storage.ErrConflict when the interval is taken.
type AppointmentStore interface {
	ListBlockingAppointments(ctx context.Context, providerID string, from, to time.Time) ([]model.Appointment, error)
	Book(ctx context.Context, appt *model.Appointment) error
	GetAppointment(ctx context.Context, id string) (model.Appointment, error)
	ListAppointments(ctx context.Context, providerID string, limit int) ([]model.Appointment, error)
	UpdateStatus(ctx context.Context, id string, from, to model.AppointmentStatus, reason string) (model.Appointment, error)
}

type Engine struct {
	catalog      CatalogStore
	appts        AppointmentStore
	logger       *slog.Logger
	slotDuration time.Duration
	now          func() time.Time
}

type Config struct {
	// SlotDuration overrides DefaultSlotDuration when positive.
	SlotDuration time.Duration
	// Now overrides the wall clock; tests use this for determinism.
	Now func() time.Time
}

func NewEngine(catalog CatalogStore, appts AppointmentStore, logger *slog.Logger, cfg Config) *Engine {
	if cfg.SlotDuration <= 0 {
		cfg.SlotDuration = DefaultSlotDuration
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Engine{
		catalog:      catalog,
		appts:        appts,
		logger:       logger,
		slotDuration: cfg.SlotDuration,
		now:          cfg.Now,
	}
}

// Availability returns the bookable slots for a provider on a calendar
// date (YYYY-MM-DD, interpreted in the business's timezone). An
// inactive provider or a date in the past is a valid empty answer, not
// an error. When serviceID is non-empty, slots are sized by that
// service's duration instead of the fixed default, so a long service
// is only offered where its full length is free.
func (e *Engine) Availability(ctx context.Context, providerID, serviceID, date string) ([]model.Slot, error) {
	provider, err := e.catalog.GetProvider(ctx, providerID)
	if storage.IsNotFound(err) {
		return nil, &ValidationError{Field: "provider_id", Reason: "unknown provider", NotFound: true}
	}
	if err != nil {
		return nil, fmt.Errorf("load provider: %w", err)
	}
	if !provider.IsActive {
		return []model.Slot{}, nil
	}

	business, err := e.catalog.GetBusiness(ctx, provider.BusinessID)
	if err != nil {
		return nil, fmt.Errorf("load business: %w", err)
	}
	if !business.IsActive {
		return []model.Slot{}, nil
	}
	loc := business.Location()

	day, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return nil, &ValidationError{Field: "date", Reason: "must be YYYY-MM-DD"}
	}

	slotDuration := e.slotDuration
	if serviceID != "" {
		svc, err := e.catalog.GetService(ctx, serviceID)
		if storage.IsNotFound(err) {
			return nil, &ValidationError{Field: "service_id", Reason: "unknown service", NotFound: true}
		}
		if err != nil {
			return nil, fmt.Errorf("load service: %w", err)
		}
		if svc.BusinessID != business.ID {
			return nil, &ValidationError{Field: "service_id", Reason: "service does not belong to this business", NotFound: true}
		}
		if !svc.IsActive {
			return []model.Slot{}, nil
		}
		slotDuration = svc.Duration()
	}

	now := e.now()
	localNow := now.In(loc)
	today := time.Date(localNow.Year(), localNow.Month(), localNow.Day(), 0, 0, 0, 0, loc)
	if day.Before(today) {
		return []model.Slot{}, nil
	}

	windowStart, windowEnd := availability.DayWindow(day, provider.WorkStartHour, provider.WorkEndHour, loc)
	if !windowEnd.After(windowStart) {
		return []model.Slot{}, nil
	}

	blocking, err := e.appts.ListBlockingAppointments(ctx, provider.ID, windowStart, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("load booked intervals: %w", err)
	}
	busy := make([]model.Slot, 0, len(blocking))
	for _, a := range blocking {
		busy = append(busy, model.Slot{Start: a.Start, End: a.End})
	}

	slots := availability.Slots(windowStart, windowEnd, slotDuration, busy, now)
	if slots == nil {
		slots = []model.Slot{}
	}
	return slots, nil
}

// BookingRequest is the client's booking submission. Start is the raw
// RFC 3339 instant; parsing it is one of the arbiter's preconditions.
type BookingRequest struct {
	ProviderID  string
	ServiceID   string
	Start       string
	ClientName  string
	ClientEmail string
	ClientPhone string
	Notes       string
}

// Book validates the request, derives the appointment interval, and
// delegates the atomic conflict-check-and-insert to the store. Exactly
// one row is created on success; no write happens on any rejection.
func (e *Engine) Book(ctx context.Context, req BookingRequest) (*model.Appointment, error) {
	provider, err := e.catalog.GetProvider(ctx, strings.TrimSpace(req.ProviderID))
	if storage.IsNotFound(err) {
		return nil, &ValidationError{Field: "provider_id", Reason: "unknown provider", NotFound: true}
	}
	if err != nil {
		return nil, fmt.Errorf("load provider: %w", err)
	}
	if !provider.IsActive {
		// Inactive reads the same as unknown: catalog state is not
		// leaked to booking clients.
		return nil, &ValidationError{Field: "provider_id", Reason: "provider is not accepting bookings", NotFound: true}
	}

	business, err := e.catalog.GetBusiness(ctx, provider.BusinessID)
	if err != nil {
		return nil, fmt.Errorf("load business: %w", err)
	}
	if !business.IsActive {
		return nil, &ValidationError{Field: "provider_id", Reason: "business is not accepting bookings", NotFound: true}
	}

	service, err := e.catalog.GetService(ctx, strings.TrimSpace(req.ServiceID))
	if storage.IsNotFound(err) {
		return nil, &ValidationError{Field: "service_id", Reason: "unknown service", NotFound: true}
	}
	if err != nil {
		return nil, fmt.Errorf("load service: %w", err)
	}
	if service.BusinessID != business.ID {
		return nil, &ValidationError{Field: "service_id", Reason: "service does not belong to this business", NotFound: true}
	}
	if !service.IsActive {
		return nil, &ValidationError{Field: "service_id", Reason: "service is not bookable", NotFound: true}
	}
	if service.DurationMins <= 0 {
		return nil, &ValidationError{Field: "service_id", Reason: "service has no duration"}
	}

	clientName := strings.TrimSpace(req.ClientName)
	if clientName == "" {
		return nil, &ValidationError{Field: "client_name", Reason: "required"}
	}
	clientEmail := strings.TrimSpace(req.ClientEmail)
	if _, err := mail.ParseAddress(clientEmail); err != nil {
		return nil, &ValidationError{Field: "client_email", Reason: "must be a valid email address"}
	}

	start, err := time.Parse(time.RFC3339, strings.TrimSpace(req.Start))
	if err != nil {
		return nil, &ValidationError{Field: "start", Reason: "must be an RFC 3339 timestamp"}
	}

	appt := &model.Appointment{
		ID:          uuid.NewString(),
		BusinessID:  business.ID,
		ProviderID:  provider.ID,
		ServiceID:   service.ID,
		ClientName:  clientName,
		ClientEmail: clientEmail,
		ClientPhone: strings.TrimSpace(req.ClientPhone),
		Notes:       strings.TrimSpace(req.Notes),
		Start:       start.UTC(),
		End:         start.UTC().Add(service.Duration()),
		Status:      model.StatusPending,
	}

	if err := e.appts.Book(ctx, appt); err != nil {
		if storage.IsConflict(err) {
			return nil, ErrSlotConflict
		}
		if storage.IsNotFound(err) {
			return nil, &ValidationError{Field: "provider_id", Reason: "unknown provider", NotFound: true}
		}
		return nil, fmt.Errorf("persist appointment: %w", err)
	}

	e.logger.Info("appointment booked",
		"appointment_id", appt.ID,
		"provider_id", appt.ProviderID,
		"start", appt.Start.Format(time.RFC3339),
	)
	return appt, nil
}

// Transition applies a staff lifecycle change. The store update is
// conditional on the status the appointment was read with, so two
// concurrent transitions cannot both win.
func (e *Engine) Transition(ctx context.Context, appointmentID string, to model.AppointmentStatus) (model.Appointment, error) {
	if !to.Valid() {
		return model.Appointment{}, &ValidationError{Field: "status", Reason: "unknown status"}
	}
	appt, err := e.appts.GetAppointment(ctx, appointmentID)
	if storage.IsNotFound(err) {
		return model.Appointment{}, &ValidationError{Field: "appointment_id", Reason: "unknown appointment", NotFound: true}
	}
	if err != nil {
		return model.Appointment{}, fmt.Errorf("load appointment: %w", err)
	}
	if err := appt.Status.CanTransitionTo(to); err != nil {
		return model.Appointment{}, &TransitionError{From: appt.Status, To: to}
	}

	updated, err := e.appts.UpdateStatus(ctx, appointmentID, appt.Status, to, "")
	if storage.IsConflict(err) {
		return model.Appointment{}, &TransitionError{From: appt.Status, To: to}
	}
	if err != nil {
		return model.Appointment{}, fmt.Errorf("update status: %w", err)
	}
	return updated, nil
}

// Cancel cancels an appointment. Cancelling an already-cancelled
// appointment is idempotent; cancelling a completed one is rejected.
func (e *Engine) Cancel(ctx context.Context, appointmentID, reason string) (model.Appointment, error) {
	appt, err := e.appts.GetAppointment(ctx, appointmentID)
	if storage.IsNotFound(err) {
		return model.Appointment{}, &ValidationError{Field: "appointment_id", Reason: "unknown appointment", NotFound: true}
	}
	if err != nil {
		return model.Appointment{}, fmt.Errorf("load appointment: %w", err)
	}
	if appt.Status == model.StatusCancelled {
		return appt, nil
	}
	if err := appt.Status.CanTransitionTo(model.StatusCancelled); err != nil {
		return model.Appointment{}, &TransitionError{From: appt.Status, To: model.StatusCancelled}
	}

	updated, err := e.appts.UpdateStatus(ctx, appointmentID, appt.Status, model.StatusCancelled, strings.TrimSpace(reason))
	if storage.IsConflict(err) {
		return model.Appointment{}, &TransitionError{From: appt.Status, To: model.StatusCancelled}
	}
	if err != nil {
		return model.Appointment{}, fmt.Errorf("cancel appointment: %w", err)
	}
	return updated, nil
}

// List returns a provider's appointments for the staff surface.
func (e *Engine) List(ctx context.Context, providerID string, limit int) ([]model.Appointment, error) {
	if strings.TrimSpace(providerID) == "" {
		return nil, &ValidationError{Field: "provider_id", Reason: "required"}
	}
	return e.appts.ListAppointments(ctx, providerID, limit)
}
