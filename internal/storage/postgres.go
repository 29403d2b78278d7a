// Package storage persists the booking domain. The Postgres store is
// the production implementation; the memory store backs dev mode and
// tests. Both provide the same guarantee: the overlap check and the
// appointment insert are a single atomic unit per provider.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/celi21/feattreatmentschedulingapp/internal/model"
	"github.com/celi21/feattreatmentschedulingapp/internal/outbox"
	"github.com/celi21/feattreatmentschedulingapp/libs/db"
)

type PostgresStore struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewPostgresStore(pool *db.Pool, outboxRepo *outbox.Repository) *PostgresStore {
	return &PostgresStore{pool: pool, outbox: outboxRepo}
}

func (s *PostgresStore) GetBusiness(ctx context.Context, id string) (model.Business, error) {
	var b model.Business
	err := s.pool.QueryRow(ctx, `
		SELECT id::text, name, slug, timezone, is_active
		FROM businesses
		WHERE id = $1
	`, id).Scan(&b.ID, &b.Name, &b.Slug, &b.Timezone, &b.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Business{}, ErrNotFound
	}
	return b, err
}

func (s *PostgresStore) GetProvider(ctx context.Context, id string) (model.Provider, error) {
	var p model.Provider
	err := s.pool.QueryRow(ctx, `
		SELECT id::text, business_id::text, name, is_active, work_start_hour, work_end_hour
		FROM providers
		WHERE id = $1
	`, id).Scan(&p.ID, &p.BusinessID, &p.Name, &p.IsActive, &p.WorkStartHour, &p.WorkEndHour)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Provider{}, ErrNotFound
	}
	return p, err
}

func (s *PostgresStore) GetService(ctx context.Context, id string) (model.Service, error) {
	var svc model.Service
	err := s.pool.QueryRow(ctx, `
		SELECT id::text, business_id::text, name, duration_minutes, price_cents, is_active
		FROM services
		WHERE id = $1
	`, id).Scan(&svc.ID, &svc.BusinessID, &svc.Name, &svc.DurationMins, &svc.PriceCents, &svc.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Service{}, ErrNotFound
	}
	return svc, err
}

// ListBlockingAppointments returns the provider's appointments in a
// blocking state whose [start, end) intersects [from, to), ordered by
// start time.
func (s *PostgresStore) ListBlockingAppointments(ctx context.Context, providerID string, from, to time.Time) ([]model.Appointment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, business_id::text, provider_id::text, service_id::text,
			client_name, client_email, COALESCE(client_phone, ''), COALESCE(notes, ''),
			start_time, end_time, status, cancelled_at, COALESCE(cancel_reason, ''), created_at
		FROM appointments
		WHERE provider_id = $1
			AND status = ANY($2)
			AND start_time < $4
			AND end_time > $3
		ORDER BY start_time ASC
	`, providerID, blockingStatusStrings(), from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// Book performs the conflict check and insert as one atomic unit. The
// provider row is locked FOR UPDATE for the duration of both steps, so
// two concurrent bookings for the same provider serialize; the table's
// exclusion constraint backstops the lock. Returns ErrConflict and
// writes nothing when a blocking appointment overlaps.
func (s *PostgresStore) Book(ctx context.Context, appt *model.Appointment) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var lockedID string
	err = tx.QueryRow(ctx, `
		SELECT id::text FROM providers WHERE id = $1 FOR UPDATE
	`, appt.ProviderID).Scan(&lockedID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	var taken bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE provider_id = $1
				AND status = ANY($2)
				AND start_time < $4
				AND end_time > $3
		)
	`, appt.ProviderID, blockingStatusStrings(), appt.Start, appt.End).Scan(&taken)
	if err != nil {
		return err
	}
	if taken {
		return ErrConflict
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO appointments
			(id, business_id, provider_id, service_id, client_name, client_email, client_phone, notes, start_time, end_time, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at
	`, appt.ID, appt.BusinessID, appt.ProviderID, appt.ServiceID,
		appt.ClientName, appt.ClientEmail, appt.ClientPhone, appt.Notes,
		appt.Start, appt.End, string(appt.Status)).Scan(&appt.CreatedAt)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(appointmentEventPayload(appt))
	if err != nil {
		return err
	}
	if err := s.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     outbox.EventAppointmentBooked,
		Payload:       payload,
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) GetAppointment(ctx context.Context, id string) (model.Appointment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, business_id::text, provider_id::text, service_id::text,
			client_name, client_email, COALESCE(client_phone, ''), COALESCE(notes, ''),
			start_time, end_time, status, cancelled_at, COALESCE(cancel_reason, ''), created_at
		FROM appointments
		WHERE id = $1
	`, id)
	if err != nil {
		return model.Appointment{}, err
	}
	defer rows.Close()

	appts, err := scanAppointments(rows)
	if err != nil {
		return model.Appointment{}, err
	}
	if len(appts) == 0 {
		return model.Appointment{}, ErrNotFound
	}
	return appts[0], nil
}

func (s *PostgresStore) ListAppointments(ctx context.Context, providerID string, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, business_id::text, provider_id::text, service_id::text,
			client_name, client_email, COALESCE(client_phone, ''), COALESCE(notes, ''),
			start_time, end_time, status, cancelled_at, COALESCE(cancel_reason, ''), created_at
		FROM appointments
		WHERE provider_id = $1
		ORDER BY start_time DESC
		LIMIT $2
	`, providerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// UpdateStatus transitions an appointment from one lifecycle state to
// another. The update is conditional on the current status, so a
// concurrent transition makes this call fail with ErrConflict instead
// of clobbering it. The matching lifecycle event is written to the
// outbox in the same transaction.
func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, from, to model.AppointmentStatus, reason string) (model.Appointment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var cancelledAt *time.Time
	if to == model.StatusCancelled {
		now := time.Now().UTC()
		cancelledAt = &now
	}

	tag, err := tx.Exec(ctx, `
		UPDATE appointments
		SET status = $3,
			cancelled_at = COALESCE($4, cancelled_at),
			cancel_reason = CASE WHEN $5 <> '' THEN $5 ELSE cancel_reason END
		WHERE id = $1 AND status = $2
	`, id, string(from), string(to), cancelledAt, reason)
	if err != nil {
		return model.Appointment{}, err
	}
	if tag.RowsAffected() == 0 {
		// Row exists but its status moved under us, or the id is bogus.
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1)`, id).Scan(&exists); err != nil {
			return model.Appointment{}, err
		}
		if !exists {
			return model.Appointment{}, ErrNotFound
		}
		return model.Appointment{}, ErrConflict
	}

	rows, err := tx.Query(ctx, `
		SELECT id::text, business_id::text, provider_id::text, service_id::text,
			client_name, client_email, COALESCE(client_phone, ''), COALESCE(notes, ''),
			start_time, end_time, status, cancelled_at, COALESCE(cancel_reason, ''), created_at
		FROM appointments
		WHERE id = $1
	`, id)
	if err != nil {
		return model.Appointment{}, err
	}
	appts, err := scanAppointments(rows)
	rows.Close()
	if err != nil {
		return model.Appointment{}, err
	}
	if len(appts) == 0 {
		return model.Appointment{}, ErrNotFound
	}
	appt := appts[0]

	eventType := outbox.EventAppointmentStatusChanged
	if to == model.StatusCancelled {
		eventType = outbox.EventAppointmentCancelled
	}
	payload, err := json.Marshal(statusEventPayload(&appt, from, reason))
	if err != nil {
		return model.Appointment{}, err
	}
	if err := s.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     eventType,
		Payload:       payload,
	}); err != nil {
		return model.Appointment{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

func blockingStatusStrings() []string {
	out := make([]string, 0, len(model.BlockingStatuses))
	for _, st := range model.BlockingStatuses {
		out = append(out, string(st))
	}
	return out
}

func scanAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	var appts []model.Appointment
	for rows.Next() {
		var a model.Appointment
		var status string
		var cancelledAt *time.Time
		if err := rows.Scan(
			&a.ID, &a.BusinessID, &a.ProviderID, &a.ServiceID,
			&a.ClientName, &a.ClientEmail, &a.ClientPhone, &a.Notes,
			&a.Start, &a.End, &status, &cancelledAt, &a.CancelReason, &a.CreatedAt,
		); err != nil {
			return nil, err
		}
		a.Status = model.AppointmentStatus(status)
		a.CancelledAt = cancelledAt
		appts = append(appts, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

func appointmentEventPayload(appt *model.Appointment) map[string]any {
	return map[string]any{
		"appointment_id": appt.ID,
		"business_id":    appt.BusinessID,
		"provider_id":    appt.ProviderID,
		"service_id":     appt.ServiceID,
		"client_email":   appt.ClientEmail,
		"start_time":     appt.Start.UTC().Format(time.RFC3339),
		"end_time":       appt.End.UTC().Format(time.RFC3339),
		"status":         string(appt.Status),
	}
}

func statusEventPayload(appt *model.Appointment, from model.AppointmentStatus, reason string) map[string]any {
	payload := appointmentEventPayload(appt)
	payload["previous_status"] = string(from)
	if reason != "" {
		payload["reason"] = reason
	}
	if appt.CancelledAt != nil {
		payload["cancelled_at"] = appt.CancelledAt.UTC().Format(time.RFC3339)
	}
	return payload
}
