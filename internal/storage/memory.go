package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/celi21/feattreatmentschedulingapp/internal/model"
)

// MemoryStore is an in-process implementation of the catalog and
// appointment stores. It backs dev mode (no DATABASE_URL configured)
// and the test suite. A single mutex held across the overlap check and
// the append gives the same atomicity the Postgres store gets from its
// provider row lock.
type MemoryStore struct {
	mu           sync.Mutex
	businesses   map[string]model.Business
	providers    map[string]model.Provider
	services     map[string]model.Service
	appointments map[string]model.Appointment
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		businesses:   map[string]model.Business{},
		providers:    map[string]model.Provider{},
		services:     map[string]model.Service{},
		appointments: map[string]model.Appointment{},
	}
}

func (s *MemoryStore) AddBusiness(b model.Business) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.businesses[b.ID] = b
}

func (s *MemoryStore) AddProvider(p model.Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers[p.ID] = p
}

func (s *MemoryStore) AddService(svc model.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[svc.ID] = svc
}

func (s *MemoryStore) GetBusiness(_ context.Context, id string) (model.Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.businesses[id]
	if !ok {
		return model.Business{}, ErrNotFound
	}
	return b, nil
}

func (s *MemoryStore) GetProvider(_ context.Context, id string) (model.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.providers[id]
	if !ok {
		return model.Provider{}, ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) GetService(_ context.Context, id string) (model.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.services[id]
	if !ok {
		return model.Service{}, ErrNotFound
	}
	return svc, nil
}

func (s *MemoryStore) ListBlockingAppointments(_ context.Context, providerID string, from, to time.Time) ([]model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Appointment
	for _, a := range s.appointments {
		if a.ProviderID != providerID || !a.Status.Blocks() {
			continue
		}
		if model.Overlaps(a.Start, a.End, from, to) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (s *MemoryStore) Book(_ context.Context, appt *model.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.providers[appt.ProviderID]; !ok {
		return ErrNotFound
	}
	for _, existing := range s.appointments {
		if existing.ProviderID != appt.ProviderID || !existing.Status.Blocks() {
			continue
		}
		if model.Overlaps(existing.Start, existing.End, appt.Start, appt.End) {
			return ErrConflict
		}
	}
	appt.CreatedAt = time.Now().UTC()
	s.appointments[appt.ID] = *appt
	return nil
}

func (s *MemoryStore) GetAppointment(_ context.Context, id string) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return model.Appointment{}, ErrNotFound
	}
	return a, nil
}

func (s *MemoryStore) ListAppointments(_ context.Context, providerID string, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Appointment
	for _, a := range s.appointments {
		if a.ProviderID == providerID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.After(out[j].Start) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id string, from, to model.AppointmentStatus, reason string) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return model.Appointment{}, ErrNotFound
	}
	if a.Status != from {
		return model.Appointment{}, ErrConflict
	}
	a.Status = to
	if to == model.StatusCancelled {
		now := time.Now().UTC()
		a.CancelledAt = &now
		if reason != "" {
			a.CancelReason = reason
		}
	}
	s.appointments[id] = a
	return a, nil
}
