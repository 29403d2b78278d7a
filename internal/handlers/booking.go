// Package handlers is the HTTP boundary over the booking engine. It
// translates the engine's error taxonomy into status codes: validation
// failures are 400/404, lost races are 409, everything else is a 500.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/celi21/feattreatmentschedulingapp/internal/booking"
	"github.com/celi21/feattreatmentschedulingapp/internal/cache"
	"github.com/celi21/feattreatmentschedulingapp/internal/model"
)

type BookingHandler struct {
	engine     *booking.Engine
	availCache *cache.AvailabilityCache
	logger     *slog.Logger
}

func NewBookingHandler(engine *booking.Engine, availCache *cache.AvailabilityCache, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{engine: engine, availCache: availCache, logger: logger}
}

type slotItem struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type availabilityResponse struct {
	Slots []slotItem `json:"slots"`
}

type createAppointmentRequest struct {
	ServiceID   string `json:"service_id"`
	ProviderID  string `json:"provider_id"`
	Start       string `json:"start"`
	ClientName  string `json:"client_name"`
	ClientEmail string `json:"client_email"`
	ClientPhone string `json:"client_phone,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

type appointmentResponse struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Start       string `json:"start"`
	End         string `json:"end"`
	ProviderID  string `json:"provider_id"`
	ServiceID   string `json:"service_id"`
	CancelledAt string `json:"cancelled_at,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// Appointments dispatches /api/v1/appointments by method: GET lists
// appointments for staff, POST books one.
func (h *BookingHandler) Appointments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.List(w, r)
	case http.MethodPost:
		h.Create(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// Availability handles GET /api/v1/availability.
func (h *BookingHandler) Availability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	providerID := strings.TrimSpace(r.URL.Query().Get("provider_id"))
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	serviceID := strings.TrimSpace(r.URL.Query().Get("service_id"))
	if providerID == "" || date == "" {
		writeError(w, http.StatusBadRequest, "provider_id and date are required")
		return
	}

	ctx := r.Context()
	if payload, ok := h.availCache.Get(ctx, providerID, serviceID, date); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(payload)
		return
	}

	slots, err := h.engine.Availability(ctx, providerID, serviceID, date)
	if err != nil {
		h.writeEngineError(w, err, "availability lookup failed")
		return
	}

	resp := availabilityResponse{Slots: make([]slotItem, 0, len(slots))}
	for _, s := range slots {
		resp.Slots = append(resp.Slots, slotItem{
			Start: s.Start.UTC().Format(time.RFC3339),
			End:   s.End.UTC().Format(time.RFC3339),
		})
	}
	payload, err := json.Marshal(resp)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build response")
		return
	}
	h.availCache.Set(ctx, providerID, serviceID, date, payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

// Create handles POST /api/v1/appointments.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	appt, err := h.engine.Book(r.Context(), booking.BookingRequest{
		ProviderID:  req.ProviderID,
		ServiceID:   req.ServiceID,
		Start:       req.Start,
		ClientName:  req.ClientName,
		ClientEmail: req.ClientEmail,
		ClientPhone: req.ClientPhone,
		Notes:       req.Notes,
	})
	if err != nil {
		h.writeEngineError(w, err, "booking failed")
		return
	}

	h.availCache.InvalidateProvider(r.Context(), appt.ProviderID)
	writeJSON(w, http.StatusCreated, toAppointmentResponse(*appt))
}

// List handles GET /api/v1/appointments for the staff surface.
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	providerID := strings.TrimSpace(r.URL.Query().Get("provider_id"))
	if providerID == "" {
		writeError(w, http.StatusBadRequest, "provider_id is required")
		return
	}
	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	appts, err := h.engine.List(r.Context(), providerID, limit)
	if err != nil {
		h.writeEngineError(w, err, "listing appointments failed")
		return
	}

	items := make([]appointmentResponse, 0, len(appts))
	for _, a := range appts {
		items = append(items, toAppointmentResponse(a))
	}
	writeJSON(w, http.StatusOK, items)
}

type statusRequest struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
}

// UpdateStatus handles POST /api/v1/appointments/status.
func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" || strings.TrimSpace(req.Status) == "" {
		writeError(w, http.StatusBadRequest, "appointment_id and status are required")
		return
	}

	appt, err := h.engine.Transition(r.Context(), req.AppointmentID, model.AppointmentStatus(strings.TrimSpace(req.Status)))
	if err != nil {
		h.writeEngineError(w, err, "status update failed")
		return
	}

	h.availCache.InvalidateProvider(r.Context(), appt.ProviderID)
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

type cancelRequest struct {
	AppointmentID string `json:"appointment_id"`
	Reason        string `json:"reason,omitempty"`
}

// Cancel handles POST /api/v1/appointments/cancel.
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		writeError(w, http.StatusBadRequest, "appointment_id is required")
		return
	}

	appt, err := h.engine.Cancel(r.Context(), req.AppointmentID, req.Reason)
	if err != nil {
		h.writeEngineError(w, err, "cancellation failed")
		return
	}

	h.availCache.InvalidateProvider(r.Context(), appt.ProviderID)
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *BookingHandler) writeEngineError(w http.ResponseWriter, err error, logMsg string) {
	switch {
	case booking.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	case booking.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case booking.IsConflict(err):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error(logMsg, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func toAppointmentResponse(a model.Appointment) appointmentResponse {
	resp := appointmentResponse{
		ID:         a.ID,
		Status:     string(a.Status),
		Start:      a.Start.UTC().Format(time.RFC3339),
		End:        a.End.UTC().Format(time.RFC3339),
		ProviderID: a.ProviderID,
		ServiceID:  a.ServiceID,
	}
	if a.CancelledAt != nil {
		resp.CancelledAt = a.CancelledAt.UTC().Format(time.RFC3339)
	}
	if !a.CreatedAt.IsZero() {
		resp.CreatedAt = a.CreatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
