// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eventhall/registrar/internal/model"
	"github.com/eventhall/registrar/internal/service"
)

// Handler holds all HTTP handlers for the registration API.
type Handler struct {
	registrations *service.RegistrationService
	attendance    *service.AttendanceService
}

// New constructs a Handler.
func New(registrations *service.RegistrationService, attendance *service.AttendanceService) *Handler {
	return &Handler{registrations: registrations, attendance: attendance}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// writeServiceError maps domain errors onto HTTP statuses:
// not-found → 404, state-conflict → 409, policy-violation → 400,
// authorization → 403.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrEventNotFound),
		errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrRegistrationNotFound),
		errors.Is(err, service.ErrAttendanceNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrAlreadyRegistered),
		errors.Is(err, service.ErrPreviouslyCancelled),
		errors.Is(err, service.ErrAlreadyCancelled),
		errors.Is(err, service.ErrDuplicateAttendance):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrEventUnavailable),
		errors.Is(err, service.ErrRegistrationClosed),
		errors.Is(err, service.ErrAttendanceDisabled),
		errors.Is(err, service.ErrNotRegistered):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotAuthorized):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// ─── Registration handlers ────────────────────────────────────────────────────

// Register handles POST /events/{id}/register
// The request body, if any, is stored verbatim as the registration's
// attendee-supplied data.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "id")
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	var data json.RawMessage
	if len(body) > 0 {
		if !json.Valid(body) {
			writeError(w, http.StatusBadRequest, "registration data must be valid JSON")
			return
		}
		data = body
	}

	reg, err := h.registrations.Register(r.Context(), eventID, actor.ID, data)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	message := "registration successful"
	if reg.Status == model.StatusWaitlisted {
		message = fmt.Sprintf("you have been added to the waiting list at position %d", *reg.QueuePosition)
	}
	writeJSON(w, http.StatusCreated, model.RegisterResponse{Message: message, Registration: reg})
}

// CancelRegistration handles DELETE /registrations/{id}
// Non-admin actors may only cancel their own registration.
func (h *Handler) CancelRegistration(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	if err := h.registrations.Cancel(r.Context(), id, actor); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "registration cancelled successfully"})
}

// ListRegistrations handles GET /events/{id}/registrations
func (h *Handler) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	regs, err := h.registrations.ListByEvent(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if regs == nil {
		regs = []model.RegistrationDetail{}
	}
	writeJSON(w, http.StatusOK, regs)
}

// ListMyRegistrations handles GET /registrations/my
func (h *Handler) ListMyRegistrations(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	regs, err := h.registrations.ListMine(r.Context(), actor.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if regs == nil {
		regs = []model.Registration{}
	}
	writeJSON(w, http.StatusOK, regs)
}

// ─── Attendance handlers ──────────────────────────────────────────────────────

// SessionAttendance handles GET /sessions/{id}/attendance
func (h *Handler) SessionAttendance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	sheet, err := h.attendance.SessionAttendance(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sheet)
}

// MarkAttendance handles POST /attendance
func (h *Handler) MarkAttendance(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req model.MarkAttendanceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.SessionID == "" || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "session_id and user_id are required")
		return
	}

	rec, err := h.attendance.Record(r.Context(), req.SessionID, req.UserID, actor.ID, req.Notes)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// RemoveAttendance handles DELETE /attendance/{id}
func (h *Handler) RemoveAttendance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.attendance.Remove(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "attendance record removed successfully"})
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
