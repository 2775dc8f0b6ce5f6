package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meterlease/meterlease-core/internal/registry"
)

// handleListDevices returns the devices registered by an owner.
// The owner query parameter defaults to the authenticated caller.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		owner = callerFrom(r)
	}

	devices, err := s.registry.ListByOwner(r.Context(), owner)
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleRegisterDevice registers a new device owned by the caller.
func (s *Server) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	var input registry.RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	device, err := s.registry.Register(r.Context(), callerFrom(r), input)
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, device)
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	device, err := s.registry.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, device)
}

// handleUpdateDevice applies a partial metadata/pricing update to a device.
// Only the owner may update; absent fields are left unchanged.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var input registry.UpdateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	if err := s.registry.UpdateInfo(r.Context(), callerFrom(r), id, input); err != nil {
		s.writeLedgerError(w, err)
		return
	}

	device, err := s.registry.Get(r.Context(), id)
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, device)
}

// handleRemoveDevice soft-deletes a device. Only the owner may remove.
func (s *Server) handleRemoveDevice(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Remove(r.Context(), callerFrom(r), chi.URLParam(r, "id")); err != nil {
		s.writeLedgerError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// deviceStatusRequest is the body for PUT /devices/{id}/status.
type deviceStatusRequest struct {
	Active bool `json:"active"`
}

// handleDeviceStatus suspends or reactivates a device. The owner or the
// platform operator may change status.
func (s *Server) handleDeviceStatus(w http.ResponseWriter, r *http.Request) {
	var req deviceStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	if err := s.registry.UpdateStatus(r.Context(), callerFrom(r), chi.URLParam(r, "id"), req.Active); err != nil {
		s.writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":     chi.URLParam(r, "id"),
		"active": req.Active,
	})
}

// handleDeviceHeartbeat records a liveness report for an active device.
func (s *Server) handleDeviceHeartbeat(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Heartbeat(r.Context(), callerFrom(r), chi.URLParam(r, "id")); err != nil {
		s.writeLedgerError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleDeviceActiveSession returns the device's active session, if any.
func (s *Server) handleDeviceActiveSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.ActiveSessionOfDevice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sess)
}
