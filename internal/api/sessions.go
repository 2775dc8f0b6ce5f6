package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// startSessionRequest is the body for POST /sessions.
type startSessionRequest struct {
	DeviceID string `json:"device_id"`
	Payment  int64  `json:"payment"`
}

// handleStartSession opens a metered session on a device. The payment must
// equal the device's session fee exactly; it is held in escrow until the
// session ends.
func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.DeviceID == "" {
		writeBadRequest(w, "device_id is required")
		return
	}

	sess, err := s.sessions.Start(r.Context(), callerFrom(r), req.DeviceID, req.Payment)
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, sess)
}

// handleGetSession returns a single session by ID.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

// handleEndSession ends an active session and releases the escrowed fee to
// the device owner. Only the session user or the device owner may end it.
func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.End(r.Context(), callerFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sess)
}
