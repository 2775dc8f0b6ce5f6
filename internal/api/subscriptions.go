package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/meterlease/meterlease-core/internal/subscription"
)

// subscribeRequest is the body for POST /subscriptions.
type subscribeRequest struct {
	DeviceID string `json:"device_id"`
	Plan     string `json:"plan"`
	Payment  int64  `json:"payment"`
}

// handleSubscribe creates a flat-rate subscription to a device. The payment
// must equal fee_per_day times the plan length exactly and is credited to
// the device owner up front.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.DeviceID == "" {
		writeBadRequest(w, "device_id is required")
		return
	}

	plan, err := subscription.ParsePlan(req.Plan)
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}

	sub, err := s.subs.Subscribe(r.Context(), callerFrom(r), req.DeviceID, plan, req.Payment)
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, sub)
}

// handleGetSubscription returns a single subscription by ID.
func (s *Server) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	id, ok := subscriptionID(w, r)
	if !ok {
		return
	}

	sub, err := s.subs.Get(r.Context(), id)
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sub)
}

// handleExpireSubscription marks a subscription expired once its end time
// has passed. Any caller may trigger expiry.
func (s *Server) handleExpireSubscription(w http.ResponseWriter, r *http.Request) {
	id, ok := subscriptionID(w, r)
	if !ok {
		return
	}

	if err := s.subs.Expire(r.Context(), callerFrom(r), id); err != nil {
		s.writeLedgerError(w, err)
		return
	}

	sub, err := s.subs.Get(r.Context(), id)
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sub)
}

// subscriptionID parses the numeric subscription ID from the URL. On parse
// failure it writes a 400 and returns ok=false.
func subscriptionID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeBadRequest(w, "subscription id must be numeric")
		return 0, false
	}
	return id, true
}
