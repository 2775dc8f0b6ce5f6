package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/meterlease/meterlease-core/internal/balance"
	"github.com/meterlease/meterlease-core/internal/registry"
	"github.com/meterlease/meterlease-core/internal/session"
	"github.com/meterlease/meterlease-core/internal/subscription"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest      = "bad_request"
	ErrCodeNotFound        = "not_found"
	ErrCodeUnauthorized    = "unauthorised"
	ErrCodeForbidden       = "forbidden"
	ErrCodeConflict        = "conflict"
	ErrCodePaymentRequired = "payment_mismatch"
	ErrCodeBadGateway      = "transfer_failed"
	ErrCodeInternal        = "internal_error"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeForbidden writes a 403 error response.
func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, ErrCodeForbidden, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeLedgerError maps ledger sentinel errors to HTTP responses.
// Unknown errors become opaque 500s; the detail stays in the server log.
func (s *Server) writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrDeviceNotFound),
		errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, session.ErrNoActiveSession),
		errors.Is(err, subscription.ErrSubscriptionNotFound):
		writeNotFound(w, err.Error())

	case errors.Is(err, registry.ErrNotOwner),
		errors.Is(err, session.ErrNotParticipant),
		errors.Is(err, subscription.ErrNotOperator):
		writeForbidden(w, err.Error())

	case errors.Is(err, registry.ErrDeviceExists),
		errors.Is(err, registry.ErrDeviceInactive),
		errors.Is(err, session.ErrSessionExists),
		errors.Is(err, session.ErrSessionEnded),
		errors.Is(err, subscription.ErrNotYetExpired),
		errors.Is(err, subscription.ErrAlreadyExpired),
		errors.Is(err, balance.ErrNothingToWithdraw):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())

	case errors.Is(err, session.ErrPaymentMismatch),
		errors.Is(err, subscription.ErrPaymentMismatch):
		writeError(w, http.StatusPaymentRequired, ErrCodePaymentRequired, err.Error())

	case errors.Is(err, registry.ErrInvalidDevice),
		errors.Is(err, registry.ErrInvalidFee),
		errors.Is(err, subscription.ErrInvalidPlan),
		errors.Is(err, balance.ErrInvalidAmount),
		errors.Is(err, balance.ErrOverflow):
		writeBadRequest(w, err.Error())

	case errors.Is(err, balance.ErrTransferFailed):
		writeError(w, http.StatusBadGateway, ErrCodeBadGateway, err.Error())

	default:
		s.logger.Error("unhandled ledger error", "error", err)
		writeInternalError(w, "internal server error")
	}
}
