package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleGetBalance returns the withdrawable balance of an account.
// Accounts with no ledger entries read as zero.
func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")

	amount, err := s.balances.Balance(r.Context(), owner)
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"owner":   owner,
		"balance": amount,
	})
}

// handleWithdraw pays out the caller's entire balance through the
// settlement gateway. A rejected payout leaves the balance untouched.
func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r)

	amount, err := s.balances.Withdraw(r.Context(), caller)
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"owner":  caller,
		"amount": amount,
	})
}

// handleGetTreasury returns the platform treasury state: the registration
// reward, reward pool, and lifetime deposit/withdrawal totals.
func (s *Server) handleGetTreasury(w http.ResponseWriter, r *http.Request) {
	treasury, err := s.balances.Treasury(r.Context())
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, treasury)
}

// treasuryAmountRequest is the body for treasury administration endpoints.
type treasuryAmountRequest struct {
	Amount int64 `json:"amount"`
}

// handleSetReward sets the per-registration reward amount. Operator only;
// the operator check lives in the subscription service.
func (s *Server) handleSetReward(w http.ResponseWriter, r *http.Request) {
	var req treasuryAmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	if err := s.subs.SetRegistrationReward(r.Context(), callerFrom(r), req.Amount); err != nil {
		s.writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"registration_reward": req.Amount,
	})
}

// handleFund adds operator funds to the reward pool.
func (s *Server) handleFund(w http.ResponseWriter, r *http.Request) {
	var req treasuryAmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	if err := s.subs.Fund(r.Context(), callerFrom(r), req.Amount); err != nil {
		s.writeLedgerError(w, err)
		return
	}

	treasury, err := s.balances.Treasury(r.Context())
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, treasury)
}
