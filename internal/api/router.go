package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			// WS ticket requires authentication - caller must hold a
			// valid token to request a ticket
			r.Post("/auth/ws-ticket", s.handleWSTicket)

			// Device registry endpoints
			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)
				r.Post("/", s.handleRegisterDevice)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetDevice)
					r.Patch("/", s.handleUpdateDevice)
					r.Delete("/", s.handleRemoveDevice)
					r.Put("/status", s.handleDeviceStatus)
					r.Post("/heartbeat", s.handleDeviceHeartbeat)
					r.Get("/session", s.handleDeviceActiveSession)
				})
			})

			// Session ledger endpoints
			r.Route("/sessions", func(r chi.Router) {
				r.Post("/", s.handleStartSession)
				r.Get("/{id}", s.handleGetSession)
				r.Post("/{id}/end", s.handleEndSession)
			})

			// Subscription ledger endpoints
			r.Route("/subscriptions", func(r chi.Router) {
				r.Post("/", s.handleSubscribe)
				r.Get("/{id}", s.handleGetSubscription)
				r.Post("/{id}/expire", s.handleExpireSubscription)
			})

			// Balance and withdrawal endpoints
			r.Get("/balances/{owner}", s.handleGetBalance)
			r.Post("/withdrawals", s.handleWithdraw)

			// Treasury administration (operator role enforced in handlers)
			r.Route("/treasury", func(r chi.Router) {
				r.Get("/", s.handleGetTreasury)
				r.Put("/reward", s.handleSetReward)
				r.Post("/fund", s.handleFund)
			})

			// Event journal (audit trail)
			r.Get("/events", s.handleListEvents)

			// WebSocket (auth via ticket, validated in handler)
			r.Get("/ws", s.handleWebSocket)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
