package api

import (
	"net/http"
	"strconv"

	"github.com/meterlease/meterlease-core/internal/event"
)

// handleListEvents returns journal events matching the query filters.
//
// Query parameters:
//   - type: filter by event type (e.g. "session_started")
//   - entity_type: filter by entity type (device, session, subscription, balance, treasury)
//   - entity_id: filter by specific entity ID
//   - caller: filter by caller account
//   - limit: maximum results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := event.Filter{
		Type:       event.Type(q.Get("type")),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
		Caller:     q.Get("caller"),
	}

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}

	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			writeBadRequest(w, "offset must be a non-negative integer")
			return
		}
		filter.Offset = offset
	}

	result, err := s.journal.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list events", "error", err)
		writeInternalError(w, "failed to list events")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
