package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/osc-bridge/internal/audit"
)

// handleListRegistrations returns the registration history, newest first.
//
// Query parameters:
//   - action: defaults to entity_registered; "all" returns every action
//   - entity_type: switch, number or bridge
//   - entity_id: an entity unique id
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListRegistrations(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeUnavailable(w, "audit log not enabled")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
	}
	switch filter.Action {
	case "":
		filter.Action = audit.ActionEntityRegistered
	case "all":
		filter.Action = ""
	}

	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeBadRequest(w, "limit must be an integer")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		writeBadRequest(w, "offset must be an integer")
		return
	}

	result, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list registrations", "error", err)
		writeInternalError(w, "failed to list registrations")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
