package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/upb/site-control-plane/app"
	"github.com/upb/site-control-plane/models"
	"github.com/upb/site-control-plane/utils"
)

// LogAuditEventHandler accepts an externally submitted audit event.
// All fields are optional; missing ones are defaulted by the sink.
func LogAuditEventHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var event models.AuditEvent
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			_ = utils.WriteBadRequest(w, "invalid request body", nil)
			return
		}

		stored := deps.AuditSink.Append(r.Context(), event)
		_ = utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"ok": true,
			"id": stored.ID,
		})
	}
}

// ListAuditEventsHandler returns recent audit events, most recent last.
// An absent limit falls back to the sink default; an explicit limit is
// clamped to at least one entry, the upper bound is enforced by the sink.
func ListAuditEventsHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				_ = utils.WriteBadRequest(w, "limit must be an integer", nil)
				return
			}
			if parsed < 1 {
				parsed = 1
			}
			limit = parsed
		}

		events := deps.AuditSink.List(limit)
		_ = utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"ok":     true,
			"events": events,
		})
	}
}
