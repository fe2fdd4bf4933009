package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditEvent records who did what, when. Events are accepted from untrusted
// callers, so missing fields are filled with safe defaults before storage.
type AuditEvent struct {
	ID      string                 `json:"id"`
	TS      time.Time              `json:"ts"`
	Actor   string                 `json:"actor"`
	Action  string                 `json:"action"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Normalize fills defaults for missing fields and returns the event
func (e AuditEvent) Normalize() AuditEvent {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.TS.IsZero() {
		e.TS = time.Now().UTC()
	}
	if e.Actor == "" {
		e.Actor = "admin"
	}
	if e.Action == "" {
		e.Action = "unknown"
	}
	return e
}
