package repositories

import (
	"context"

	"github.com/upb/site-control-plane/models"
)

// StateRepository persists session state snapshots keyed by session key.
type StateRepository interface {
	// Load returns the snapshot for key, or (nil, nil) when none exists yet
	Load(ctx context.Context, key string) (*models.SessionState, error)

	// Save durably replaces the snapshot for key
	Save(ctx context.Context, key string, state *models.SessionState) error
}

// AuditRepository mirrors the in-memory audit ring to durable storage.
type AuditRepository interface {
	// Append stores one event
	Append(ctx context.Context, event models.AuditEvent) error

	// Load returns up to limit events in insertion order, most recent last
	Load(ctx context.Context, limit int) ([]models.AuditEvent, error)

	// Trim discards all but the most recent keep events
	Trim(ctx context.Context, keep int) error
}
