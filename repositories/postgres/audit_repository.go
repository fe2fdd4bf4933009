package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/upb/site-control-plane/models"
)

// AuditRepository mirrors audit events into the audit_events table.
// The serial seq column preserves insertion order across restarts.
type AuditRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAuditRepository creates a new PostgreSQL audit repository
func NewAuditRepository(db *sql.DB, logger *zap.Logger) *AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Append stores one event
func (r *AuditRepository) Append(ctx context.Context, event models.AuditEvent) error {
	var details []byte
	if event.Details != nil {
		encoded, err := json.Marshal(event.Details)
		if err != nil {
			return fmt.Errorf("failed to encode audit details: %w", err)
		}
		details = encoded
	}

	query := `
		INSERT INTO audit_events (id, ts, actor, action, details)
		VALUES ($1, $2, $3, $4, $5)
	`

	if _, err := r.db.ExecContext(ctx, query,
		event.ID, event.TS, event.Actor, event.Action, details); err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// Load returns up to limit events in insertion order, most recent last
func (r *AuditRepository) Load(ctx context.Context, limit int) ([]models.AuditEvent, error) {
	query := `
		SELECT id, ts, actor, action, details
		FROM audit_events
		ORDER BY seq DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []models.AuditEvent
	for rows.Next() {
		var event models.AuditEvent
		var details sql.NullString
		if err := rows.Scan(&event.ID, &event.TS, &event.Actor, &event.Action, &details); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		if details.Valid {
			if err := json.Unmarshal([]byte(details.String), &event.Details); err != nil {
				return nil, fmt.Errorf("failed to decode audit details: %w", err)
			}
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit events: %w", err)
	}

	// Query returns newest first; reverse into insertion order.
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}

// Trim discards all but the most recent keep events
func (r *AuditRepository) Trim(ctx context.Context, keep int) error {
	query := `
		DELETE FROM audit_events
		WHERE seq NOT IN (
			SELECT seq FROM audit_events ORDER BY seq DESC LIMIT $1
		)
	`

	result, err := r.db.ExecContext(ctx, query, keep)
	if err != nil {
		return fmt.Errorf("failed to trim audit events: %w", err)
	}

	if deleted, err := result.RowsAffected(); err == nil && deleted > 0 {
		r.logger.Debug("trimmed audit events", zap.Int64("deleted", deleted))
	}
	return nil
}
