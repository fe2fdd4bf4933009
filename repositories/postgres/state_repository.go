package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/upb/site-control-plane/models"
)

// StateRepository stores session state snapshots as keyed JSONB rows.
type StateRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStateRepository creates a new PostgreSQL state repository
func NewStateRepository(db *sql.DB, logger *zap.Logger) *StateRepository {
	return &StateRepository{
		db:     db,
		logger: logger,
	}
}

// Load returns the snapshot for key, or (nil, nil) when no row exists
func (r *StateRepository) Load(ctx context.Context, key string) (*models.SessionState, error) {
	query := `SELECT snapshot FROM control_plane_state WHERE key = $1`

	var raw []byte
	err := r.db.QueryRowContext(ctx, query, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session state: %w", err)
	}

	var state models.SessionState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("failed to decode session state: %w", err)
	}
	state.EnsureMaps()
	return &state, nil
}

// Save upserts the snapshot for key
func (r *StateRepository) Save(ctx context.Context, key string, state *models.SessionState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode session state: %w", err)
	}

	query := `
		INSERT INTO control_plane_state (key, snapshot, updated_at)
		VALUES ($1, $2, CURRENT_TIMESTAMP)
		ON CONFLICT (key) DO UPDATE
		SET snapshot = EXCLUDED.snapshot, updated_at = CURRENT_TIMESTAMP
	`

	if _, err := r.db.ExecContext(ctx, query, key, raw); err != nil {
		return fmt.Errorf("failed to save session state: %w", err)
	}

	r.logger.Debug("session state saved",
		zap.String("key", key),
		zap.Int("bytes", len(raw)))
	return nil
}
