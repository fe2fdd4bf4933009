// Package file implements the repositories interfaces on top of JSON files.
// It is the default backend: a single-node deployment needs nothing more
// than a writable directory.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/upb/site-control-plane/models"
)

// StateRepository stores one snapshot file per session key.
type StateRepository struct {
	dir    string
	mu     sync.Mutex
	logger *zap.Logger
}

// NewStateRepository creates a file-backed state repository rooted at dir
func NewStateRepository(dir string, logger *zap.Logger) *StateRepository {
	return &StateRepository{
		dir:    dir,
		logger: logger,
	}
}

// Load reads the snapshot for key. A missing file means no state yet and
// returns (nil, nil).
func (r *StateRepository) Load(ctx context.Context, key string) (*models.SessionState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.statePath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var state models.SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to decode state file: %w", err)
	}
	state.EnsureMaps()
	return &state, nil
}

// Save writes the snapshot atomically: marshal, write to a temp file in the
// same directory, then rename over the previous snapshot.
func (r *StateRepository) Save(ctx context.Context, key string, state *models.SessionState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	path := r.statePath(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}

	r.logger.Debug("session state saved",
		zap.String("key", key),
		zap.Int("bytes", len(data)))
	return nil
}

func (r *StateRepository) statePath(key string) string {
	return filepath.Join(r.dir, fmt.Sprintf("state-%s.json", key))
}
