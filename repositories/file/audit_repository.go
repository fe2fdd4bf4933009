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

// AuditRepository mirrors the audit ring into a single JSON file.
type AuditRepository struct {
	path   string
	mu     sync.Mutex
	logger *zap.Logger
}

// NewAuditRepository creates a file-backed audit repository in dir
func NewAuditRepository(dir string, logger *zap.Logger) *AuditRepository {
	return &AuditRepository{
		path:   filepath.Join(dir, "audit.json"),
		logger: logger,
	}
}

// Append reads the current event list, appends, and rewrites atomically
func (r *AuditRepository) Append(ctx context.Context, event models.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	events, err := r.read()
	if err != nil {
		return err
	}
	return r.write(append(events, event))
}

// Load returns up to limit events, most recent last
func (r *AuditRepository) Load(ctx context.Context, limit int) ([]models.AuditEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	events, err := r.read()
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	return events, nil
}

// Trim drops all but the most recent keep events
func (r *AuditRepository) Trim(ctx context.Context, keep int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	events, err := r.read()
	if err != nil {
		return err
	}
	if keep < 0 || len(events) <= keep {
		return nil
	}
	return r.write(events[len(events)-keep:])
}

func (r *AuditRepository) read() ([]models.AuditEvent, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read audit file: %w", err)
	}
	var events []models.AuditEvent
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("failed to decode audit file: %w", err)
	}
	return events, nil
}

func (r *AuditRepository) write(events []models.AuditEvent) error {
	data, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("failed to encode audit events: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("failed to create audit directory: %w", err)
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write audit file: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("failed to replace audit file: %w", err)
	}
	return nil
}
