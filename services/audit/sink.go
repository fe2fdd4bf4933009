// Package audit implements the append-only audit sink: a bounded in-memory
// ring of recent events, mirrored best-effort to a durable repository.
package audit

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/upb/site-control-plane/models"
	"github.com/upb/site-control-plane/repositories"
)

const (
	// DefaultCapacity is the ring size when none is configured
	DefaultCapacity = 2000

	// DefaultListLimit is returned when no limit is requested
	DefaultListLimit = 100

	// MaxListLimit caps a single List call
	MaxListLimit = 500
)

// Sink is the audit event ring. Appends never fail from the caller's point
// of view: events with missing fields are normalized, the oldest event is
// dropped at capacity, and repository errors are logged and swallowed.
type Sink struct {
	mu       sync.Mutex
	events   []models.AuditEvent
	capacity int
	repo     repositories.AuditRepository
	logger   *zap.Logger
}

// NewSink creates a sink with the given capacity. A nil repo disables the
// durable mirror; existing events are preloaded from the repo when present.
func NewSink(capacity int, repo repositories.AuditRepository, logger *zap.Logger) *Sink {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	s := &Sink{
		events:   make([]models.AuditEvent, 0, capacity),
		capacity: capacity,
		repo:     repo,
		logger:   logger,
	}

	if repo != nil {
		events, err := repo.Load(context.Background(), capacity)
		if err != nil {
			logger.Warn("failed to preload audit events", zap.Error(err))
		} else {
			s.events = append(s.events, events...)
		}
	}

	return s
}

// Append normalizes and records the event, returning the stored form.
// The durable mirror is best effort and never blocks or undoes the append.
func (s *Sink) Append(ctx context.Context, event models.AuditEvent) models.AuditEvent {
	event = event.Normalize()

	s.mu.Lock()
	s.events = append(s.events, event)
	if len(s.events) > s.capacity {
		s.events = s.events[len(s.events)-s.capacity:]
	}
	s.mu.Unlock()

	if s.repo != nil {
		if err := s.repo.Append(ctx, event); err != nil {
			s.logger.Warn("failed to mirror audit event",
				zap.String("event_id", event.ID),
				zap.Error(err))
		} else if err := s.repo.Trim(ctx, s.capacity); err != nil {
			s.logger.Warn("failed to trim audit mirror", zap.Error(err))
		}
	}

	return event
}

// List returns up to limit events in insertion order, most recent last.
// Zero or negative limits fall back to the default; limits above the cap
// are clamped.
func (s *Sink) List(limit int) []models.AuditEvent {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := len(s.events) - limit
	if start < 0 {
		start = 0
	}
	out := make([]models.AuditEvent, len(s.events)-start)
	copy(out, s.events[start:])
	return out
}

// Len returns the current number of buffered events
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}
