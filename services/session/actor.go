// Package session implements the session actor: the single authoritative
// owner of one logical session's durable state. Every operation is
// serialized behind the actor mutex, so invariants hold without any
// cross-goroutine coordination elsewhere.
package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/upb/site-control-plane/models"
	"github.com/upb/site-control-plane/repositories"
	"github.com/upb/site-control-plane/services"
	"github.com/upb/site-control-plane/services/audit"
	"github.com/upb/site-control-plane/services/patchguard"
	"github.com/upb/site-control-plane/services/ratelimit"
)

// Config holds the per-actor policy knobs
type Config struct {
	// Allowlist is the set of override path prefixes patches may touch
	Allowlist []string

	// RateLimitThreshold is the max accepted attempts per actor per window.
	// Zero disables rate limiting.
	RateLimitThreshold int

	// RateLimitWindow is the fixed counting window
	RateLimitWindow time.Duration

	// IdempotencyTTL expires cached results after this duration. Zero keeps
	// records forever.
	IdempotencyTTL time.Duration

	// IdempotencyMaxEntries bounds the cache size, evicting oldest records.
	// Zero means unbounded.
	IdempotencyMaxEntries int
}

// Actor owns one logical session. All durable state lives behind the mutex;
// handlers never touch it directly.
type Actor struct {
	key      string
	cfg      Config
	mu       sync.Mutex
	state    *models.SessionState
	states   repositories.StateRepository
	limiter  *ratelimit.Limiter
	sink     *audit.Sink
	sessions map[string]Conn
	logger   *zap.Logger
}

// NewActor loads the session's durable state and returns a ready actor.
// The load is deliberately blocking: the actor never accepts a request
// before its state is in memory.
func NewActor(ctx context.Context, key string, cfg Config, states repositories.StateRepository, sink *audit.Sink, logger *zap.Logger) (*Actor, error) {
	state, err := states.Load(ctx, key)
	if err != nil {
		return nil, services.WrapInternal("failed to load session state", err)
	}
	if state == nil {
		state = models.NewSessionState()
	}
	state.EnsureMaps()

	logger.Info("session actor ready",
		zap.String("key", key),
		zap.Bool("has_task", state.Task != nil),
		zap.Int("idempotency_records", len(state.Idempotency)))

	return &Actor{
		key:      key,
		cfg:      cfg,
		state:    state,
		states:   states,
		limiter:  ratelimit.New(cfg.RateLimitThreshold, cfg.RateLimitWindow),
		sink:     sink,
		sessions: make(map[string]Conn),
		logger:   logger.With(zap.String("session_key", key)),
	}, nil
}

// PatchApply validates, rate-limits and applies a patch request. Replays of
// a previously seen (actor, idempotencyKey) pair return the cached result
// verbatim without touching the override store.
func (a *Actor) PatchApply(ctx context.Context, req models.PatchRequest) (*models.PatchResult, error) {
	if req.Actor == "" {
		return nil, services.ErrMissingActor
	}
	if req.IdempotencyKey == "" {
		return nil, services.ErrMissingIdemKey
	}
	if err := patchguard.ValidateOps(req.Ops, a.cfg.Allowlist); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now().UTC()

	counter, ok := a.state.RateCounters[req.Actor]
	if !ok {
		counter = &models.RateCounter{}
		a.state.RateCounters[req.Actor] = counter
	}
	admission := a.limiter.Admit(counter, now)
	if !admission.Allowed {
		a.logger.Warn("patch rejected by rate limit",
			zap.String("actor", req.Actor),
			zap.Time("reset_at", admission.ResetAt))
		return nil, services.NewDomainError(services.ErrorTypeRateLimit,
			"rate limit exceeded", nil).
			WithDetail("actor", req.Actor).
			WithDetail("reset_at", admission.ResetAt)
	}

	cacheKey := idempotencyCacheKey(req.Actor, req.IdempotencyKey)
	if record, ok := a.state.Idempotency[cacheKey]; ok {
		a.logger.Debug("idempotent replay",
			zap.String("actor", req.Actor),
			zap.String("idempotency_key", req.IdempotencyKey))
		result := record.Result
		return &result, nil
	}

	// Apply to a copy so a persistence failure leaves the store untouched.
	overrides := a.state.Overrides.Clone()
	for _, op := range req.Ops {
		overrides.Set(op.Path, op.Value)
	}

	result := models.PatchResult{
		Success:   true,
		Overrides: overrides,
	}

	a.pruneIdempotencyLocked(now)

	prevOverrides := a.state.Overrides
	a.state.Overrides = overrides
	a.state.Idempotency[cacheKey] = models.IdempotencyRecord{
		Key:       cacheKey,
		Result:    result,
		CreatedAt: now,
	}

	if err := a.states.Save(ctx, a.key, a.state); err != nil {
		a.state.Overrides = prevOverrides
		delete(a.state.Idempotency, cacheKey)
		return nil, services.WrapInternal("failed to persist session state", err)
	}

	a.sink.Append(ctx, models.AuditEvent{
		Actor:  req.Actor,
		Action: "patch_apply",
		Details: map[string]interface{}{
			"route": req.Route,
			"ops":   len(req.Ops),
		},
	})

	a.logger.Info("patch applied",
		zap.String("actor", req.Actor),
		zap.String("route", req.Route),
		zap.Int("ops", len(req.Ops)))

	return &result, nil
}

// Execute handles an owner command. The payload of a non-status action is
// stored as the current task and propagated to connected sessions; it is
// never interpreted here. The status action reads without mutating.
func (a *Actor) Execute(ctx context.Context, action string, params map[string]interface{}) (map[string]interface{}, error) {
	if !IsValidAction(action) {
		return nil, services.NewDomainError(services.ErrorTypeValidation,
			"unknown action", nil).WithDetail("action", action)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if action == ActionStatus {
		response := map[string]interface{}{
			"ok":        true,
			"overrides": a.state.Overrides.Clone(),
			"sessions":  len(a.sessions),
		}
		if a.state.Task != nil {
			response["task"] = a.state.Task
		}
		return response, nil
	}

	task := models.NewTask(map[string]interface{}{
		"action": action,
		"params": params,
	})

	prevTask := a.state.Task
	a.state.Task = task
	if err := a.states.Save(ctx, a.key, a.state); err != nil {
		a.state.Task = prevTask
		return nil, services.WrapInternal("failed to persist session state", err)
	}

	a.sink.Append(ctx, models.AuditEvent{
		Actor:  "owner",
		Action: action,
		Details: map[string]interface{}{
			"task_id": task.ID,
		},
	})

	a.broadcastLocked("", map[string]interface{}{
		"type":    "task_updated",
		"payload": task.Payload,
	})

	a.logger.Info("command stored as current task",
		zap.String("action", action),
		zap.String("task_id", task.ID))

	return map[string]interface{}{
		"ok":   true,
		"task": task,
	}, nil
}

// Snapshot returns a copy of the current override store, for read-only use
func (a *Actor) Snapshot() models.Overrides {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Overrides.Clone()
}

// pruneIdempotencyLocked enforces the configured TTL and size bound.
// Called with the actor mutex held, before inserting a new record.
func (a *Actor) pruneIdempotencyLocked(now time.Time) {
	if a.cfg.IdempotencyTTL > 0 {
		for key, record := range a.state.Idempotency {
			if now.Sub(record.CreatedAt) > a.cfg.IdempotencyTTL {
				delete(a.state.Idempotency, key)
			}
		}
	}

	if a.cfg.IdempotencyMaxEntries > 0 && len(a.state.Idempotency) >= a.cfg.IdempotencyMaxEntries {
		records := make([]models.IdempotencyRecord, 0, len(a.state.Idempotency))
		for _, record := range a.state.Idempotency {
			records = append(records, record)
		}
		sort.Slice(records, func(i, j int) bool {
			return records[i].CreatedAt.Before(records[j].CreatedAt)
		})
		excess := len(records) - a.cfg.IdempotencyMaxEntries + 1
		for _, record := range records[:excess] {
			delete(a.state.Idempotency, record.Key)
		}
	}
}

func idempotencyCacheKey(actor, key string) string {
	return fmt.Sprintf("%s:%s", actor, key)
}
