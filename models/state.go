package models

import "time"

// IdempotencyRecord is the immutable first-write-wins record of a completed
// patch_apply, keyed by (actor, idempotencyKey).
type IdempotencyRecord struct {
	Key       string      `json:"key"`
	Result    PatchResult `json:"result"`
	CreatedAt time.Time   `json:"createdAt"`
}

// RateCounter is a fixed-window counter for one actor
type RateCounter struct {
	Count       int       `json:"count"`
	WindowStart time.Time `json:"windowStart"`
}

// SessionState is the durable snapshot owned by a session actor: the current
// task, the override store, the idempotency cache and the rate counters.
// Open realtime connections are ephemeral and never part of the snapshot.
type SessionState struct {
	Task         *Task                        `json:"task,omitempty"`
	Overrides    Overrides                    `json:"overrides"`
	Idempotency  map[string]IdempotencyRecord `json:"idempotency"`
	RateCounters map[string]*RateCounter      `json:"rateCounters"`
}

// NewSessionState returns an empty session state with all maps initialized
func NewSessionState() *SessionState {
	return &SessionState{
		Overrides:    make(Overrides),
		Idempotency:  make(map[string]IdempotencyRecord),
		RateCounters: make(map[string]*RateCounter),
	}
}

// EnsureMaps initializes any nil maps, e.g. after decoding a snapshot written
// by an older version
func (s *SessionState) EnsureMaps() {
	if s.Overrides == nil {
		s.Overrides = make(Overrides)
	}
	if s.Idempotency == nil {
		s.Idempotency = make(map[string]IdempotencyRecord)
	}
	if s.RateCounters == nil {
		s.RateCounters = make(map[string]*RateCounter)
	}
}
