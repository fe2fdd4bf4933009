// Package ratelimit implements the per-actor fixed counting window used by
// the session actor. The counters themselves live in the session state so
// they survive restarts; the limiter only holds the policy.
package ratelimit

import (
	"time"

	"github.com/upb/site-control-plane/models"
)

// Result describes the outcome of an admission check
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter is a fixed-window admission policy. A threshold of zero or less
// disables limiting.
type Limiter struct {
	threshold int
	window    time.Duration
}

// New creates a limiter with the given threshold and window
func New(threshold int, window time.Duration) *Limiter {
	return &Limiter{
		threshold: threshold,
		window:    window,
	}
}

// Admit checks the counter against the window and, only when the attempt is
// admitted, increments it. A counter at the threshold is rejected without
// being incremented, so rejected attempts never extend the block.
func (l *Limiter) Admit(counter *models.RateCounter, now time.Time) Result {
	if l.threshold <= 0 {
		return Result{Allowed: true, Remaining: -1}
	}

	if counter.WindowStart.IsZero() || now.Sub(counter.WindowStart) >= l.window {
		counter.WindowStart = now
		counter.Count = 0
	}

	resetAt := counter.WindowStart.Add(l.window)
	if counter.Count >= l.threshold {
		return Result{Allowed: false, Remaining: 0, ResetAt: resetAt}
	}

	counter.Count++
	return Result{
		Allowed:   true,
		Remaining: l.threshold - counter.Count,
		ResetAt:   resetAt,
	}
}
