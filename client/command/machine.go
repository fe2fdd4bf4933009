// Package command implements the client-side reconciliation state machine.
// It runs single-threaded on the client and is driven directly by the HTTP
// command client observing its own requests and responses; the Reconcile
// tick is only a fallback safety net.
package command

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// State is one node of the client loop
type State string

const (
	StateIdle                 State = "IDLE"
	StateListening            State = "LISTENING"
	StatePlanning             State = "PLANNING"
	StateAwaitingConfirmation State = "AWAITING_CONFIRMATION"
	StateExecuting            State = "EXECUTING"
	StateComplete             State = "COMPLETE"
	StateError                State = "ERROR"
	StateOffline              State = "OFFLINE"
)

// DefaultConfirmationPhrase is used until a capability manifest provides one
const DefaultConfirmationPhrase = "CONFIRM APPLY"

// transitionLogCapacity bounds the volatile transition log
const transitionLogCapacity = 100

// Transition is one recorded state change. Blocked attempts are recorded as
// self-transitions so the log tells the whole story.
type Transition struct {
	From  State
	To    State
	Cause string
	At    time.Time
}

// Machine is the client command state machine. The transition log is held
// in memory only and never persisted.
type Machine struct {
	mu        sync.Mutex
	state     State
	phrase    string
	confirmed bool
	degraded  bool
	log       []Transition
}

// New creates a machine in IDLE with the given confirmation phrase.
// An empty phrase falls back to the default.
func New(phrase string) *Machine {
	if phrase == "" {
		phrase = DefaultConfirmationPhrase
	}
	return &Machine{
		state:  StateIdle,
		phrase: phrase,
	}
}

// SetPhrase replaces the confirmation phrase, e.g. after fetching the
// capability manifest
func (m *Machine) SetPhrase(phrase string) {
	if phrase == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phrase = phrase
}

// State returns the current state
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Degraded reports whether the last transport attempt failed
func (m *Machine) Degraded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.degraded
}

// Transitions returns a copy of the transition log, oldest first
func (m *Machine) Transitions() []Transition {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Transition, len(m.log))
	copy(out, m.log)
	return out
}

// StartListening moves an idle machine into the listening loop
func (m *Machine) StartListening() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateIdle {
		m.transitionLocked(StateListening, "listening started")
	}
}

// ObserveRequest records an outbound command. While OFFLINE the machine
// stays latched; the attempt is logged but the state does not change.
func (m *Machine) ObserveRequest(action string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateOffline {
		m.transitionLocked(StateOffline, fmt.Sprintf("request %q while offline", action))
		return
	}

	switch {
	case isPlanningAction(action):
		m.transitionLocked(StatePlanning, "request "+action)
	case isMutatingAction(action):
		m.transitionLocked(StateExecuting, "request "+action)
	default:
		m.transitionLocked(StateListening, "request "+action)
	}
}

// ObserveSuccess records a successful response. Any success clears the
// OFFLINE latch and degraded mode.
func (m *Machine) ObserveSuccess(action string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.degraded = false

	switch {
	case isPlanningAction(action):
		m.transitionLocked(StateAwaitingConfirmation, "ok "+action)
	case isMutatingAction(action):
		m.confirmed = false // confirmation is one-shot
		m.transitionLocked(StateComplete, "ok "+action)
	default:
		m.transitionLocked(StateListening, "ok "+action)
	}
}

// ObserveFailure records a non-success HTTP response
func (m *Machine) ObserveFailure(action string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitionLocked(StateError, fmt.Sprintf("%s failed with status %d", action, status))
}

// ObserveTransportError latches the machine OFFLINE and enters degraded
// mode. Only a later successful call releases the latch.
func (m *Machine) ObserveTransportError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.degraded = true
	m.transitionLocked(StateOffline, fmt.Sprintf("transport error: %v", err))
}

// Confirm checks the typed phrase against the expected one, ignoring case
// and surrounding whitespace. A near miss leaves apply disabled.
func (m *Machine) Confirm(input string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if strings.EqualFold(strings.TrimSpace(input), m.phrase) {
		m.confirmed = true
		m.transitionLocked(m.state, "confirmation accepted")
		return true
	}
	m.confirmed = false
	m.transitionLocked(m.state, "confirmation rejected")
	return false
}

// CanApply reports whether a high-severity action may proceed right now
func (m *Machine) CanApply() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state != StateOffline && m.confirmed
}

// GuardApply gates a high-severity action. A blocked attempt is recorded;
// an offline machine stays OFFLINE, otherwise it lands in
// AWAITING_CONFIRMATION until the phrase is typed.
func (m *Machine) GuardApply() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateOffline {
		m.transitionLocked(StateOffline, "apply blocked: offline")
		return false
	}
	if !m.confirmed {
		m.transitionLocked(StateAwaitingConfirmation, "apply blocked: confirmation required")
		return false
	}
	return true
}

// Reconcile is the fallback tick: it returns a settled machine to the
// listening loop. OFFLINE is deliberately not cleared here.
func (m *Machine) Reconcile() {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateComplete, StateError:
		m.transitionLocked(StateListening, "reconcile")
	case StateIdle:
		m.transitionLocked(StateListening, "reconcile")
	}
}

// transitionLocked appends to the log and moves to the new state.
// Called with the machine mutex held.
func (m *Machine) transitionLocked(to State, cause string) {
	m.log = append(m.log, Transition{
		From:  m.state,
		To:    to,
		Cause: cause,
		At:    time.Now().UTC(),
	})
	if len(m.log) > transitionLogCapacity {
		m.log = m.log[len(m.log)-transitionLogCapacity:]
	}
	m.state = to
}

// isMutatingAction reports whether the action is confirmation-gated
func isMutatingAction(action string) bool {
	switch action {
	case "apply", "deploy", "rollback":
		return true
	}
	return false
}

// isPlanningAction reports whether the action produces a plan or preview
func isPlanningAction(action string) bool {
	switch action {
	case "plan", "preview", "auto":
		return true
	}
	return false
}
