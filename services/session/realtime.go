package session

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/upb/site-control-plane/models"
)

// Conn is one attached realtime session. The concrete type in production is
// a websocket connection; tests attach in-memory fakes.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// Attach registers a session. When a current task exists it is pushed to the
// joining session only, so late joiners catch up without a broadcast.
func (a *Actor) Attach(id string, conn Conn) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.sessions[id] = conn
	a.logger.Info("session attached",
		zap.String("session_id", id),
		zap.Int("sessions", len(a.sessions)))

	if a.state.Task == nil {
		return
	}
	if err := conn.WriteJSON(map[string]interface{}{
		"type": "initial_state",
		"task": a.state.Task,
	}); err != nil {
		a.logger.Warn("failed to push initial state",
			zap.String("session_id", id),
			zap.Error(err))
		a.dropLocked(id)
	}
}

// Detach deregisters a session. Safe to call for unknown ids.
func (a *Actor) Detach(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.sessions[id]; !ok {
		return
	}
	delete(a.sessions, id)
	a.logger.Info("session detached",
		zap.String("session_id", id),
		zap.Int("sessions", len(a.sessions)))
}

// SessionCount returns the number of attached sessions
func (a *Actor) SessionCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sessions)
}

// HandleMessage processes one inbound realtime message from senderID.
// An update_task message replaces the current task, persists it and
// broadcasts task_updated to every other session; any other JSON message is
// relayed unmodified to every other session.
func (a *Actor) HandleMessage(ctx context.Context, senderID string, raw []byte) {
	// Task updates must persist even when the sending connection's request
	// context has expired or been cancelled.
	ctx = context.WithoutCancel(ctx)

	var message map[string]interface{}
	if err := json.Unmarshal(raw, &message); err != nil {
		a.logger.Warn("discarding malformed realtime message",
			zap.String("session_id", senderID),
			zap.Error(err))
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	msgType, _ := message["type"].(string)
	if msgType != "update_task" {
		a.broadcastLocked(senderID, message)
		return
	}

	payload, _ := message["payload"].(map[string]interface{})
	if a.state.Task == nil {
		a.state.Task = models.NewTask(payload)
	} else {
		a.state.Task.Replace(payload)
	}

	if err := a.states.Save(ctx, a.key, a.state); err != nil {
		a.logger.Error("failed to persist task update",
			zap.String("session_id", senderID),
			zap.Error(err))
	}

	a.sink.Append(ctx, models.AuditEvent{
		Actor:  senderID,
		Action: "update_task",
		Details: map[string]interface{}{
			"task_id": a.state.Task.ID,
		},
	})

	a.broadcastLocked(senderID, map[string]interface{}{
		"type":    "task_updated",
		"payload": a.state.Task.Payload,
	})
}

// broadcastLocked sends message to every attached session except sender.
// A failing session is closed and dropped; the broadcast continues to the
// rest. Called with the actor mutex held.
func (a *Actor) broadcastLocked(sender string, message interface{}) {
	var failed []string
	for id, conn := range a.sessions {
		if id == sender {
			continue
		}
		if err := conn.WriteJSON(message); err != nil {
			a.logger.Warn("dropping unresponsive session",
				zap.String("session_id", id),
				zap.Error(err))
			failed = append(failed, id)
		}
	}
	for _, id := range failed {
		a.dropLocked(id)
	}
}

// dropLocked closes and removes a session. Called with the actor mutex held.
func (a *Actor) dropLocked(id string) {
	if conn, ok := a.sessions[id]; ok {
		_ = conn.Close()
		delete(a.sessions, id)
	}
}

// CloseSessions closes every attached session, e.g. during shutdown
func (a *Actor) CloseSessions() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for id := range a.sessions {
		a.dropLocked(id)
	}
}
