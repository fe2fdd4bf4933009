package models

import (
	"time"

	"github.com/google/uuid"
)

// Task is the current command payload held by a session.
// Last write wins; the payload is stored and propagated, never interpreted.
type Task struct {
	ID        string                 `json:"id"`
	Payload   map[string]interface{} `json:"payload"`
	UpdatedAt time.Time              `json:"updatedAt"`
}

// NewTask creates a task with a fresh ID and timestamp
func NewTask(payload map[string]interface{}) *Task {
	return &Task{
		ID:        uuid.New().String(),
		Payload:   payload,
		UpdatedAt: time.Now().UTC(),
	}
}

// Replace overwrites the task payload in place, refreshing the timestamp
func (t *Task) Replace(payload map[string]interface{}) {
	t.Payload = payload
	t.UpdatedAt = time.Now().UTC()
}
