// Package queue defines message payloads exchanged over the message broker.
package queue

// Event types published to the task.events queue.
const (
	EventTaskCreated       = "task.created"
	EventTaskStatusChanged = "task.status_changed"
)

// TaskEvent is published when a task is created or changes status.  It
// carries enough information for downstream consumers to log, notify or
// feed analytics without querying the primary database.
type TaskEvent struct {
	Type       string `json:"type"`
	TaskID     uint64 `json:"task_id"`
	OwnerID    uint64 `json:"owner_id"`
	ActorID    uint64 `json:"actor_id"`
	Title      string `json:"title"`
	Status     string `json:"status"`
	Priority   string `json:"priority"`
	OccurredAt string `json:"occurred_at"`
}
