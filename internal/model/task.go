package model

import "time"

// Task status values.  Transitions are caller-driven and unconstrained;
// any status may move to any other.  The only guard on a status change
// is the ownership/admin check, not a transition graph.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// Task priority values.  Priority defaults to medium when omitted at
// creation time.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Task mirrors a row of the `tasks` table.  Unlike User, tasks are
// serialized directly in API responses, so JSON tags live on the model.
// Visibility is decided at read time: a task is visible to a caller iff
// it is public, the caller owns it, or the caller is an admin.
type Task struct {
	ID          uint64    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	Priority    string    `json:"priority"`
	IsPublic    bool      `json:"isPublic"`
	OwnerID     uint64    `json:"ownerId"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ValidStatus reports whether s is one of the enumerated task statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// ValidPriority reports whether p is one of the enumerated priorities.
func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}
