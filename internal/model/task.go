package model

import "time"

// Status is the kanban column a task lives in.
type Status string

const (
	StatusTodo       Status = "TODO"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
)

// Statuses lists every valid status in board order.
var Statuses = []Status{StatusTodo, StatusInProgress, StatusDone}

// Valid reports whether s is one of the enumerated statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Priority is the task urgency level.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// Valid reports whether p is one of the enumerated priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Task is a single work item on the board. The server assigns ID and
// both timestamps; the client never invents them.
type Task struct {
	// ID is the server-assigned identifier, opaque to the client.
	ID string `json:"id" db:"id"`

	// Title is the human-readable summary of the task.
	Title string `json:"title" db:"title"`

	// Description is the full body text.
	Description string `json:"description" db:"description"`

	// Status is the current kanban column.
	Status Status `json:"status" db:"status"`

	// Priority is the urgency level.
	Priority Priority `json:"priority" db:"priority"`

	// AssigneeID references the assigned user; empty means unassigned.
	AssigneeID string `json:"assigneeId,omitempty" db:"assignee_id"`

	// AssigneeName is the assignee's username for display.
	AssigneeName string `json:"assigneeName,omitempty" db:"assignee_name"`

	// CreatorID references the user who created the task.
	CreatorID string `json:"creatorId" db:"creator_id"`

	// CreatedAt is when the server created the record.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is bumped by the server on every mutation. Delta
	// staleness is judged against this value.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
