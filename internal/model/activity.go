package model

import "time"

// ActivityType classifies an entry in a task's activity feed.
type ActivityType string

const (
	ActivityCreated        ActivityType = "CREATED"
	ActivityUpdated        ActivityType = "UPDATED"
	ActivityStatusChanged  ActivityType = "STATUS_CHANGED"
	ActivityAssigned       ActivityType = "ASSIGNED"
	ActivityUnassigned     ActivityType = "UNASSIGNED"
	ActivityCommentAdded   ActivityType = "COMMENT_ADDED"
	ActivityDeleted        ActivityType = "DELETED"
	ActivityPriorityChange ActivityType = "PRIORITY_CHANGED"
	ActivityDueDateChange  ActivityType = "DUE_DATE_CHANGED"
)

// Activity is an append-only audit record for a task. Never mutated
// after creation.
type Activity struct {
	ID          string       `json:"id"`
	TaskID      string       `json:"taskId"`
	Type        ActivityType `json:"type"`
	Description string       `json:"description"`
	OldValue    string       `json:"oldValue,omitempty"`
	NewValue    string       `json:"newValue,omitempty"`
	Username    string       `json:"username"`
	Timestamp   time.Time    `json:"timestamp"`
}
