package push

import (
	"time"

	"github.com/nhle/taskboard/internal/model"
)

// Actions broadcast by the server on the task topics.
const (
	ActionTaskCreated   = "TASK_CREATED"
	ActionTaskUpdated   = "TASK_UPDATED"
	ActionStatusChanged = "STATUS_CHANGED"
	ActionTaskDeleted   = "TASK_DELETED"
	ActionCommentAdded  = "COMMENT_ADDED"
)

// Event is the JSON body delivered on a topic. Which optional fields
// are present depends on the action; Task, when set, carries the full
// record for a direct merge.
type Event struct {
	Action    string    `json:"action"`
	TaskID    string    `json:"taskId"`
	TaskTitle string    `json:"taskTitle,omitempty"`
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`

	OldStatus model.Status `json:"oldStatus,omitempty"`
	NewStatus model.Status `json:"newStatus,omitempty"`
	Comment   string       `json:"comment,omitempty"`

	Task     *model.Task     `json:"task,omitempty"`
	Activity *model.Activity `json:"activity,omitempty"`
}
