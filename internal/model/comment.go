package model

import "time"

// Comment is a single comment on a task. Comments are keyed by task id
// as a dependent collection; the owning task does not embed them.
type Comment struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"taskId"`
	Username  string    `json:"username"`
	Body      string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
