package api

import (
	"context"

	"github.com/nhle/taskboard/internal/model"
)

// commentRequest is the body for comment create/update calls.
type commentRequest struct {
	Comment string `json:"comment"`
}

// TaskComments fetches the comment thread for a task.
func (c *Client) TaskComments(ctx context.Context, taskID string) ([]model.Comment, error) {
	var comments []model.Comment
	if err := c.get(ctx, "/tasks/"+taskID+"/comments", &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

// AddComment appends a comment to a task's thread.
func (c *Client) AddComment(ctx context.Context, taskID, body string) (*model.Comment, error) {
	var created model.Comment
	err := c.post(ctx, "/tasks/"+taskID+"/comments", commentRequest{Comment: body}, &created)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateComment replaces a comment's body. The server enforces
// author-or-admin ownership; the client gates earlier via the session.
func (c *Client) UpdateComment(ctx context.Context, commentID, body string) (*model.Comment, error) {
	var updated model.Comment
	err := c.put(ctx, "/tasks/comments/"+commentID, commentRequest{Comment: body}, &updated)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteComment removes a comment.
func (c *Client) DeleteComment(ctx context.Context, commentID string) error {
	return c.delete(ctx, "/tasks/comments/"+commentID)
}
