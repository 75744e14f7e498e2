package api

import (
	"context"
	"net/url"

	"github.com/nhle/taskboard/internal/model"
)

// TaskFilter narrows a task fetch by status and/or assignee. Zero
// values mean no filtering on that dimension.
type TaskFilter struct {
	Status     model.Status
	AssigneeID string
}

func (f TaskFilter) query() string {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.AssigneeID != "" {
		q.Set("assignee", f.AssigneeID)
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// MyTasks fetches the tasks visible to the current user, optionally
// filtered.
func (c *Client) MyTasks(ctx context.Context, filter TaskFilter) ([]model.Task, error) {
	var tasks []model.Task
	if err := c.get(ctx, "/tasks"+filter.query(), &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// AllTasks fetches every task in the system. Privileged; the server
// rejects non-admin callers.
func (c *Client) AllTasks(ctx context.Context) ([]model.Task, error) {
	var tasks []model.Task
	if err := c.get(ctx, "/tasks/all", &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// Task fetches a single task by id.
func (c *Client) Task(ctx context.Context, id string) (*model.Task, error) {
	var t model.Task
	if err := c.get(ctx, "/tasks/"+id, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTask creates a task. The server assigns the id and timestamps.
func (c *Client) CreateTask(ctx context.Context, t model.Task) (*model.Task, error) {
	var created model.Task
	if err := c.post(ctx, "/tasks", t, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateTask sends the full task representation (never a partial patch,
// to avoid partial-update ambiguity on the server) and returns the
// server's canonical record.
func (c *Client) UpdateTask(ctx context.Context, t model.Task) (*model.Task, error) {
	var updated model.Task
	if err := c.put(ctx, "/tasks", t, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteTask removes a task by id.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.delete(ctx, "/tasks/"+id)
}

// TaskActivities fetches the append-only activity feed for a task.
func (c *Client) TaskActivities(ctx context.Context, taskID string) ([]model.Activity, error) {
	var activities []model.Activity
	if err := c.get(ctx, "/tasks/"+taskID+"/activities", &activities); err != nil {
		return nil, err
	}
	return activities, nil
}
