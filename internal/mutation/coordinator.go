// Package mutation wraps user-initiated task edits with
// apply-then-confirm-or-revert semantics: the change lands in the task
// store immediately, the full task representation goes to the server,
// and the store is reconciled with the server's answer or rolled back.
// Mutations on the same task are queued and processed serially so a
// second edit always builds on the first's confirmed state.
package mutation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/taskboard/internal/api"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/session"
	"github.com/nhle/taskboard/internal/taskstore"
)

// State is the lifecycle of a single mutation. Confirmed and RolledBack
// are both terminal; no half-applied state is observable outside the
// coordinator.
type State int

const (
	StatePending State = iota
	StateConfirmed
	StateRolledBack
)

// Result reports the terminal state of one mutation.
type Result struct {
	MutationID string
	TaskID     string
	State      State
	Err        error
}

// TaskUpdater is the remote confirmation call. The api.Client satisfies
// it.
type TaskUpdater interface {
	UpdateTask(ctx context.Context, t model.Task) (*model.Task, error)
}

// CapabilitySource supplies the current capability set at gate time.
// The session satisfies it.
type CapabilitySource interface {
	Capabilities() model.CapabilitySet
}

// Notifier surfaces mutation outcomes to the user.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// DefaultConfirmTimeout bounds how long a mutation may stay pending
// before it is treated as failed and rolled back.
const DefaultConfirmTimeout = 15 * time.Second

// request is one queued mutation for a task.
type request struct {
	id    string
	patch taskstore.Patch
	label string
}

// Coordinator serializes optimistic mutations per task id and drives
// each through Pending -> Confirmed | RolledBack.
type Coordinator struct {
	store    *taskstore.Store
	updater  TaskUpdater
	caps     CapabilitySource
	notifier Notifier
	timeout  time.Duration

	// onAuthError routes credential rejections to the single session
	// invalidation path.
	onAuthError func(reason string)

	mu      sync.Mutex
	queues  map[string][]request
	working map[string]bool
	results chan Result
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithTimeout overrides the confirmation timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithAuthHandler installs the invalidation callback invoked when the
// server rejects the credential mid-mutation. Typically
// session.Invalidate.
func WithAuthHandler(fn func(reason string)) Option {
	return func(c *Coordinator) { c.onAuthError = fn }
}

// New creates a coordinator over the given store, remote updater,
// capability source, and notifier.
func New(
	store *taskstore.Store,
	updater TaskUpdater,
	caps CapabilitySource,
	notifier Notifier,
	opts ...Option,
) *Coordinator {
	c := &Coordinator{
		store:    store,
		updater:  updater,
		caps:     caps,
		notifier: notifier,
		timeout:  DefaultConfirmTimeout,
		queues:   make(map[string][]request),
		working:  make(map[string]bool),
		results:  make(chan Result, 16),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Results delivers the terminal state of each mutation; reads are
// optional, sends never block.
func (c *Coordinator) Results() <-chan Result {
	return c.results
}

// MoveStatus moves a task to a new kanban column.
func (c *Coordinator) MoveStatus(id string, status model.Status) error {
	if !c.caps.Capabilities().CanMoveStatus {
		return &session.PermissionError{Action: "move task status"}
	}
	if t, ok := c.store.Get(id); ok && t.Status == status {
		return nil
	}
	return c.enqueue(request{
		id:    id,
		patch: taskstore.StatusPatch(status),
		label: "Task moved to " + string(status),
	})
}

// Assign changes a task's assignee; an empty id unassigns.
func (c *Coordinator) Assign(id string, assigneeID, assigneeName string) error {
	if !c.caps.Capabilities().CanAssignTasks {
		return &session.PermissionError{Action: "assign task"}
	}
	if t, ok := c.store.Get(id); ok && t.AssigneeID == assigneeID {
		return nil
	}
	label := "Task assigned"
	if assigneeID == "" {
		label = "Task unassigned"
	}
	return c.enqueue(request{
		id:    id,
		patch: taskstore.AssigneePatch(assigneeID, assigneeName),
		label: label,
	})
}

// SetPriority changes a task's priority.
func (c *Coordinator) SetPriority(id string, p model.Priority) error {
	if !c.caps.Capabilities().CanUpdateTasks {
		return &session.PermissionError{Action: "update task"}
	}
	if t, ok := c.store.Get(id); ok && t.Priority == p {
		return nil
	}
	return c.enqueue(request{
		id:    id,
		patch: taskstore.PriorityPatch(p),
		label: "Priority set to " + string(p),
	})
}

// Update applies an arbitrary edit patch.
func (c *Coordinator) Update(id string, patch taskstore.Patch) error {
	if !c.caps.Capabilities().CanUpdateTasks {
		return &session.PermissionError{Action: "update task"}
	}
	if patch.Empty() {
		return nil
	}
	return c.enqueue(request{
		id:    id,
		patch: patch,
		label: "Task updated",
	})
}

// enqueue appends the request to the task's FIFO and starts a worker if
// none is draining it.
func (c *Coordinator) enqueue(req request) error {
	if _, ok := c.store.Get(req.id); !ok {
		return &taskstore.NotFoundError{ID: req.id}
	}

	c.mu.Lock()
	c.queues[req.id] = append(c.queues[req.id], req)
	if c.working[req.id] {
		c.mu.Unlock()
		return nil
	}
	c.working[req.id] = true
	c.mu.Unlock()

	go c.drain(req.id)
	return nil
}

// drain processes the task's queue serially until empty.
func (c *Coordinator) drain(id string) {
	for {
		c.mu.Lock()
		queue := c.queues[id]
		if len(queue) == 0 {
			c.working[id] = false
			c.mu.Unlock()
			return
		}
		req := queue[0]
		c.queues[id] = queue[1:]
		c.mu.Unlock()

		c.process(req)
	}
}

// process runs one mutation through the state machine.
func (c *Coordinator) process(req request) {
	mutationID := uuid.NewString()

	// Re-check against the current state, which by now includes any
	// earlier queued mutation's confirmed result.
	prior, err := c.store.ApplyLocalMutation(req.id, req.patch)
	if err != nil {
		if taskstore.IsNotFound(err) {
			c.notifier.Error("task no longer exists")
		}
		c.sendResult(Result{MutationID: mutationID, TaskID: req.id, State: StateRolledBack, Err: err})
		return
	}

	optimistic, ok := c.store.Get(req.id)
	if !ok || optimistic == prior {
		// Removed underneath us, or the queued patch became a no-op.
		c.store.RevertMutation(req.id, prior)
		c.sendResult(Result{MutationID: mutationID, TaskID: req.id, State: StateRolledBack})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	// Full representation, not just the delta.
	confirmed, err := c.updater.UpdateTask(ctx, optimistic)
	if err != nil {
		c.store.RevertMutation(req.id, prior)
		c.notifier.Error(api.UserMessage(err))
		if api.IsAuthError(err) && c.onAuthError != nil {
			c.onAuthError("credential rejected during task update")
		}
		c.sendResult(Result{MutationID: mutationID, TaskID: req.id, State: StateRolledBack, Err: err})
		return
	}

	c.store.ConfirmMutation(req.id, *confirmed)
	c.notifier.Success(req.label)
	c.sendResult(Result{MutationID: mutationID, TaskID: req.id, State: StateConfirmed})
}

// sendResult publishes a terminal result without blocking.
func (c *Coordinator) sendResult(r Result) {
	select {
	case c.results <- r:
	default:
	}
}
