// Package push maintains topic subscriptions against the notification
// channel and feeds inbound events into the task store. Delivery is
// at-most-once and unordered relative to REST calls, so every message
// is a hint to merge or re-fetch, never the sole source of truth.
package push

import "context"

// Topic names. The global task topic covers board-level changes;
// per-task topics carry comment and activity traffic for an open
// detail view.
const TaskTopic = "tasks"

// CommentTopic returns the per-task comment topic.
func CommentTopic(taskID string) string {
	return "tasks/" + taskID + "/comments"
}

// ActivityTopic returns the per-task activity topic.
func ActivityTopic(taskID string) string {
	return "tasks/" + taskID + "/activities"
}

// Handler consumes events delivered on a subscribed topic.
type Handler func(Event)

// Handle identifies one live subscription.
type Handle string

// TransportEventKind classifies connection lifecycle changes.
type TransportEventKind int

const (
	// Connected fires when the transport (re)establishes its
	// connection. Subscriptions do not survive a reconnect; the
	// subscriber must re-issue them.
	Connected TransportEventKind = iota

	// Dropped fires when the connection is lost. The transport keeps
	// retrying in the background.
	Dropped
)

// TransportEvent is a connection lifecycle notification.
type TransportEvent struct {
	Kind TransportEventKind
	Err  error
}

// Transport is the abstract subscription channel. Implementations
// authenticate at connect time with the session's bearer credential.
type Transport interface {
	// Connect establishes the connection and starts delivering events.
	Connect(ctx context.Context) error

	// Subscribe registers a handler for a topic and returns a handle
	// for unsubscribing. Valid only until the next Dropped event.
	Subscribe(topic string, h Handler) (Handle, error)

	// Unsubscribe tears down one subscription. Unknown handles are a
	// no-op.
	Unsubscribe(h Handle) error

	// Events delivers connection lifecycle notifications.
	Events() <-chan TransportEvent

	// Close shuts the transport down permanently.
	Close() error
}
