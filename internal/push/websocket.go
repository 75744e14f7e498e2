package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// frame is the wire format: outbound subscribe/unsubscribe control
// frames, inbound topic-tagged events.
type frame struct {
	Type  string          `json:"type,omitempty"`
	Topic string          `json:"topic"`
	Event json.RawMessage `json:"event,omitempty"`
}

// TokenSource supplies the bearer credential for the connection
// handshake.
type TokenSource func() string

// WebSocketTransport implements Transport over a websocket connection
// with automatic reconnect. Subscriptions are cleared on every drop;
// the consumer re-issues them after the Connected event, per the
// Transport contract.
type WebSocketTransport struct {
	url    string
	tokens TokenSource

	mu     sync.Mutex
	conn   *websocket.Conn
	subs   map[Handle]subscription
	closed bool

	events chan TransportEvent
	stopCh chan struct{}
}

type subscription struct {
	topic   string
	handler Handler
}

// NewWebSocketTransport creates a transport for the given websocket
// endpoint. Connect must be called before subscribing.
func NewWebSocketTransport(url string, tokens TokenSource) *WebSocketTransport {
	return &WebSocketTransport{
		url:    url,
		tokens: tokens,
		subs:   make(map[Handle]subscription),
		events: make(chan TransportEvent, 8),
		stopCh: make(chan struct{}),
	}
}

// Connect dials the endpoint, authenticating with the bearer token, and
// starts the read pump. On connection loss it reconnects with capped
// exponential backoff until Close.
func (t *WebSocketTransport) Connect(ctx context.Context) error {
	conn, err := t.dial(ctx)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()

	go t.readPump(conn)
	t.sendEvent(TransportEvent{Kind: Connected})
	return nil
}

func (t *WebSocketTransport) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if token := t.tokens(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, t.url, header)
	if err != nil {
		return nil, fmt.Errorf("dialing push endpoint %s: %w", t.url, err)
	}
	return conn, nil
}

// Subscribe sends a subscribe frame and registers the handler.
func (t *WebSocketTransport) Subscribe(topic string, h Handler) (Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return "", errors.New("transport not connected")
	}

	if err := t.conn.WriteJSON(frame{Type: "subscribe", Topic: topic}); err != nil {
		return "", fmt.Errorf("subscribing to %s: %w", topic, err)
	}

	handle := Handle(uuid.NewString())
	t.subs[handle] = subscription{topic: topic, handler: h}
	return handle, nil
}

// Unsubscribe sends an unsubscribe frame when this was the topic's last
// handler, then drops the registration.
func (t *WebSocketTransport) Unsubscribe(h Handle) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	sub, ok := t.subs[h]
	if !ok {
		return nil
	}
	delete(t.subs, h)

	for _, other := range t.subs {
		if other.topic == sub.topic {
			return nil
		}
	}
	if t.conn != nil {
		if err := t.conn.WriteJSON(frame{Type: "unsubscribe", Topic: sub.topic}); err != nil {
			return fmt.Errorf("unsubscribing from %s: %w", sub.topic, err)
		}
	}
	return nil
}

// Events delivers connection lifecycle notifications.
func (t *WebSocketTransport) Events() <-chan TransportEvent {
	return t.events
}

// Close shuts the transport down permanently.
func (t *WebSocketTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()

	close(t.stopCh)
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// readPump reads frames until the connection fails, then hands off to
// the reconnect loop.
func (t *WebSocketTransport) readPump(conn *websocket.Conn) {
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			t.onDrop(err)
			return
		}
		t.dispatch(f)
	}
}

// dispatch decodes the frame's event and fans it out to the topic's
// handlers.
func (t *WebSocketTransport) dispatch(f frame) {
	var ev Event
	if err := json.Unmarshal(f.Event, &ev); err != nil {
		return
	}

	t.mu.Lock()
	var handlers []Handler
	for _, sub := range t.subs {
		if sub.topic == f.Topic {
			handlers = append(handlers, sub.handler)
		}
	}
	t.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}

// onDrop clears subscriptions, reports the drop, and starts
// reconnecting.
func (t *WebSocketTransport) onDrop(err error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.conn = nil
	// Subscriptions do not survive the connection.
	t.subs = make(map[Handle]subscription)
	t.mu.Unlock()

	t.sendEvent(TransportEvent{Kind: Dropped, Err: err})
	go t.reconnect()
}

// reconnect retries the dial with capped exponential backoff until it
// succeeds or the transport is closed.
func (t *WebSocketTransport) reconnect() {
	backoff := time.Second
	for {
		select {
		case <-t.stopCh:
			return
		case <-time.After(backoff):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		conn, err := t.dial(ctx)
		cancel()
		if err != nil {
			backoff *= 2
			if backoff > 30*time.Second {
				backoff = 30 * time.Second
			}
			continue
		}

		t.mu.Lock()
		if t.closed {
			t.mu.Unlock()
			conn.Close()
			return
		}
		t.conn = conn
		t.mu.Unlock()

		go t.readPump(conn)
		t.sendEvent(TransportEvent{Kind: Connected})
		return
	}
}

// sendEvent publishes a lifecycle event without blocking.
func (t *WebSocketTransport) sendEvent(ev TransportEvent) {
	select {
	case t.events <- ev:
	default:
	}
}
