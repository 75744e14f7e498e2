package push

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/taskstore"
)

// fakeTransport is an in-process transport: subscriptions land in a
// map, tests deliver events straight to the registered handlers, and
// lifecycle events are pushed through the same channel the real
// transport uses.
type fakeTransport struct {
	mu       sync.Mutex
	handlers map[string]Handler // topic -> handler
	topics   map[Handle]string
	next     int

	events chan TransportEvent
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		handlers: make(map[string]Handler),
		topics:   make(map[Handle]string),
		events:   make(chan TransportEvent, 8),
	}
}

func (f *fakeTransport) Connect(ctx context.Context) error { return nil }

func (f *fakeTransport) Subscribe(topic string, h Handler) (Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	handle := Handle(topic + "#" + strconv.Itoa(f.next))
	f.handlers[topic] = h
	f.topics[handle] = topic
	return handle, nil
}

func (f *fakeTransport) Unsubscribe(h Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	topic, ok := f.topics[h]
	if !ok {
		return nil
	}
	delete(f.topics, h)
	delete(f.handlers, topic)
	return nil
}

func (f *fakeTransport) Events() <-chan TransportEvent { return f.events }

func (f *fakeTransport) Close() error {
	close(f.events)
	return nil
}

func (f *fakeTransport) subscribed(topic string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.handlers[topic]
	return ok
}

// deliver invokes the topic's handler the way the read pump would.
func (f *fakeTransport) deliver(t *testing.T, topic string, ev Event) {
	t.Helper()
	f.mu.Lock()
	h, ok := f.handlers[topic]
	f.mu.Unlock()
	if !ok {
		t.Fatalf("no subscription on %s", topic)
	}
	h(ev)
}

// drop simulates a connection loss: the registry is wiped, then the
// lifecycle event goes out, matching the transport contract.
func (f *fakeTransport) drop() {
	f.mu.Lock()
	f.handlers = make(map[string]Handler)
	f.topics = make(map[Handle]string)
	f.mu.Unlock()
	f.events <- TransportEvent{Kind: Dropped}
}

func (f *fakeTransport) reconnect() {
	f.events <- TransportEvent{Kind: Connected}
}

func managerFixture(t *testing.T) (*Manager, *fakeTransport, *taskstore.Store) {
	t.Helper()
	transport := newFakeTransport()
	store := taskstore.New()
	store.LoadSnapshot([]model.Task{{
		ID:        "1",
		Title:     "Wire the webhook",
		Status:    model.StatusTodo,
		Priority:  model.PriorityHigh,
		CreatedAt: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
	}})

	m := NewManager(transport, store)
	go m.Run()
	t.Cleanup(func() {
		m.Stop()
		_ = transport.Close()
	})
	return m, transport, store
}

func awaitNotice(t *testing.T, m *Manager, kind NoticeKind) Notice {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case n := <-m.Notices():
			if n.Kind == kind {
				return n
			}
		case <-deadline:
			t.Fatalf("timed out waiting for notice kind %d", kind)
		}
	}
}

func TestViewLifecycle_SubscriptionScoping(t *testing.T) {
	m, transport, _ := managerFixture(t)

	if err := m.EnterBoard(); err != nil {
		t.Fatalf("enter board: %v", err)
	}
	if !transport.subscribed(TaskTopic) {
		t.Fatal("board view did not subscribe the task topic")
	}

	if err := m.OpenTask("1"); err != nil {
		t.Fatalf("open task: %v", err)
	}
	if !transport.subscribed(CommentTopic("1")) || !transport.subscribed(ActivityTopic("1")) {
		t.Error("detail view did not subscribe its per-task topics")
	}

	m.CloseTask("1")
	if transport.subscribed(CommentTopic("1")) || transport.subscribed(ActivityTopic("1")) {
		t.Error("per-task topics outlived the detail view")
	}
	if !transport.subscribed(TaskTopic) {
		t.Error("closing the detail view dropped the board topic")
	}

	m.LeaveBoard()
	if transport.subscribed(TaskTopic) {
		t.Error("task topic outlived the board view")
	}
}

func TestTaskEvent_FullRecordUpserts(t *testing.T) {
	m, transport, store := managerFixture(t)
	if err := m.EnterBoard(); err != nil {
		t.Fatalf("enter board: %v", err)
	}

	created := model.Task{
		ID:        "2",
		Title:     "New from push",
		Status:    model.StatusTodo,
		Priority:  model.PriorityLow,
		UpdatedAt: time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC),
	}
	transport.deliver(t, TaskTopic, Event{
		Action: ActionTaskCreated,
		TaskID: "2",
		Task:   &created,
	})

	got, ok := store.Get("2")
	if !ok {
		t.Fatal("pushed task not upserted")
	}
	if got != created {
		t.Errorf("upserted task = %+v, want %+v", got, created)
	}
}

func TestTaskEvent_StatusChangeMergesAsDelta(t *testing.T) {
	m, transport, store := managerFixture(t)
	if err := m.EnterBoard(); err != nil {
		t.Fatalf("enter board: %v", err)
	}

	at := time.Date(2025, 6, 1, 8, 45, 0, 0, time.UTC)
	transport.deliver(t, TaskTopic, Event{
		Action:    ActionStatusChanged,
		TaskID:    "1",
		OldStatus: model.StatusTodo,
		NewStatus: model.StatusInProgress,
		Timestamp: at,
	})

	got, _ := store.Get("1")
	if got.Status != model.StatusInProgress {
		t.Errorf("status = %s, want IN_PROGRESS", got.Status)
	}
	if got.Title != "Wire the webhook" {
		t.Errorf("delta event touched fields it did not carry: %+v", got)
	}
}

func TestTaskEvent_DeleteRemoves(t *testing.T) {
	m, transport, store := managerFixture(t)
	if err := m.EnterBoard(); err != nil {
		t.Fatalf("enter board: %v", err)
	}

	transport.deliver(t, TaskTopic, Event{Action: ActionTaskDeleted, TaskID: "1"})

	if _, ok := store.Get("1"); ok {
		t.Error("deleted task still in store")
	}
}

func TestTaskEvent_UnknownTaskRequestsRefetch(t *testing.T) {
	m, transport, _ := managerFixture(t)
	if err := m.EnterBoard(); err != nil {
		t.Fatalf("enter board: %v", err)
	}

	transport.deliver(t, TaskTopic, Event{
		Action:    ActionStatusChanged,
		TaskID:    "ghost",
		NewStatus: model.StatusDone,
		Timestamp: time.Now(),
	})

	n := awaitNotice(t, m, NoticeRefetch)
	if n.TaskID != "ghost" {
		t.Errorf("refetch notice carries task %q, want ghost", n.TaskID)
	}
}

func TestTaskEvent_UnmergeableEventRequestsRefetch(t *testing.T) {
	m, transport, _ := managerFixture(t)
	if err := m.EnterBoard(); err != nil {
		t.Fatalf("enter board: %v", err)
	}

	// An update action with neither a task record nor mergeable fields.
	transport.deliver(t, TaskTopic, Event{Action: ActionTaskUpdated, TaskID: "1"})

	awaitNotice(t, m, NoticeRefetch)
}

func TestOpenTask_CommentTrafficYieldsNotices(t *testing.T) {
	m, transport, _ := managerFixture(t)
	if err := m.OpenTask("1"); err != nil {
		t.Fatalf("open task: %v", err)
	}

	transport.deliver(t, CommentTopic("1"), Event{
		Action:   ActionCommentAdded,
		TaskID:   "1",
		Username: "alice",
		Comment:  "looks good",
	})

	n := awaitNotice(t, m, NoticeComments)
	if n.TaskID != "1" || n.Event.Comment != "looks good" {
		t.Errorf("comment notice = %+v", n)
	}
}

func TestReconnect_ResubscribesAndRequestsRefetch(t *testing.T) {
	m, transport, _ := managerFixture(t)
	if err := m.EnterBoard(); err != nil {
		t.Fatalf("enter board: %v", err)
	}
	if err := m.OpenTask("1"); err != nil {
		t.Fatalf("open task: %v", err)
	}

	transport.drop()
	transport.reconnect()

	awaitNotice(t, m, NoticeLive)
	awaitNotice(t, m, NoticeRefetch)

	for _, topic := range []string{TaskTopic, CommentTopic("1"), ActivityTopic("1")} {
		if !transport.subscribed(topic) {
			t.Errorf("topic %s not resubscribed after reconnect", topic)
		}
	}
	if m.Stale() {
		t.Error("view still stale after reconnect")
	}
}

func TestSustainedDrop_MarksStale(t *testing.T) {
	m, transport, _ := managerFixture(t)
	m.SetStaleAfter(10 * time.Millisecond)
	if err := m.EnterBoard(); err != nil {
		t.Fatalf("enter board: %v", err)
	}

	transport.drop()

	awaitNotice(t, m, NoticeStale)
	if !m.Stale() {
		t.Error("Stale() disagrees with the stale notice")
	}

	transport.reconnect()
	awaitNotice(t, m, NoticeLive)
	if m.Stale() {
		t.Error("staleness not cleared by reconnect")
	}
}

func TestStop_ThenNewSession_KeepsRecovering(t *testing.T) {
	m, transport, store := managerFixture(t)
	if err := m.EnterBoard(); err != nil {
		t.Fatalf("enter board: %v", err)
	}
	if err := m.OpenTask("1"); err != nil {
		t.Fatalf("open task: %v", err)
	}

	// Logout tears every subscription down.
	m.Stop()
	for _, topic := range []string{TaskTopic, CommentTopic("1"), ActivityTopic("1")} {
		if transport.subscribed(topic) {
			t.Fatalf("topic %s survived Stop", topic)
		}
	}

	// A new login reuses the same manager and transport.
	if err := m.EnterBoard(); err != nil {
		t.Fatalf("re-enter board: %v", err)
	}
	if !transport.subscribed(TaskTopic) {
		t.Fatal("second session did not subscribe the task topic")
	}

	// Drop/reconnect in the second session must still resubscribe and
	// request a re-fetch; a drop silently ignored would leave the board
	// permanently stale.
	transport.drop()
	transport.reconnect()

	awaitNotice(t, m, NoticeLive)
	awaitNotice(t, m, NoticeRefetch)
	if !transport.subscribed(TaskTopic) {
		t.Error("task topic not resubscribed after a second-session drop")
	}

	// And events still merge.
	at := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	transport.deliver(t, TaskTopic, Event{
		Action:    ActionStatusChanged,
		TaskID:    "1",
		NewStatus: model.StatusDone,
		Timestamp: at,
	})
	if got, _ := store.Get("1"); got.Status != model.StatusDone {
		t.Errorf("second-session event not merged: status = %s", got.Status)
	}
}

func TestRun_SecondCallIsNoOp(t *testing.T) {
	m, transport, store := managerFixture(t)
	go m.Run() // a second login starting another loop must not double-consume

	if err := m.EnterBoard(); err != nil {
		t.Fatalf("enter board: %v", err)
	}
	transport.drop()
	transport.reconnect()

	awaitNotice(t, m, NoticeLive)
	if !transport.subscribed(TaskTopic) {
		t.Error("task topic not resubscribed with duplicate Run calls")
	}
	if _, ok := store.Get("1"); !ok {
		t.Error("store lost task 1")
	}
}

func TestBriefDrop_NeverMarksStale(t *testing.T) {
	m, transport, _ := managerFixture(t)
	m.SetStaleAfter(time.Hour)
	if err := m.EnterBoard(); err != nil {
		t.Fatalf("enter board: %v", err)
	}

	transport.drop()
	transport.reconnect()

	awaitNotice(t, m, NoticeLive)
	if m.Stale() {
		t.Error("brief drop within the grace period marked the view stale")
	}
}
