package push

import (
	"sync"
	"time"

	"github.com/nhle/taskboard/internal/taskstore"
)

// NoticeKind classifies manager notifications to the UI layer.
type NoticeKind int

const (
	// NoticeRefetch asks for a full task re-fetch: a subscription gap
	// occurred or an event referenced state we do not hold.
	NoticeRefetch NoticeKind = iota

	// NoticeStale marks the view stale: the channel has been down past
	// the grace period, so local state can no longer be trusted fresh.
	NoticeStale

	// NoticeLive clears staleness after a successful reconnect.
	NoticeLive

	// NoticeComments signals new comment traffic for an open task.
	NoticeComments

	// NoticeActivities signals new activity traffic for an open task.
	NoticeActivities
)

// Notice is a typed notification from the manager.
type Notice struct {
	Kind   NoticeKind
	TaskID string
	Event  Event
}

// DefaultStaleAfter is how long the channel may stay down before the
// view is marked stale.
const DefaultStaleAfter = 30 * time.Second

// Manager scopes topic subscriptions to the visible views: the global
// task topic for the lifetime of the board, per-task comment and
// activity topics while a detail view is open. Inbound task events
// merge into the store; anything that cannot be merged safely becomes a
// re-fetch request. After a transport drop it resubscribes every active
// topic and always requests a re-fetch, since delivery during the
// outage is not guaranteed.
type Manager struct {
	transport Transport
	store     *taskstore.Store

	mu         sync.Mutex
	handles    map[string]Handle // topic -> live handle
	boardOpen  bool
	openTasks  map[string]bool
	dropped    bool
	stale      bool
	staleTimer *time.Timer
	staleAfter time.Duration
	running    bool

	notices chan Notice
}

// NewManager creates a manager routing transport events into the store.
func NewManager(transport Transport, store *taskstore.Store) *Manager {
	return &Manager{
		transport:  transport,
		store:      store,
		handles:    make(map[string]Handle),
		openTasks:  make(map[string]bool),
		staleAfter: DefaultStaleAfter,
		notices:    make(chan Notice, 16),
	}
}

// SetStaleAfter overrides the staleness grace period.
func (m *Manager) SetStaleAfter(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d > 0 {
		m.staleAfter = d
	}
}

// Notices delivers manager notifications; sends never block.
func (m *Manager) Notices() <-chan Notice {
	return m.notices
}

// Run consumes transport lifecycle events until the transport closes.
// Call in a goroutine after connecting the transport; extra calls are
// no-ops so one loop owns the events channel across sessions.
func (m *Manager) Run() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.mu.Unlock()

	for ev := range m.transport.Events() {
		switch ev.Kind {
		case Dropped:
			m.onDropped()
		case Connected:
			m.onConnected()
		}
	}

	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
}

// Stop tears down all subscriptions and resets staleness tracking. The
// manager stays usable: a later EnterBoard/OpenTask starts a fresh
// session over the same transport.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.staleTimer != nil {
		m.staleTimer.Stop()
		m.staleTimer = nil
	}
	m.dropped = false
	m.stale = false
	handles := m.handles
	m.handles = make(map[string]Handle)
	m.boardOpen = false
	m.openTasks = make(map[string]bool)
	m.mu.Unlock()

	for _, h := range handles {
		_ = m.transport.Unsubscribe(h)
	}
}

// EnterBoard subscribes the global task topic for the board's lifetime.
func (m *Manager) EnterBoard() error {
	m.mu.Lock()
	m.boardOpen = true
	m.mu.Unlock()
	return m.subscribe(TaskTopic, m.handleTaskEvent)
}

// LeaveBoard drops the global task topic.
func (m *Manager) LeaveBoard() {
	m.mu.Lock()
	m.boardOpen = false
	m.mu.Unlock()
	m.unsubscribe(TaskTopic)
}

// OpenTask subscribes the per-task comment and activity topics when a
// detail view becomes visible.
func (m *Manager) OpenTask(taskID string) error {
	m.mu.Lock()
	m.openTasks[taskID] = true
	m.mu.Unlock()

	if err := m.subscribe(CommentTopic(taskID), m.commentHandler(taskID)); err != nil {
		return err
	}
	return m.subscribe(ActivityTopic(taskID), m.activityHandler(taskID))
}

// CloseTask tears the per-task topics down when the detail view closes.
func (m *Manager) CloseTask(taskID string) {
	m.mu.Lock()
	delete(m.openTasks, taskID)
	m.mu.Unlock()

	m.unsubscribe(CommentTopic(taskID))
	m.unsubscribe(ActivityTopic(taskID))
}

func (m *Manager) subscribe(topic string, h Handler) error {
	handle, err := m.transport.Subscribe(topic, h)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.handles[topic] = handle
	m.mu.Unlock()
	return nil
}

func (m *Manager) unsubscribe(topic string) {
	m.mu.Lock()
	handle, ok := m.handles[topic]
	delete(m.handles, topic)
	m.mu.Unlock()
	if ok {
		_ = m.transport.Unsubscribe(handle)
	}
}

// onDropped starts the staleness clock. Subscriptions are gone with the
// connection; they are restored in onConnected.
func (m *Manager) onDropped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped = true
	if m.staleTimer == nil {
		m.staleTimer = time.AfterFunc(m.staleAfter, m.markStale)
	}
}

// markStale flags the view stale after the grace period expires with
// the channel still down.
func (m *Manager) markStale() {
	m.mu.Lock()
	if !m.dropped {
		m.mu.Unlock()
		return
	}
	m.stale = true
	m.mu.Unlock()
	m.sendNotice(Notice{Kind: NoticeStale})
}

// onConnected resubscribes every active topic and requests a full
// re-fetch to cover the delivery gap.
func (m *Manager) onConnected() {
	m.mu.Lock()
	wasDropped := m.dropped
	m.dropped = false
	m.stale = false
	if m.staleTimer != nil {
		m.staleTimer.Stop()
		m.staleTimer = nil
	}
	boardOpen := m.boardOpen
	openTasks := make([]string, 0, len(m.openTasks))
	for id := range m.openTasks {
		openTasks = append(openTasks, id)
	}
	m.handles = make(map[string]Handle)
	m.mu.Unlock()

	if boardOpen {
		_ = m.subscribe(TaskTopic, m.handleTaskEvent)
	}
	for _, id := range openTasks {
		_ = m.subscribe(CommentTopic(id), m.commentHandler(id))
		_ = m.subscribe(ActivityTopic(id), m.activityHandler(id))
	}

	if wasDropped {
		m.sendNotice(Notice{Kind: NoticeLive})
		// Messages during the outage are lost; only a full re-fetch
		// prevents permanently stale state.
		m.sendNotice(Notice{Kind: NoticeRefetch})
	}
}

// Stale reports whether the view is currently flagged stale.
func (m *Manager) Stale() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stale
}

// handleTaskEvent merges a global task topic event into the store, or
// escalates to a re-fetch when a safe merge is impossible.
func (m *Manager) handleTaskEvent(ev Event) {
	switch ev.Action {
	case ActionTaskDeleted:
		m.store.Remove(ev.TaskID)
		return

	case ActionCommentAdded:
		// Comment chatter mirrored onto the global topic; the board
		// holds no comment state.
		return
	}

	if ev.Task != nil {
		m.store.Upsert(*ev.Task)
		return
	}

	patch := eventPatch(ev)
	if patch.Empty() {
		m.sendNotice(Notice{Kind: NoticeRefetch, TaskID: ev.TaskID})
		return
	}
	if err := m.store.ApplyRemoteDelta(ev.TaskID, patch); err != nil {
		// Unknown task id: the event is a hint that we are missing
		// state.
		m.sendNotice(Notice{Kind: NoticeRefetch, TaskID: ev.TaskID})
	}
}

// eventPatch extracts the mergeable fields an event carries.
func eventPatch(ev Event) taskstore.Patch {
	var patch taskstore.Patch
	if ev.Action == ActionStatusChanged && ev.NewStatus.Valid() {
		status := ev.NewStatus
		patch.Status = &status
	}
	if !ev.Timestamp.IsZero() {
		ts := ev.Timestamp
		patch.UpdatedAt = &ts
	}
	return patch
}

func (m *Manager) commentHandler(taskID string) Handler {
	return func(ev Event) {
		m.sendNotice(Notice{Kind: NoticeComments, TaskID: taskID, Event: ev})
	}
}

func (m *Manager) activityHandler(taskID string) Handler {
	return func(ev Event) {
		m.sendNotice(Notice{Kind: NoticeActivities, TaskID: taskID, Event: ev})
	}
}

// sendNotice publishes a notice without blocking.
func (m *Manager) sendNotice(n Notice) {
	select {
	case m.notices <- n:
	default:
	}
}
