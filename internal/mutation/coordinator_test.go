package mutation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nhle/taskboard/internal/api"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/session"
	"github.com/nhle/taskboard/internal/taskstore"
)

type fakeUpdater struct {
	mu    sync.Mutex
	calls []model.Task
	// respond maps the sent task to the server's answer; nil falls back
	// to echoing the request with a bumped timestamp.
	respond func(t model.Task) (*model.Task, error)
}

func (f *fakeUpdater) UpdateTask(ctx context.Context, t model.Task) (*model.Task, error) {
	f.mu.Lock()
	f.calls = append(f.calls, t)
	f.mu.Unlock()

	if f.respond != nil {
		return f.respond(t)
	}
	confirmed := t
	confirmed.UpdatedAt = t.UpdatedAt.Add(time.Second)
	return &confirmed, nil
}

func (f *fakeUpdater) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeUpdater) call(i int) model.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i]
}

type fakeCaps struct {
	set model.CapabilitySet
}

func (f fakeCaps) Capabilities() model.CapabilitySet { return f.set }

func allCaps() fakeCaps {
	return fakeCaps{set: model.CapabilitySet{
		CanCreateTasks: true,
		CanUpdateTasks: true,
		CanDeleteTasks: true,
		CanAssignTasks: true,
		CanComment:     true,
		CanMoveStatus:  true,
	}}
}

type fakeNotifier struct {
	mu        sync.Mutex
	successes []string
	errors    []string
}

func (f *fakeNotifier) Success(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.successes = append(f.successes, msg)
}

func (f *fakeNotifier) Error(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, msg)
}

func (f *fakeNotifier) lastError() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.errors) == 0 {
		return ""
	}
	return f.errors[len(f.errors)-1]
}

func storeWithTask(t *testing.T, id string) *taskstore.Store {
	t.Helper()
	s := taskstore.New()
	s.LoadSnapshot([]model.Task{{
		ID:        id,
		Title:     "Ship release notes",
		Status:    model.StatusTodo,
		Priority:  model.PriorityLow,
		CreatedAt: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}})
	return s
}

func awaitResult(t *testing.T, c *Coordinator) Result {
	t.Helper()
	select {
	case r := <-c.Results():
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for mutation result")
		return Result{}
	}
}

func TestMoveStatus_RejectedWithoutCapability(t *testing.T) {
	store := storeWithTask(t, "1")
	before, _ := store.Get("1")
	updater := &fakeUpdater{}
	caps := fakeCaps{set: model.CapabilitySet{CanComment: true}}

	c := New(store, updater, caps, &fakeNotifier{})

	err := c.MoveStatus("1", model.StatusDone)

	var perm *session.PermissionError
	if !errors.As(err, &perm) {
		t.Fatalf("expected PermissionError, got %v", err)
	}
	if updater.callCount() != 0 {
		t.Error("rejected mutation reached the network")
	}
	if got, _ := store.Get("1"); got != before {
		t.Error("rejected mutation changed the store")
	}
}

func TestMoveStatus_NoOpWhenAlreadyThere(t *testing.T) {
	store := storeWithTask(t, "1")
	updater := &fakeUpdater{}

	c := New(store, updater, allCaps(), &fakeNotifier{})

	if err := c.MoveStatus("1", model.StatusTodo); err != nil {
		t.Fatalf("no-op move: %v", err)
	}
	if updater.callCount() != 0 {
		t.Error("no-op mutation reached the network")
	}
}

func TestMoveStatus_UnknownTask(t *testing.T) {
	store := storeWithTask(t, "1")
	c := New(store, &fakeUpdater{}, allCaps(), &fakeNotifier{})

	err := c.MoveStatus("missing", model.StatusDone)
	if !taskstore.IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestMoveStatus_ConfirmAdoptsServerRecord(t *testing.T) {
	store := storeWithTask(t, "1")
	serverAt := time.Date(2025, 6, 1, 9, 5, 0, 0, time.UTC)
	updater := &fakeUpdater{respond: func(sent model.Task) (*model.Task, error) {
		confirmed := sent
		confirmed.Title = "Ship release notes v2" // server-side normalization
		confirmed.UpdatedAt = serverAt
		return &confirmed, nil
	}}
	notifier := &fakeNotifier{}

	c := New(store, updater, allCaps(), notifier)

	if err := c.MoveStatus("1", model.StatusInProgress); err != nil {
		t.Fatalf("move: %v", err)
	}
	r := awaitResult(t, c)
	if r.State != StateConfirmed {
		t.Fatalf("state = %v, want Confirmed (err %v)", r.State, r.Err)
	}

	if updater.callCount() != 1 {
		t.Fatalf("updater calls = %d, want 1", updater.callCount())
	}
	sent := updater.call(0)
	if sent.Status != model.StatusInProgress || sent.Title != "Ship release notes" {
		t.Errorf("confirmation did not carry the full optimistic task: %+v", sent)
	}

	got, _ := store.Get("1")
	if got.Title != "Ship release notes v2" || got.UpdatedAt != serverAt {
		t.Errorf("store did not adopt the server record exactly: %+v", got)
	}
	if store.InFlight("1") {
		t.Error("task still flagged in-flight after confirmation")
	}
}

func TestMoveStatus_FailureRevertsAndNotifies(t *testing.T) {
	store := storeWithTask(t, "1")
	before, _ := store.Get("1")
	updater := &fakeUpdater{respond: func(model.Task) (*model.Task, error) {
		return nil, &api.RemoteError{StatusCode: 500, Message: "task is locked"}
	}}
	notifier := &fakeNotifier{}

	c := New(store, updater, allCaps(), notifier)

	if err := c.MoveStatus("1", model.StatusDone); err != nil {
		t.Fatalf("move: %v", err)
	}
	r := awaitResult(t, c)
	if r.State != StateRolledBack {
		t.Fatalf("state = %v, want RolledBack", r.State)
	}

	if got, _ := store.Get("1"); got != before {
		t.Errorf("store not reverted after failure: %+v", got)
	}
	if msg := notifier.lastError(); !strings.Contains(msg, "task is locked") {
		t.Errorf("error notification %q does not surface the server message", msg)
	}
}

func TestMoveStatus_TimeoutRollsBack(t *testing.T) {
	store := storeWithTask(t, "1")
	before, _ := store.Get("1")

	// Behaves like an http client: blocks until the deadline fires.
	c := New(store, stalledUpdater{}, allCaps(), &fakeNotifier{}, WithTimeout(20*time.Millisecond))

	if err := c.MoveStatus("1", model.StatusDone); err != nil {
		t.Fatalf("move: %v", err)
	}
	r := awaitResult(t, c)
	if r.State != StateRolledBack {
		t.Fatalf("state = %v, want RolledBack", r.State)
	}
	if got, _ := store.Get("1"); got != before {
		t.Errorf("store not reverted after timeout: %+v", got)
	}
}

type stalledUpdater struct{}

func (stalledUpdater) UpdateTask(ctx context.Context, _ model.Task) (*model.Task, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestMoveStatus_AuthErrorInvalidatesSession(t *testing.T) {
	store := storeWithTask(t, "1")
	updater := &fakeUpdater{respond: func(model.Task) (*model.Task, error) {
		return nil, &api.AuthError{Message: "token expired"}
	}}

	invalidated := make(chan string, 1)
	c := New(store, updater, allCaps(), &fakeNotifier{},
		WithAuthHandler(func(reason string) { invalidated <- reason }))

	if err := c.MoveStatus("1", model.StatusDone); err != nil {
		t.Fatalf("move: %v", err)
	}
	awaitResult(t, c)

	select {
	case <-invalidated:
	case <-time.After(time.Second):
		t.Fatal("auth failure did not reach the invalidation handler")
	}
}

func TestUpdate_RejectedWithoutCapability(t *testing.T) {
	store := storeWithTask(t, "1")
	before, _ := store.Get("1")
	updater := &fakeUpdater{}
	caps := fakeCaps{set: model.CapabilitySet{CanMoveStatus: true}}

	c := New(store, updater, caps, &fakeNotifier{})

	title := "edited"
	err := c.Update("1", taskstore.Patch{Title: &title})

	var perm *session.PermissionError
	if !errors.As(err, &perm) {
		t.Fatalf("expected PermissionError, got %v", err)
	}
	if updater.callCount() != 0 {
		t.Error("rejected edit reached the network")
	}
	if got, _ := store.Get("1"); got != before {
		t.Error("rejected edit changed the store")
	}
}

func TestUpdate_EmptyPatchIsNoOp(t *testing.T) {
	store := storeWithTask(t, "1")
	updater := &fakeUpdater{}

	c := New(store, updater, allCaps(), &fakeNotifier{})

	if err := c.Update("1", taskstore.Patch{}); err != nil {
		t.Fatalf("empty update: %v", err)
	}
	if updater.callCount() != 0 {
		t.Error("empty edit reached the network")
	}
}

func TestQueuedMutation_CarriesPriorConfirmedBase(t *testing.T) {
	store := storeWithTask(t, "1")
	release := make(chan struct{})
	updater := &fakeUpdater{}
	updater.respond = func(sent model.Task) (*model.Task, error) {
		if updater.callCount() == 1 {
			<-release // hold the first confirmation open
			confirmed := sent
			confirmed.Description = "set by the server" // server-side change
			confirmed.UpdatedAt = sent.UpdatedAt.Add(time.Second)
			return &confirmed, nil
		}
		confirmed := sent
		confirmed.UpdatedAt = sent.UpdatedAt.Add(time.Second)
		return &confirmed, nil
	}

	c := New(store, updater, allCaps(), &fakeNotifier{})

	if err := c.MoveStatus("1", model.StatusInProgress); err != nil {
		t.Fatalf("first move: %v", err)
	}
	title := "Edited while pending"
	if err := c.Update("1", taskstore.Patch{Title: &title}); err != nil {
		t.Fatalf("queued update: %v", err)
	}
	close(release)

	first := awaitResult(t, c)
	second := awaitResult(t, c)
	if first.State != StateConfirmed || second.State != StateConfirmed {
		t.Fatalf("states = %v, %v, want both Confirmed", first.State, second.State)
	}

	if updater.callCount() != 2 {
		t.Fatalf("updater calls = %d, want 2", updater.callCount())
	}
	sent := updater.call(1)
	if sent.Status != model.StatusInProgress {
		t.Errorf("second mutation lost the first's confirmed status: %s", sent.Status)
	}
	if sent.Description != "set by the server" {
		t.Errorf("second mutation did not build on the server's confirmed record: %q", sent.Description)
	}
	if sent.Title != title {
		t.Errorf("second mutation lost its own edit: %q", sent.Title)
	}
}
