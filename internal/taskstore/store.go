// Package taskstore holds the canonical local task collection and
// reconciles three inputs against it: optimistic local edits, REST
// confirmations, and push-delivered deltas. Precedence: a remote delta
// never overwrites a field with an optimistic mutation in flight; the
// conflicting part is held back and replayed once the mutation resolves,
// unless the confirmed server state is already newer.
package taskstore

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nhle/taskboard/internal/model"
)

// ErrMutationInFlight is returned by ApplyLocalMutation when the task
// already has an unresolved optimistic mutation. Callers queue, never
// interleave.
var ErrMutationInFlight = errors.New("mutation already in flight")

// NotFoundError indicates the task id is absent from the store.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("task %s not in store", e.ID)
}

// IsNotFound reports whether err chains to a store NotFoundError.
func IsNotFound(err error) bool {
	var nfErr *NotFoundError
	return errors.As(err, &nfErr)
}

// heldDelta is the conflicting part of a remote delta parked while a
// local mutation is in flight, stamped with the delta's server time.
type heldDelta struct {
	patch Patch
	at    time.Time
}

// entry wraps a task with its reconciliation bookkeeping.
type entry struct {
	task     model.Task
	inflight map[Field]bool // nil when no optimistic mutation pending
	held     []heldDelta
}

// Store is the in-memory task collection for the active view. All
// methods are safe for concurrent use; each serializes on the store
// mutex so readers never observe a torn write. Insertion order is
// preserved for stable column rendering.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	order   []string
	watch   chan struct{}
}

// New returns an empty store.
func New() *Store {
	return &Store{
		entries: make(map[string]*entry),
		watch:   make(chan struct{}, 1),
	}
}

// Watch returns a coalescing change signal: the channel receives after
// any mutation, with pending notifications collapsed into one.
func (s *Store) Watch() <-chan struct{} {
	return s.watch
}

// notify signals watchers without blocking; a pending signal already
// covers this change.
func (s *Store) notify() {
	select {
	case s.watch <- struct{}{}:
	default:
	}
}

// LoadSnapshot replaces the full collection, dropping any in-flight
// bookkeeping and held deltas. Used after an initial or recovery fetch;
// subsequent reads reflect exactly this set until mutated.
func (s *Store) LoadSnapshot(tasks []model.Task) {
	s.mu.Lock()
	s.entries = make(map[string]*entry, len(tasks))
	s.order = s.order[:0]
	for _, t := range tasks {
		if _, ok := s.entries[t.ID]; ok {
			continue
		}
		s.entries[t.ID] = &entry{task: t}
		s.order = append(s.order, t.ID)
	}
	s.mu.Unlock()
	s.notify()
}

// Get returns a copy of the task with the given id.
func (s *Store) Get(id string) (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return model.Task{}, false
	}
	return e.task, true
}

// Snapshot returns copies of all tasks in insertion order.
func (s *Store) Snapshot() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	tasks := make([]model.Task, 0, len(s.order))
	for _, id := range s.order {
		tasks = append(tasks, s.entries[id].task)
	}
	return tasks
}

// Len returns the number of tasks held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// ApplyLocalMutation optimistically merges a partial update before
// remote confirmation and returns the pre-mutation snapshot for
// rollback. The patched fields are marked in flight until
// ConfirmMutation or RevertMutation resolves them. At most one mutation
// per task may be in flight; a second attempt returns
// ErrMutationInFlight.
func (s *Store) ApplyLocalMutation(id string, patch Patch) (model.Task, error) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		return model.Task{}, &NotFoundError{ID: id}
	}
	if e.inflight != nil {
		s.mu.Unlock()
		return model.Task{}, ErrMutationInFlight
	}

	prior := e.task
	e.inflight = make(map[Field]bool)
	for _, f := range patch.Fields() {
		e.inflight[f] = true
	}
	patch.apply(&e.task)
	s.mu.Unlock()

	s.notify()
	return prior, nil
}

// ConfirmMutation replaces the optimistic record with the
// server-confirmed one, resolving any field-level divergence in the
// server's favor, then replays held deltas still newer than the
// confirmed state.
func (s *Store) ConfirmMutation(id string, canonical model.Task) {
	s.resolveMutation(id, canonical)
}

// RevertMutation restores the pre-mutation snapshot after a failed
// remote confirmation, then replays held deltas newer than it.
func (s *Store) RevertMutation(id string, prior model.Task) {
	s.resolveMutation(id, prior)
}

func (s *Store) resolveMutation(id string, resolved model.Task) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok {
		// Task removed while the mutation was pending; nothing to restore.
		s.mu.Unlock()
		return
	}

	e.task = resolved
	e.inflight = nil

	// Replay deltas that are still outstanding relative to the resolved
	// state; older ones are stale and dropped.
	held := e.held
	e.held = nil
	for _, h := range held {
		if !h.at.After(resolved.UpdatedAt) {
			continue
		}
		h.patch.apply(&e.task)
	}
	s.mu.Unlock()

	s.notify()
}

// ApplyRemoteDelta merges a push-delivered partial update. Fields under
// an in-flight mutation are held back and reconciled when the mutation
// resolves; everything else merges immediately unless the delta is
// older than the record it would overwrite.
func (s *Store) ApplyRemoteDelta(id string, patch Patch) error {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		return &NotFoundError{ID: id}
	}

	// A delta older than what we already hold is stale. This applies
	// while a mutation is in flight too: local patches never touch
	// UpdatedAt, so it reflects the last server-confirmed record either
	// way, and merging an old delta's free fields would also regress the
	// timestamp used to judge every later delta.
	if patch.UpdatedAt != nil && !patch.UpdatedAt.After(e.task.UpdatedAt) {
		s.mu.Unlock()
		return nil
	}

	free, held := patch, Patch{}
	if e.inflight != nil {
		free, held = patch.split(e.inflight)
	}

	changed := false
	if !free.Empty() || (e.inflight == nil && free.UpdatedAt != nil) {
		free.apply(&e.task)
		changed = true
	}
	if !held.Empty() {
		at := time.Now()
		if held.UpdatedAt != nil {
			at = *held.UpdatedAt
		}
		e.held = append(e.held, heldDelta{patch: held, at: at})
	}
	s.mu.Unlock()

	if changed {
		s.notify()
	}
	return nil
}

// Upsert inserts a task or, when it already exists, merges the record
// as a full-field remote delta so in-flight mutations keep precedence.
func (s *Store) Upsert(t model.Task) {
	s.mu.Lock()
	if _, ok := s.entries[t.ID]; ok {
		s.mu.Unlock()
		_ = s.ApplyRemoteDelta(t.ID, TaskPatch(t))
		return
	}
	s.entries[t.ID] = &entry{task: t}
	s.order = append(s.order, t.ID)
	s.mu.Unlock()
	s.notify()
}

// Remove purges a task along with its bookkeeping. Idempotent: removing
// an absent id is a no-op.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	if _, ok := s.entries[id]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.entries, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	s.notify()
}

// InFlight reports whether the task has an unresolved optimistic
// mutation.
func (s *Store) InFlight(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	return ok && e.inflight != nil
}
