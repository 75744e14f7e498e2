// Package session owns the authenticated identity and its derived
// capability set. It replaces scattered role checks with a single
// resolver, and funnels every authentication failure through one
// invalidation path so components never race on redirects.
package session

import (
	"sync"

	"github.com/nhle/taskboard/internal/credential"
	"github.com/nhle/taskboard/internal/model"
)

// EventKind distinguishes session lifecycle notifications.
type EventKind int

const (
	// Began fires after a successful login once the identity and
	// capability set are installed.
	Began EventKind = iota

	// Ended fires when the session is invalidated, whether by explicit
	// logout or a rejected credential.
	Ended
)

// Event is the typed notification delivered to session listeners.
type Event struct {
	Kind   EventKind
	User   *model.User
	Reason string
}

// Listener receives session lifecycle events.
type Listener func(Event)

// Session is the process-wide session context: the current user, their
// capability set, and the credential store. It is written only by the
// login/logout flow; everything else reads.
type Session struct {
	mu        sync.Mutex
	creds     credential.Store
	table     CapabilityTable
	user      *model.User
	caps      model.CapabilitySet
	listeners []Listener
}

// New creates an unauthenticated session backed by the given credential
// store and capability table.
func New(creds credential.Store, table CapabilityTable) *Session {
	if table == nil {
		table = DefaultTable
	}
	return &Session{
		creds: creds,
		table: table,
	}
}

// Begin installs the authenticated identity, persists the token, and
// notifies listeners. Called only by the login flow.
func (s *Session) Begin(user model.User, token string) error {
	if err := s.creds.SetToken(token); err != nil {
		return err
	}

	s.mu.Lock()
	u := user
	s.user = &u
	s.caps = s.table.Resolve(user.Role)
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	for _, l := range listeners {
		l(Event{Kind: Began, User: &u})
	}
	return nil
}

// Invalidate tears down the session: clears the stored token, drops the
// identity, and notifies listeners once. Safe to call from any
// component on an authentication failure; invalidating an already
// ended session is a no-op.
func (s *Session) Invalidate(reason string) {
	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return
	}
	s.user = nil
	s.caps = model.CapabilitySet{}
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	_ = s.creds.Clear()

	for _, l := range listeners {
		l(Event{Kind: Ended, Reason: reason})
	}
}

// Subscribe registers a listener for session lifecycle events.
func (s *Session) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// User returns the current identity, or nil when unauthenticated.
func (s *Session) User() *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Authenticated reports whether a user is logged in.
func (s *Session) Authenticated() bool {
	return s.User() != nil
}

// Capabilities returns the current capability set. The zero set when
// unauthenticated.
func (s *Session) Capabilities() model.CapabilitySet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.caps
}

// Token reads the stored bearer token; empty when none is stored. Shaped
// for use as an api.TokenSource.
func (s *Session) Token() string {
	token, err := s.creds.Token()
	if err != nil {
		return ""
	}
	return token
}

// CanEditComment reports whether the current user may edit or delete
// the given comment: its author, or any admin.
func (s *Session) CanEditComment(c model.Comment) bool {
	u := s.User()
	if u == nil {
		return false
	}
	return u.Role == model.RoleAdmin || u.Username == c.Username
}
