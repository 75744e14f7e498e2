package app

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/mutation"
	"github.com/nhle/taskboard/internal/push"
	"github.com/nhle/taskboard/internal/session"
)

// toastMsg carries a user-facing notification.
type toastMsg struct {
	text  string
	isErr bool
}

// toastNotifier adapts the coordinator's Notifier interface onto the
// app's toast channel. Sends never block.
type toastNotifier struct {
	ch chan toastMsg
}

func (n *toastNotifier) Success(msg string) {
	select {
	case n.ch <- toastMsg{text: msg}:
	default:
	}
}

func (n *toastNotifier) Error(msg string) {
	select {
	case n.ch <- toastMsg{text: msg, isErr: true}:
	default:
	}
}

// sessionEventMsg wraps a session lifecycle event for the runtime.
type sessionEventMsg struct {
	Event session.Event
}

// sessionResumeFailedMsg reports that the stored token did not resume a
// session.
type sessionResumeFailedMsg struct {
	Err error
}

// storeChangedMsg signals that the task store mutated.
type storeChangedMsg struct{}

// pushNoticeMsg wraps a push manager notice.
type pushNoticeMsg struct {
	Notice push.Notice
}

// mutationResultMsg wraps a terminal mutation result.
type mutationResultMsg struct {
	Result mutation.Result
}

// cachedSnapshotMsg carries the last persisted snapshot.
type cachedSnapshotMsg struct {
	Tasks   []model.Task
	SavedAt time.Time
}

// tasksFetchedMsg carries a live task fetch.
type tasksFetchedMsg struct {
	Tasks []model.Task
	Err   error
}

// usersFetchedMsg carries the account list.
type usersFetchedMsg struct {
	Users []model.User
	Err   error
}

// taskDeletedMsg reports the outcome of a delete call.
type taskDeletedMsg struct {
	TaskID string
	Err    error
}

// waitToast returns a command that delivers the next toast.
func (m Model) waitToast() tea.Cmd {
	ch := m.toasts
	return func() tea.Msg {
		return <-ch
	}
}

// waitSession returns a command that delivers the next session event.
func (m Model) waitSession() tea.Cmd {
	ch := m.sessionCh
	return func() tea.Msg {
		return sessionEventMsg{Event: <-ch}
	}
}

// waitStore returns a command that fires when the store changes.
func (m Model) waitStore() tea.Cmd {
	ch := m.store.Watch()
	return func() tea.Msg {
		<-ch
		return storeChangedMsg{}
	}
}

// waitNotice returns a command that delivers the next manager notice.
func (m Model) waitNotice() tea.Cmd {
	ch := m.manager.Notices()
	return func() tea.Msg {
		return pushNoticeMsg{Notice: <-ch}
	}
}

// waitResult returns a command that delivers the next mutation result.
func (m Model) waitResult() tea.Cmd {
	ch := m.coordinator.Results()
	return func() tea.Msg {
		return mutationResultMsg{Result: <-ch}
	}
}
