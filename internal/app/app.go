// Package app is the root Bubble Tea model: it wires the session, REST
// client, task store, push manager, and mutation coordinator together
// and routes between the login, board, detail, form, and admin views.
package app

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskboard/internal/api"
	"github.com/nhle/taskboard/internal/cache"
	"github.com/nhle/taskboard/internal/keys"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/mutation"
	"github.com/nhle/taskboard/internal/push"
	"github.com/nhle/taskboard/internal/session"
	"github.com/nhle/taskboard/internal/taskstore"
	"github.com/nhle/taskboard/internal/theme"
	"github.com/nhle/taskboard/internal/ui/admin"
	"github.com/nhle/taskboard/internal/ui/board"
	"github.com/nhle/taskboard/internal/ui/detail"
	"github.com/nhle/taskboard/internal/ui/login"
	"github.com/nhle/taskboard/internal/ui/taskform"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewLogin ViewState = iota
	ViewBoard
	ViewDetail
	ViewForm
	ViewAdmin
)

// Model is the root application model.
type Model struct {
	cfg         *model.AppConfig
	sess        *session.Session
	client      *api.Client
	store       *taskstore.Store
	snapshots   *cache.Cache
	transport   push.Transport
	manager     *push.Manager
	coordinator *mutation.Coordinator
	keys        *keys.KeyMap

	currentView ViewState
	loginView   login.Model
	boardView   board.Model
	detailView  detail.Model
	formView    taskform.Model
	adminView   admin.Model

	users    []model.User
	toast    string
	toastErr bool
	width    int
	height   int

	toasts    chan toastMsg
	sessionCh chan session.Event
}

// Deps bundles the long-lived collaborators the root model is built
// over. The snapshot cache may be nil when no cache path is usable.
type Deps struct {
	Config    *model.AppConfig
	Session   *session.Session
	Client    *api.Client
	Store     *taskstore.Store
	Cache     *cache.Cache
	Transport push.Transport
}

// New creates the root model and installs the cross-component plumbing:
// the coordinator's notifier and auth handler, the push manager, and
// the session listener.
func New(d Deps) Model {
	k := keys.DefaultKeyMap()

	m := Model{
		cfg:       d.Config,
		sess:      d.Session,
		client:    d.Client,
		store:     d.Store,
		snapshots: d.Cache,
		transport: d.Transport,
		manager:   push.NewManager(d.Transport, d.Store),
		keys:      k,
		toasts:    make(chan toastMsg, 16),
		sessionCh: make(chan session.Event, 4),
	}

	notifier := &toastNotifier{ch: m.toasts}
	m.coordinator = mutation.New(
		d.Store,
		d.Client,
		d.Session,
		notifier,
		mutation.WithTimeout(time.Duration(d.Config.Server.ConfirmTimeoutSec)*time.Second),
		mutation.WithAuthHandler(func(reason string) {
			d.Session.Invalidate(reason)
		}),
	)

	// Session events arrive via callback; bridge them onto a channel
	// the Bubble Tea runtime can wait on.
	d.Session.Subscribe(func(ev session.Event) {
		select {
		case m.sessionCh <- ev:
		default:
		}
	})

	m.currentView = ViewLogin
	m.loginView = login.New(d.Client, 80, 24)
	m.boardView = board.New(d.Store, m.coordinator, k, 80, 24)
	m.detailView = detail.New(d.Client, d.Store, d.Session, k, 80, 24)
	m.formView = taskform.New(d.Client, m.coordinator, 80, 24)
	m.adminView = admin.New(d.Client, k, 80, 24)

	return m
}

// Init resumes a stored session if the credential is still valid,
// otherwise shows the login form. The cached snapshot renders
// immediately either way.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.loginView.Init(),
		m.waitToast(),
		m.waitSession(),
		m.waitStore(),
		m.waitNotice(),
		m.waitResult(),
	}
	if m.snapshots != nil {
		cmds = append(cmds, m.loadCachedSnapshot())
	}
	if m.sess.Token() != "" {
		cmds = append(cmds, m.resumeSession())
	}
	return tea.Batch(cmds...)
}

// resumeSession validates the stored token against /users/current.
func (m Model) resumeSession() tea.Cmd {
	client := m.client
	token := m.sess.Token()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		user, err := client.CurrentUser(ctx)
		if err != nil {
			return sessionResumeFailedMsg{Err: err}
		}
		return login.LoggedInMsg{Result: api.LoginResult{Token: token, User: *user}}
	}
}

// loadCachedSnapshot pre-fills the store from the last saved snapshot,
// flagged stale until the first live fetch.
func (m Model) loadCachedSnapshot() tea.Cmd {
	snapshots := m.snapshots
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		tasks, savedAt, err := snapshots.LoadSnapshot(ctx)
		if err != nil || len(tasks) == 0 {
			return nil
		}
		return cachedSnapshotMsg{Tasks: tasks, SavedAt: savedAt}
	}
}

// Update routes messages to the active view and handles the
// cross-cutting ones.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.loginView.SetSize(msg.Width, msg.Height)
		m.boardView.SetSize(msg.Width, msg.Height-2)
		m.detailView.SetSize(msg.Width, msg.Height-2)
		m.formView.SetSize(msg.Width, msg.Height)
		m.adminView.SetSize(msg.Width, msg.Height-2)
		return m, nil

	case toastMsg:
		m.toast = msg.text
		m.toastErr = msg.isErr
		return m, m.waitToast()

	case sessionEventMsg:
		return m.onSessionEvent(msg)

	case storeChangedMsg:
		m.boardView.Reproject()
		return m, m.waitStore()

	case pushNoticeMsg:
		return m.onPushNotice(msg)

	case mutationResultMsg:
		// Terminal mutation states surface through toasts already; the
		// result stream keeps the board reprojection prompt.
		m.boardView.Reproject()
		return m, m.waitResult()

	case cachedSnapshotMsg:
		// Never clobber live data with the cache.
		if m.store.Len() == 0 {
			m.store.LoadSnapshot(msg.Tasks)
			m.boardView.SetStale(true)
		}
		return m, nil

	case sessionResumeFailedMsg:
		if api.IsAuthError(msg.Err) {
			m.sess.Invalidate("stored credential rejected")
		}
		return m, nil

	case login.LoggedInMsg:
		return m.onLoggedIn(msg)

	case tasksFetchedMsg:
		return m.onTasksFetched(msg)

	case usersFetchedMsg:
		if msg.Err == nil {
			m.users = msg.Users
			m.boardView.SetUsers(msg.Users)
			m.formView.SetUsers(msg.Users)
		}
		return m, nil

	case board.SelectedTaskMsg:
		m.currentView = ViewDetail
		openCmd := m.detailView.Open(msg.TaskID)
		if err := m.manager.OpenTask(msg.TaskID); err != nil {
			m.toast = "push subscription failed; thread updates may lag"
			m.toastErr = true
		}
		return m, openCmd

	case board.MoveRejectedMsg:
		m.toast = msg.Reason
		m.toastErr = true
		return m, nil

	case detail.ClosedMsg:
		m.manager.CloseTask(msg.TaskID)
		m.currentView = ViewBoard
		return m, nil

	case taskform.TaskSavedMsg:
		m.currentView = ViewBoard
		m.store.Upsert(msg.Task)
		m.toast = "Task created"
		m.toastErr = false
		return m, nil

	case taskform.EditQueuedMsg:
		// The optimistic record is already in the store; the coordinator
		// toasts the confirm or rollback.
		m.currentView = ViewBoard
		m.boardView.Reproject()
		return m, nil

	case taskform.CancelMsg:
		m.currentView = ViewBoard
		return m, nil

	case admin.ClosedMsg:
		m.currentView = ViewBoard
		return m, nil

	case taskDeletedMsg:
		if msg.Err != nil {
			m.toast = api.UserMessage(msg.Err)
			m.toastErr = true
			if api.IsAuthError(msg.Err) {
				m.sess.Invalidate("credential rejected during task delete")
			}
		} else {
			m.store.Remove(msg.TaskID)
			m.toast = "Task deleted"
			m.toastErr = false
		}
		return m, nil

	case tea.KeyMsg:
		if handled, next, cmd := m.handleGlobalKey(msg); handled {
			return next, cmd
		}
	}

	return m.routeToView(msg)
}

// onLoggedIn installs the session and brings the live pipeline up.
func (m Model) onLoggedIn(msg login.LoggedInMsg) (tea.Model, tea.Cmd) {
	if err := m.sess.Begin(msg.Result.User, msg.Result.Token); err != nil {
		m.toast = "failed to store credential: " + err.Error()
		m.toastErr = true
	}
	m.currentView = ViewBoard

	transport := m.transport
	manager := m.manager
	connectCmd := func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := transport.Connect(ctx); err != nil {
			return toastMsg{text: "push channel unavailable; updates require manual refresh", isErr: true}
		}
		go manager.Run()
		if err := manager.EnterBoard(); err != nil {
			return toastMsg{text: "push subscription failed; updates require manual refresh", isErr: true}
		}
		return nil
	}

	return m, tea.Batch(connectCmd, m.fetchTasks(), m.fetchUsers())
}

// onSessionEvent reacts to session lifecycle changes; an ended session
// is the only condition that forces navigation away from the current
// view.
func (m Model) onSessionEvent(msg sessionEventMsg) (tea.Model, tea.Cmd) {
	if msg.Event.Kind == session.Ended {
		m.currentView = ViewLogin
		m.manager.Stop()
		m.store.LoadSnapshot(nil)
		if msg.Event.Reason != "" && msg.Event.Reason != "logout" {
			m.toast = "signed out: " + msg.Event.Reason
			m.toastErr = true
		}
		clearCmd := func() tea.Msg {
			if m.snapshots != nil {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = m.snapshots.Clear(ctx)
			}
			return nil
		}
		return m, tea.Batch(m.loginView.Init(), clearCmd, m.waitSession())
	}
	return m, m.waitSession()
}

// onPushNotice reacts to manager notices: staleness, recovery,
// re-fetch requests, and per-task thread traffic.
func (m Model) onPushNotice(msg pushNoticeMsg) (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{m.waitNotice()}

	switch msg.Notice.Kind {
	case push.NoticeStale:
		m.boardView.SetStale(true)

	case push.NoticeLive:
		m.boardView.SetStale(false)

	case push.NoticeRefetch:
		cmds = append(cmds, m.fetchTasks())

	case push.NoticeComments, push.NoticeActivities:
		if m.detailView.TaskID() == msg.Notice.TaskID {
			cmds = append(cmds, m.detailView.Reload())
		}
	}

	return m, tea.Batch(cmds...)
}

// onTasksFetched reconciles a live fetch into the store and cache.
func (m Model) onTasksFetched(msg tasksFetchedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.toast = api.UserMessage(msg.Err)
		m.toastErr = true
		if api.IsAuthError(msg.Err) {
			m.sess.Invalidate("credential rejected during task fetch")
		}
		return m, nil
	}

	m.store.LoadSnapshot(msg.Tasks)
	m.boardView.SetStale(m.manager.Stale())

	var saveCmd tea.Cmd
	if m.snapshots != nil {
		snapshots := m.snapshots
		tasks := msg.Tasks
		saveCmd = func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = snapshots.SaveSnapshot(ctx, tasks)
			return nil
		}
	}
	return m, saveCmd
}

// handleGlobalKey processes keys that apply regardless of view.
func (m Model) handleGlobalKey(msg tea.KeyMsg) (bool, tea.Model, tea.Cmd) {
	// Never steal keys from text entry.
	if m.currentView == ViewLogin || m.currentView == ViewForm {
		if msg.String() == "ctrl+c" {
			return true, m, tea.Quit
		}
		return false, m, nil
	}

	switch msg.String() {
	case "ctrl+c", "q":
		if m.currentView == ViewBoard {
			return true, m, tea.Quit
		}

	case "r":
		return true, m, m.fetchTasks()

	case "ctrl+l":
		m.sess.Invalidate("logout")
		return true, m, nil

	case "n":
		if m.currentView == ViewBoard && m.sess.Capabilities().CanCreateTasks {
			m.currentView = ViewForm
			return true, m, m.formView.StartCreate()
		}

	case "e":
		if m.currentView == ViewBoard && m.sess.Capabilities().CanUpdateTasks {
			if t, ok := m.boardView.Selected(); ok {
				m.currentView = ViewForm
				return true, m, m.formView.StartEdit(t)
			}
		}

	case "d":
		if m.currentView == ViewBoard && m.sess.Capabilities().CanDeleteTasks {
			if t, ok := m.boardView.Selected(); ok {
				return true, m, m.deleteTask(t.ID)
			}
		}

	case "A":
		if m.currentView == ViewBoard && m.sess.User() != nil && m.sess.User().Role == model.RoleAdmin {
			m.currentView = ViewAdmin
			return true, m, m.adminView.Open()
		}
	}

	return false, m, nil
}

// routeToView forwards a message to the active view's update function.
func (m Model) routeToView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.currentView {
	case ViewLogin:
		m.loginView, cmd = m.loginView.Update(msg)
	case ViewBoard:
		m.boardView, cmd = m.boardView.Update(msg)
	case ViewDetail:
		m.detailView, cmd = m.detailView.Update(msg)
	case ViewForm:
		m.formView, cmd = m.formView.Update(msg)
	case ViewAdmin:
		m.adminView, cmd = m.adminView.Update(msg)
	}
	return m, cmd
}

// deleteTask issues the remote delete; the store purge happens on the
// confirmed response (or via the push-delivered TASK_DELETED event,
// whichever lands first; Remove is idempotent).
func (m Model) deleteTask(id string) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		err := client.DeleteTask(ctx, id)
		return taskDeletedMsg{TaskID: id, Err: err}
	}
}

// fetchTasks loads the user's tasks from the server.
func (m Model) fetchTasks() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		tasks, err := client.MyTasks(ctx, api.TaskFilter{})
		return tasksFetchedMsg{Tasks: tasks, Err: err}
	}
}

// fetchUsers loads the accounts used for assignment and filtering.
func (m Model) fetchUsers() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		users, err := client.Users(ctx)
		return usersFetchedMsg{Users: users, Err: err}
	}
}

// View renders the active view plus the toast/status line.
func (m Model) View() string {
	var body string
	switch m.currentView {
	case ViewLogin:
		body = m.loginView.View()
	case ViewBoard:
		body = m.boardView.View()
	case ViewDetail:
		body = m.detailView.View()
	case ViewForm:
		body = m.formView.View()
	case ViewAdmin:
		body = m.adminView.View()
	}

	status := ""
	if m.toast != "" {
		if m.toastErr {
			status = theme.ErrorStyle.Render(m.toast)
		} else {
			status = theme.SuccessStyle.Render(m.toast)
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, body, status)
}
