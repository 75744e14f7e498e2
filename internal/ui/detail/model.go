package detail

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskboard/internal/api"
	"github.com/nhle/taskboard/internal/keys"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/session"
	"github.com/nhle/taskboard/internal/taskstore"
	"github.com/nhle/taskboard/internal/theme"
)

// ClosedMsg is sent when the detail view is dismissed.
type ClosedMsg struct {
	TaskID string
}

// threadLoadedMsg carries the fetched comments and activities.
type threadLoadedMsg struct {
	TaskID     string
	Comments   []model.Comment
	Activities []model.Activity
	Err        error
}

// commentPostedMsg reports the outcome of an add/update/delete call.
type commentPostedMsg struct {
	TaskID string
	Err    error
}

// fetchTimeout bounds thread fetches and comment calls.
const fetchTimeout = 30 * time.Second

// Model is the task detail view: full task fields plus the comment
// thread and activity feed, both re-fetched when push traffic hints at
// changes.
type Model struct {
	client  *api.Client
	store   *taskstore.Store
	sess    *session.Session
	keys    *keys.KeyMap
	spinner spinner.Model
	input   textarea.Model

	taskID     string
	comments   []model.Comment
	activities []model.Activity
	cursor     int
	loading    bool
	composing  bool
	editingID  string
	errText    string
	width      int
	height     int
}

// New creates a detail view backed by the API client and store.
func New(client *api.Client, s *taskstore.Store, sess *session.Session, k *keys.KeyMap, width, height int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	ta := textarea.New()
	ta.Placeholder = "write a comment..."
	ta.SetHeight(3)

	return Model{
		client:  client,
		store:   s,
		sess:    sess,
		keys:    k,
		spinner: sp,
		input:   ta,
		width:   width,
		height:  height,
	}
}

// Open points the view at a task and starts loading its thread. The
// caller is responsible for subscribing the per-task push topics.
func (m *Model) Open(taskID string) tea.Cmd {
	m.taskID = taskID
	m.comments = nil
	m.activities = nil
	m.cursor = 0
	m.loading = true
	m.composing = false
	m.editingID = ""
	m.errText = ""
	return tea.Batch(m.spinner.Tick, m.loadThread())
}

// TaskID returns the currently open task id, empty when closed.
func (m Model) TaskID() string {
	return m.taskID
}

// Reload re-fetches the comment thread and activity feed. Called when
// the push manager signals traffic on this task's topics.
func (m *Model) Reload() tea.Cmd {
	if m.taskID == "" {
		return nil
	}
	return m.loadThread()
}

// loadThread fetches comments and activities together.
func (m Model) loadThread() tea.Cmd {
	taskID := m.taskID
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		comments, err := client.TaskComments(ctx, taskID)
		if err != nil {
			return threadLoadedMsg{TaskID: taskID, Err: err}
		}
		activities, err := client.TaskActivities(ctx, taskID)
		if err != nil {
			return threadLoadedMsg{TaskID: taskID, Err: err}
		}
		return threadLoadedMsg{TaskID: taskID, Comments: comments, Activities: activities}
	}
}

// Update handles thread loading, comment composition, and dismissal.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case threadLoadedMsg:
		if msg.TaskID != m.taskID {
			return m, nil
		}
		m.loading = false
		if msg.Err != nil {
			m.errText = api.UserMessage(msg.Err)
			return m, nil
		}
		m.comments = msg.Comments
		m.activities = msg.Activities
		if m.cursor >= len(m.comments) {
			m.cursor = len(m.comments) - 1
		}
		if m.cursor < 0 {
			m.cursor = 0
		}
		return m, nil

	case commentPostedMsg:
		if msg.TaskID != m.taskID {
			return m, nil
		}
		if msg.Err != nil {
			m.errText = api.UserMessage(msg.Err)
			return m, nil
		}
		return m, m.loadThread()

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if m.composing {
		switch msg.String() {
		case "esc":
			m.composing = false
			m.editingID = ""
			m.input.Reset()
			return m, nil
		case "ctrl+s":
			body := m.input.Value()
			editingID := m.editingID
			m.composing = false
			m.editingID = ""
			m.input.Reset()
			if body == "" {
				return m, nil
			}
			if editingID != "" {
				return m, m.updateComment(editingID, body)
			}
			return m, m.postComment(body)
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Back):
		taskID := m.taskID
		m.taskID = ""
		return m, func() tea.Msg { return ClosedMsg{TaskID: taskID} }

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.comments)-1 {
			m.cursor++
		}
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case key.Matches(msg, m.keys.Comment):
		if !m.sess.Capabilities().CanComment {
			m.errText = "commenting is not permitted for your role"
			return m, nil
		}
		m.composing = true
		m.errText = ""
		return m, m.input.Focus()

	case key.Matches(msg, m.keys.EditTask):
		c, ok := m.selectedComment()
		if !ok {
			return m, nil
		}
		if !m.sess.CanEditComment(c) {
			m.errText = "only the author or an admin may edit a comment"
			return m, nil
		}
		m.composing = true
		m.editingID = c.ID
		m.errText = ""
		m.input.SetValue(c.Body)
		return m, m.input.Focus()

	case key.Matches(msg, m.keys.DeleteTask):
		c, ok := m.selectedComment()
		if !ok {
			return m, nil
		}
		if !m.sess.CanEditComment(c) {
			m.errText = "only the author or an admin may delete a comment"
			return m, nil
		}
		m.errText = ""
		return m, m.deleteComment(c.ID)
	}

	return m, nil
}

func (m Model) selectedComment() (model.Comment, bool) {
	if m.cursor < 0 || m.cursor >= len(m.comments) {
		return model.Comment{}, false
	}
	return m.comments[m.cursor], true
}

// postComment sends the comment and reloads the thread on success.
func (m Model) postComment(body string) tea.Cmd {
	taskID := m.taskID
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		_, err := client.AddComment(ctx, taskID, body)
		return commentPostedMsg{TaskID: taskID, Err: err}
	}
}

// updateComment replaces a comment's body. The server enforces
// ownership again; the local gate is CanEditComment.
func (m Model) updateComment(commentID, body string) tea.Cmd {
	taskID := m.taskID
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		_, err := client.UpdateComment(ctx, commentID, body)
		return commentPostedMsg{TaskID: taskID, Err: err}
	}
}

// deleteComment removes a comment and reloads the thread.
func (m Model) deleteComment(commentID string) tea.Cmd {
	taskID := m.taskID
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		err := client.DeleteComment(ctx, commentID)
		return commentPostedMsg{TaskID: taskID, Err: err}
	}
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.SetWidth(width - 8)
}

// View renders the task, its comment thread, and the activity feed.
func (m Model) View() string {
	t, ok := m.store.Get(m.taskID)
	if !ok {
		return theme.DetailPanelStyle.Render("task no longer exists")
	}

	header := theme.HeaderStyle.Render(t.Title)
	meta := fmt.Sprintf("%s  %s",
		theme.StatusStyle(t.Status).Render(string(t.Status)),
		theme.PriorityStyle(t.Priority).Render(string(t.Priority)))
	if t.AssigneeName != "" {
		meta += theme.HelpStyle.Render("  @" + t.AssigneeName)
	}

	parts := []string{header, meta, "", t.Description, ""}

	if m.loading {
		parts = append(parts, m.spinner.View()+" loading thread...")
	} else {
		parts = append(parts, theme.ColumnTitleStyle.Render(fmt.Sprintf("Comments (%d)", len(m.comments))))
		for i, c := range m.comments {
			line := fmt.Sprintf("%s: %s", c.Username, c.Body)
			if m.sess.CanEditComment(c) {
				line += theme.HelpStyle.Render(" (e: edit  d: delete)")
			}
			style := theme.CardStyle
			if i == m.cursor {
				style = theme.SelectedCardStyle
			}
			parts = append(parts, style.Render(line))
		}

		parts = append(parts, "", theme.ColumnTitleStyle.Render("Activity"))
		for _, a := range m.activities {
			parts = append(parts, theme.HelpStyle.Render(
				fmt.Sprintf("%s %s %s", a.Timestamp.Format("Jan 2 15:04"), a.Username, a.Description)))
		}
	}

	if m.composing {
		parts = append(parts, "", m.input.View(),
			theme.HelpStyle.Render("ctrl+s: post  esc: cancel"))
	}
	if m.errText != "" {
		parts = append(parts, "", theme.ErrorStyle.Render(m.errText))
	}

	content := lipgloss.JoinVertical(lipgloss.Left, parts...)
	return theme.DetailPanelStyle.Width(m.width - 4).Render(content)
}
