package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskboard/internal/api"
	"github.com/nhle/taskboard/internal/keys"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/theme"
)

// ClosedMsg is sent when the admin view is dismissed.
type ClosedMsg struct{}

// loadedMsg carries the privileged fetch results.
type loadedMsg struct {
	Users []model.User
	Tasks []model.Task
	Err   error
}

// Model is the admin dashboard: every user and every task in the
// system, via the privileged fetch-all endpoint.
type Model struct {
	client  *api.Client
	keys    *keys.KeyMap
	users   []model.User
	tasks   []model.Task
	loading bool
	errText string
	width   int
	height  int
}

// New creates the admin view.
func New(client *api.Client, k *keys.KeyMap, width, height int) Model {
	return Model{
		client: client,
		keys:   k,
		width:  width,
		height: height,
	}
}

// Open starts loading the dashboard data.
func (m *Model) Open() tea.Cmd {
	m.loading = true
	m.errText = ""
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		users, err := client.Users(ctx)
		if err != nil {
			return loadedMsg{Err: err}
		}
		tasks, err := client.AllTasks(ctx)
		if err != nil {
			return loadedMsg{Err: err}
		}
		return loadedMsg{Users: users, Tasks: tasks}
	}
}

// Update handles data arrival and dismissal.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg:
		m.loading = false
		if msg.Err != nil {
			m.errText = api.UserMessage(msg.Err)
			return m, nil
		}
		m.users = msg.Users
		m.tasks = msg.Tasks
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Back) {
			return m, func() tea.Msg { return ClosedMsg{} }
		}
	}
	return m, nil
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// View renders user and task summaries.
func (m Model) View() string {
	parts := []string{theme.HeaderStyle.Render("Admin dashboard"), ""}

	if m.loading {
		parts = append(parts, "loading...")
	} else if m.errText != "" {
		parts = append(parts, theme.ErrorStyle.Render(m.errText))
	} else {
		parts = append(parts, theme.ColumnTitleStyle.Render(fmt.Sprintf("Users (%d)", len(m.users))))
		for _, u := range m.users {
			parts = append(parts, theme.CardStyle.Render(
				fmt.Sprintf("%s <%s> %s", u.Username, u.Email, u.Role)))
		}

		counts := make(map[model.Status]int)
		for _, t := range m.tasks {
			counts[t.Status]++
		}
		parts = append(parts, "", theme.ColumnTitleStyle.Render(fmt.Sprintf("Tasks (%d)", len(m.tasks))))
		for _, s := range model.Statuses {
			parts = append(parts, theme.CardStyle.Render(
				fmt.Sprintf("%s: %d", s, counts[s])))
		}
	}

	parts = append(parts, "", theme.HelpStyle.Render("esc: back"))
	content := lipgloss.JoinVertical(lipgloss.Left, parts...)
	return theme.DetailPanelStyle.Width(m.width - 4).Render(content)
}
