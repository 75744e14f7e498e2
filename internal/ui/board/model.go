package board

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskboard/internal/keys"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/mutation"
	"github.com/nhle/taskboard/internal/taskstore"
	"github.com/nhle/taskboard/internal/theme"
)

// SelectedTaskMsg is sent when the user opens a task's detail view.
type SelectedTaskMsg struct {
	TaskID string
}

// MoveRejectedMsg is sent when a move was blocked client-side.
type MoveRejectedMsg struct {
	Reason string
}

// Model is the kanban board view: three status columns projected from
// the task store, with keyboard-driven card movement.
type Model struct {
	store       *taskstore.Store
	coordinator *mutation.Coordinator
	keys        *keys.KeyMap
	users       []model.User

	statusFilter   taskstore.StatusFilter
	assigneeFilter taskstore.AssigneeFilter
	assigneeCycle  []taskstore.AssigneeFilter

	board    taskstore.Board
	col      int // focused column index into model.Statuses
	row      int // focused card within the column
	stale    bool
	width    int
	height   int
}

// New creates the board view over the given store and coordinator.
func New(s *taskstore.Store, c *mutation.Coordinator, k *keys.KeyMap, width, height int) Model {
	m := Model{
		store:          s,
		coordinator:    c,
		keys:           k,
		statusFilter:   taskstore.FilterAll,
		assigneeFilter: taskstore.AssigneeAll,
		assigneeCycle:  []taskstore.AssigneeFilter{taskstore.AssigneeAll, taskstore.AssigneeUnassigned},
		width:          width,
		height:         height,
	}
	m.Reproject()
	return m
}

// SetUsers installs the known users for the assignee filter cycle.
func (m *Model) SetUsers(users []model.User) {
	m.users = users
	m.assigneeCycle = []taskstore.AssigneeFilter{taskstore.AssigneeAll, taskstore.AssigneeUnassigned}
	for _, u := range users {
		m.assigneeCycle = append(m.assigneeCycle, taskstore.AssigneeFilter(u.ID))
	}
}

// SetStale toggles the stale banner.
func (m *Model) SetStale(stale bool) {
	m.stale = stale
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// Reproject recomputes the board from the store's current snapshot.
// Called whenever the store signals a change.
func (m *Model) Reproject() {
	m.board = taskstore.ProjectStore(m.store, m.statusFilter, m.assigneeFilter)
	m.clampCursor()
}

func (m *Model) clampCursor() {
	if m.col < 0 {
		m.col = 0
	}
	if m.col >= len(model.Statuses) {
		m.col = len(model.Statuses) - 1
	}
	column := m.board[model.Statuses[m.col]]
	if m.row >= len(column) {
		m.row = len(column) - 1
	}
	if m.row < 0 {
		m.row = 0
	}
}

// Selected returns the focused task, if any.
func (m Model) Selected() (model.Task, bool) {
	return m.selected()
}

// selected returns the focused task, if any.
func (m *Model) selected() (model.Task, bool) {
	column := m.board[model.Statuses[m.col]]
	if m.row < 0 || m.row >= len(column) {
		return model.Task{}, false
	}
	return column[m.row], true
}

// Update handles board navigation and card movement.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, m.keys.Down):
		m.row++
		m.clampCursor()

	case key.Matches(keyMsg, m.keys.Up):
		m.row--
		m.clampCursor()

	case key.Matches(keyMsg, m.keys.Left):
		m.col--
		m.row = 0
		m.clampCursor()

	case key.Matches(keyMsg, m.keys.Right):
		m.col++
		m.row = 0
		m.clampCursor()

	case key.Matches(keyMsg, m.keys.MoveLeft):
		return m, m.moveSelected(-1)

	case key.Matches(keyMsg, m.keys.MoveRight):
		return m, m.moveSelected(+1)

	case key.Matches(keyMsg, m.keys.CycleStatusFilter):
		m.statusFilter = nextStatusFilter(m.statusFilter)
		m.Reproject()

	case key.Matches(keyMsg, m.keys.CycleAssigneeFilter):
		m.assigneeFilter = m.nextAssigneeFilter()
		m.Reproject()

	case key.Matches(keyMsg, m.keys.Select):
		if t, ok := m.selected(); ok {
			id := t.ID
			return m, func() tea.Msg { return SelectedTaskMsg{TaskID: id} }
		}
	}

	return m, nil
}

// moveSelected moves the focused card one column in the given
// direction through the coordinator. The store updates optimistically;
// rejection never reaches the network.
func (m Model) moveSelected(direction int) tea.Cmd {
	t, ok := m.selected()
	if !ok {
		return nil
	}

	idx := statusIndex(t.Status) + direction
	if idx < 0 || idx >= len(model.Statuses) {
		return nil
	}
	target := model.Statuses[idx]

	return func() tea.Msg {
		if err := m.coordinator.MoveStatus(t.ID, target); err != nil {
			return MoveRejectedMsg{Reason: err.Error()}
		}
		return nil
	}
}

func statusIndex(s model.Status) int {
	for i, st := range model.Statuses {
		if st == s {
			return i
		}
	}
	return 0
}

func nextStatusFilter(f taskstore.StatusFilter) taskstore.StatusFilter {
	cycle := []taskstore.StatusFilter{
		taskstore.FilterAll,
		taskstore.StatusFilter(model.StatusTodo),
		taskstore.StatusFilter(model.StatusInProgress),
		taskstore.StatusFilter(model.StatusDone),
	}
	for i, c := range cycle {
		if c == f {
			return cycle[(i+1)%len(cycle)]
		}
	}
	return taskstore.FilterAll
}

func (m *Model) nextAssigneeFilter() taskstore.AssigneeFilter {
	for i, c := range m.assigneeCycle {
		if c == m.assigneeFilter {
			return m.assigneeCycle[(i+1)%len(m.assigneeCycle)]
		}
	}
	return taskstore.AssigneeAll
}

// assigneeFilterLabel names the active assignee filter for the header.
func (m Model) assigneeFilterLabel() string {
	switch m.assigneeFilter {
	case taskstore.AssigneeAll:
		return "everyone"
	case taskstore.AssigneeUnassigned:
		return "unassigned"
	}
	for _, u := range m.users {
		if u.ID == string(m.assigneeFilter) {
			return u.Username
		}
	}
	return string(m.assigneeFilter)
}

// View renders the three columns side by side.
func (m Model) View() string {
	colWidth := m.width/len(model.Statuses) - 4
	if colWidth < 16 {
		colWidth = 16
	}

	columns := make([]string, 0, len(model.Statuses))
	for ci, status := range model.Statuses {
		tasks := m.board[status]

		title := theme.ColumnTitleStyle.Render(
			fmt.Sprintf("%s (%d)", status, len(tasks)))

		cards := []string{title}
		for ri, t := range tasks {
			line := t.Title
			if t.AssigneeName != "" {
				line += theme.HelpStyle.Render(" @" + t.AssigneeName)
			}
			line = theme.PriorityStyle(t.Priority).Render("• ") + line
			if ci == m.col && ri == m.row {
				cards = append(cards, theme.SelectedCardStyle.Render(line))
			} else {
				cards = append(cards, theme.CardStyle.Render(line))
			}
		}

		column := theme.ColumnStyle.
			Width(colWidth).
			Height(m.height - 4).
			Render(lipgloss.JoinVertical(lipgloss.Left, cards...))
		columns = append(columns, column)
	}

	header := fmt.Sprintf("filter: %s / %s", m.statusFilter, m.assigneeFilterLabel())
	if m.stale {
		header = theme.StaleBannerStyle.Render("STALE - press r to refresh") + "  " + header
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		theme.HelpStyle.Render(header),
		lipgloss.JoinHorizontal(lipgloss.Top, columns...),
	)
}
