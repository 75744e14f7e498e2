package taskform

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskboard/internal/api"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/mutation"
	"github.com/nhle/taskboard/internal/taskstore"
	"github.com/nhle/taskboard/internal/theme"
)

// TaskSavedMsg is dispatched when the form's create call succeeds,
// carrying the server's canonical record.
type TaskSavedMsg struct {
	Task    model.Task
	Created bool
}

// EditQueuedMsg is dispatched when an edit has been handed to the
// mutation coordinator. The store already shows the optimistic record;
// confirmation or rollback surfaces through the coordinator's notifier.
type EditQueuedMsg struct {
	TaskID string
}

// CancelMsg is dispatched when the user abandons the form.
type CancelMsg struct{}

// saveFailedMsg carries a failed save for display.
type saveFailedMsg struct {
	Message string
}

// formBindings holds field values on the heap so huh's Value() pointers
// remain valid across Bubble Tea model copies.
type formBindings struct {
	title       string
	description string
	priority    string
	assigneeID  string
}

// Model is the task create/edit form. Only shown to sessions whose
// capability set allows task creation or update. Creates go straight to
// the API; edits go through the mutation coordinator so they serialize
// with any pending mutation on the same task.
type Model struct {
	client      *api.Client
	coordinator *mutation.Coordinator
	form        *huh.Form
	fb          *formBindings
	users       []model.User
	editMode    bool
	editBase    model.Task
	errText     string
	width       int
	height      int
}

// New creates the form view.
func New(client *api.Client, coordinator *mutation.Coordinator, width, height int) Model {
	return Model{
		client:      client,
		coordinator: coordinator,
		fb:          &formBindings{},
		width:       width,
		height:      height,
	}
}

// SetUsers installs the accounts offered by the assignee picker.
func (m *Model) SetUsers(users []model.User) {
	m.users = users
}

// StartCreate initializes the form for a new task.
func (m *Model) StartCreate() tea.Cmd {
	m.editMode = false
	m.editBase = model.Task{}
	m.fb.title = ""
	m.fb.description = ""
	m.fb.priority = string(model.PriorityMedium)
	m.fb.assigneeID = ""
	m.errText = ""
	m.form = m.buildForm()
	return m.form.Init()
}

// StartEdit initializes the form with an existing task's fields.
func (m *Model) StartEdit(t model.Task) tea.Cmd {
	m.editMode = true
	m.editBase = t
	m.fb.title = t.Title
	m.fb.description = t.Description
	m.fb.priority = string(t.Priority)
	m.fb.assigneeID = t.AssigneeID
	m.errText = ""
	m.form = m.buildForm()
	return m.form.Init()
}

func (m *Model) buildForm() *huh.Form {
	assigneeOptions := []huh.Option[string]{huh.NewOption("unassigned", "")}
	for _, u := range m.users {
		assigneeOptions = append(assigneeOptions, huh.NewOption(u.Username, u.ID))
	}

	return huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Key("title").
			Title("Title").
			Value(&m.fb.title),
		huh.NewText().
			Key("description").
			Title("Description").
			Value(&m.fb.description),
		huh.NewSelect[string]().
			Key("priority").
			Title("Priority").
			Options(
				huh.NewOption("Low", string(model.PriorityLow)),
				huh.NewOption("Medium", string(model.PriorityMedium)),
				huh.NewOption("High", string(model.PriorityHigh)),
			).
			Value(&m.fb.priority),
		huh.NewSelect[string]().
			Key("assignee").
			Title("Assignee").
			Options(assigneeOptions...).
			Value(&m.fb.assigneeID),
	)).WithWidth(60).WithShowHelp(false)
}

// Update advances the form and submits on completion.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	switch msg := msg.(type) {
	case saveFailedMsg:
		m.errText = msg.Message
		m.form = m.buildForm()
		return m, m.form.Init()

	case tea.KeyMsg:
		if msg.String() == "esc" {
			m.form = nil
			return m, func() tea.Msg { return CancelMsg{} }
		}
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		submitCmd := m.submit()
		m.form = nil
		return m, submitCmd
	}
	return m, cmd
}

// submit issues the create call, or hands an edit patch to the
// coordinator.
func (m Model) submit() tea.Cmd {
	if m.editMode {
		return m.submitEdit()
	}

	t := model.Task{
		Title:       m.fb.title,
		Description: m.fb.description,
		Status:      model.StatusTodo,
		Priority:    model.Priority(m.fb.priority),
		AssigneeID:  m.fb.assigneeID,
	}
	for _, u := range m.users {
		if u.ID == m.fb.assigneeID {
			t.AssigneeName = u.Username
		}
	}

	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		saved, err := client.CreateTask(ctx, t)
		if err != nil {
			return saveFailedMsg{Message: api.UserMessage(err)}
		}
		return TaskSavedMsg{Task: *saved, Created: true}
	}
}

// submitEdit builds a patch of the changed fields and enqueues it. The
// coordinator serializes it behind any pending mutation on the task and
// owns the confirm-or-revert lifecycle from here.
func (m Model) submitEdit() tea.Cmd {
	var patch taskstore.Patch
	if m.fb.title != m.editBase.Title {
		title := m.fb.title
		patch.Title = &title
	}
	if m.fb.description != m.editBase.Description {
		description := m.fb.description
		patch.Description = &description
	}
	if m.fb.priority != string(m.editBase.Priority) {
		priority := model.Priority(m.fb.priority)
		patch.Priority = &priority
	}
	if m.fb.assigneeID != m.editBase.AssigneeID {
		assigneeID := m.fb.assigneeID
		assigneeName := ""
		for _, u := range m.users {
			if u.ID == assigneeID {
				assigneeName = u.Username
			}
		}
		patch.AssigneeID = &assigneeID
		patch.AssigneeName = &assigneeName
	}

	coordinator := m.coordinator
	taskID := m.editBase.ID
	return func() tea.Msg {
		// Enqueue errors are local gates (permission, unknown task),
		// never remote envelopes.
		if err := coordinator.Update(taskID, patch); err != nil {
			return saveFailedMsg{Message: err.Error()}
		}
		return EditQueuedMsg{TaskID: taskID}
	}
}

// Active reports whether the form is currently shown.
func (m Model) Active() bool {
	return m.form != nil
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// View renders the form centered.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}
	title := "New task"
	if m.editMode {
		title = "Edit task"
	}
	parts := []string{theme.HeaderStyle.Render(title), "", m.form.View()}
	if m.errText != "" {
		parts = append(parts, theme.ErrorStyle.Render(m.errText))
	}
	content := lipgloss.JoinVertical(lipgloss.Left, parts...)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}
