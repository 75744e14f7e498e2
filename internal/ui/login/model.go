package login

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskboard/internal/api"
	"github.com/nhle/taskboard/internal/theme"
)

// LoggedInMsg is dispatched after a successful login.
type LoggedInMsg struct {
	Result api.LoginResult
}

// RegisteredMsg is dispatched after a successful registration; the user
// still has to log in.
type RegisteredMsg struct {
	Username string
}

// AuthFailedMsg carries a login or registration error for display.
type AuthFailedMsg struct {
	Message string
}

// mode selects between the login and register forms.
type mode int

const (
	modeLogin mode = iota
	modeRegister
)

// formBindings holds field values on the heap so huh's Value() pointers
// remain valid across Bubble Tea model copies.
type formBindings struct {
	username string
	email    string
	password string
}

// Model is the login/register view.
type Model struct {
	client  *api.Client
	form    *huh.Form
	fb      *formBindings
	mode    mode
	errText string
	width   int
	height  int
}

// New creates the login view.
func New(client *api.Client, width, height int) Model {
	m := Model{
		client: client,
		fb:     &formBindings{},
		width:  width,
		height: height,
	}
	m.form = m.buildForm()
	return m
}

func (m *Model) buildForm() *huh.Form {
	fields := []huh.Field{
		huh.NewInput().
			Key("username").
			Title("Username").
			Value(&m.fb.username),
	}
	if m.mode == modeRegister {
		fields = append(fields, huh.NewInput().
			Key("email").
			Title("Email").
			Value(&m.fb.email))
	}
	fields = append(fields, huh.NewInput().
		Key("password").
		Title("Password").
		EchoMode(huh.EchoModePassword).
		Value(&m.fb.password))

	return huh.NewForm(huh.NewGroup(fields...)).
		WithWidth(40).
		WithShowHelp(false)
}

// Init starts the form.
func (m Model) Init() tea.Cmd {
	return m.form.Init()
}

// Update handles form progress and submission.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case AuthFailedMsg:
		m.errText = msg.Message
		m.fb.password = ""
		m.form = m.buildForm()
		return m, m.form.Init()

	case RegisteredMsg:
		m.mode = modeLogin
		m.errText = ""
		m.fb.username = msg.Username
		m.fb.password = ""
		m.form = m.buildForm()
		return m, m.form.Init()

	case tea.KeyMsg:
		if msg.String() == "tab" && m.form.State != huh.StateCompleted {
			// Toggle between login and register.
			if m.mode == modeLogin {
				m.mode = modeRegister
			} else {
				m.mode = modeLogin
			}
			m.errText = ""
			m.form = m.buildForm()
			return m, m.form.Init()
		}
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		return m, m.submit()
	}
	return m, cmd
}

// submit issues the login or register call.
func (m Model) submit() tea.Cmd {
	username, email, password := m.fb.username, m.fb.email, m.fb.password
	register := m.mode == modeRegister

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if register {
			_, err := m.client.Register(ctx, api.RegisterRequest{
				Username: username,
				Email:    email,
				Password: password,
			})
			if err != nil {
				return AuthFailedMsg{Message: api.UserMessage(err)}
			}
			return RegisteredMsg{Username: username}
		}

		res, err := m.client.Login(ctx, api.LoginRequest{
			Username: username,
			Password: password,
		})
		if err != nil {
			if api.IsAuthError(err) {
				return AuthFailedMsg{Message: "invalid username or password"}
			}
			return AuthFailedMsg{Message: api.UserMessage(err)}
		}
		return LoggedInMsg{Result: *res}
	}
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// View renders the form centered with a mode hint.
func (m Model) View() string {
	title := "Sign in"
	hint := "tab: create an account"
	if m.mode == modeRegister {
		title = "Create account"
		hint = "tab: back to sign in"
	}

	parts := []string{
		theme.HeaderStyle.Render("taskboard / " + title),
		"",
		m.form.View(),
	}
	if m.errText != "" {
		parts = append(parts, theme.ErrorStyle.Render(m.errText))
	}
	parts = append(parts, theme.HelpStyle.Render(hint))

	content := lipgloss.JoinVertical(lipgloss.Left, parts...)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}
