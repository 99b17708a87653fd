// Package connmgr is the connection screen: pick a saved connection or
// type a DSN to open.
package connmgr

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/sadopc/dbviewer/internal/adapter"
	"github.com/sadopc/dbviewer/internal/audit"
	"github.com/sadopc/dbviewer/internal/config"
	"github.com/sadopc/dbviewer/internal/theme"
)

// ConnectRequestMsg asks the app to open a connection.
type ConnectRequestMsg struct {
	AdapterName string
	DSN         string
}

// ConnectionsUpdatedMsg carries the saved connections after an add or
// delete, for the app to persist.
type ConnectionsUpdatedMsg struct {
	Connections []config.SavedConnection
}

type state int

const (
	stateList state = iota
	stateOpen
)

const (
	fieldDSN = iota
	fieldName
	fieldCount
)

// Model is the connection screen.
type Model struct {
	state       state
	connections []config.SavedConnection
	cursor      int
	visible     bool
	width       int

	inputs  [fieldCount]textinput.Model
	focus   int
	message string
	isError bool
}

// New creates the screen over the saved connections.
func New(connections []config.SavedConnection) Model {
	m := Model{connections: slices.Clone(connections)}

	labels := [fieldCount]string{"DSN:  ", "Save as: "}
	placeholders := [fieldCount]string{"postgres://user@host/db, shop.db, schema.sql", "optional name"}
	for i := range m.inputs {
		ti := textinput.New()
		ti.Prompt = labels[i]
		ti.Placeholder = placeholders[i]
		ti.Width = 48
		m.inputs[i] = ti
	}
	return m
}

// Update handles keys while the screen is visible.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.visible {
		return m, nil
	}
	if m.state == stateOpen {
		return m.updateOpen(msg)
	}

	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.connections) {
			m.cursor++
		}
	case "enter":
		if m.cursor == len(m.connections) {
			cmd := m.openPrompt()
			return m, cmd
		}
		sc := m.connections[m.cursor]
		m.visible = false
		return m, connect(sc.Adapter, sc.BuildDSN())
	case "n", "o":
		cmd := m.openPrompt()
		return m, cmd
	case "d":
		if m.cursor < len(m.connections) {
			m.connections = slices.Delete(m.connections, m.cursor, m.cursor+1)
			if m.cursor > len(m.connections) {
				m.cursor = len(m.connections)
			}
			return m, m.updated()
		}
	case "esc", "q":
		m.visible = false
	}
	return m, nil
}

func (m Model) updateOpen(msg tea.Msg) (Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc":
			m.state = stateList
			m.inputs[m.focus].Blur()
			return m, nil
		case "tab", "shift+tab", "up", "down":
			m.inputs[m.focus].Blur()
			m.focus = (m.focus + 1) % fieldCount
			cmd := m.inputs[m.focus].Focus()
			return m, cmd
		case "enter":
			return m.submit()
		}
	}
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

// submit connects to the typed DSN and saves it when a name was given.
func (m Model) submit() (Model, tea.Cmd) {
	dsn := strings.TrimSpace(m.inputs[fieldDSN].Value())
	if dsn == "" {
		m.setMessage("enter a DSN or file path", true)
		return m, nil
	}
	name := adapter.Detect(dsn)
	if name == "" {
		m.setMessage("cannot tell the adapter from "+audit.SanitizeDSN(dsn), true)
		return m, nil
	}

	cmds := []tea.Cmd{connect(name, dsn)}
	if label := strings.TrimSpace(m.inputs[fieldName].Value()); label != "" {
		sc := config.SavedConnection{Name: label, Adapter: name, DSN: dsn}
		if i := slices.IndexFunc(m.connections, func(c config.SavedConnection) bool { return c.Name == label }); i >= 0 {
			m.connections[i] = sc
		} else {
			m.connections = append(m.connections, sc)
		}
		cmds = append(cmds, m.updated())
	}

	m.visible = false
	m.state = stateList
	m.inputs[m.focus].Blur()
	return m, tea.Batch(cmds...)
}

func (m *Model) openPrompt() tea.Cmd {
	m.state = stateOpen
	for i := range m.inputs {
		m.inputs[i].SetValue("")
		m.inputs[i].Blur()
	}
	m.focus = fieldDSN
	m.message = ""
	return m.inputs[fieldDSN].Focus()
}

func (m Model) updated() tea.Cmd {
	conns := slices.Clone(m.connections)
	return func() tea.Msg { return ConnectionsUpdatedMsg{Connections: conns} }
}

func connect(adapterName, dsn string) tea.Cmd {
	return func() tea.Msg { return ConnectRequestMsg{AdapterName: adapterName, DSN: dsn} }
}

func (m *Model) setMessage(text string, isError bool) {
	m.message = text
	m.isError = isError
}

// View renders the screen as a bordered box.
func (m Model) View() string {
	if !m.visible {
		return ""
	}
	th := theme.Current
	w := m.boxWidth()

	var body []string
	if m.state == stateOpen {
		body = append(body, th.SidebarTitle.Render("Open database"), "")
		for i := range m.inputs {
			body = append(body, m.inputs[i].View())
		}
		body = append(body, "", th.MutedText.Render("enter connect · tab next field · esc back"))
	} else {
		body = append(body, th.SidebarTitle.Render("Connections"), "")
		for i, sc := range m.connections {
			line := runewidth.Truncate(fmt.Sprintf("%s  %s", sc.Name, audit.SanitizeDSN(sc.DisplayString())), w-4, "…")
			body = append(body, m.row(th, i, line, w))
		}
		body = append(body, m.row(th, len(m.connections), "+ Open a DSN or file", w))
		body = append(body, "", th.MutedText.Render("enter connect · n open · d delete · esc close"))
	}
	if m.message != "" {
		style := th.SuccessText
		if m.isError {
			style = th.ErrorText
		}
		body = append(body, "", style.Render(m.message))
	}
	return th.FocusedBorder.Padding(1, 2).Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, body...))
}

func (m Model) row(th *theme.Theme, i int, text string, w int) string {
	if i == m.cursor {
		return th.SidebarSelected.Render(runewidth.FillRight(text, w-4))
	}
	return text
}

func (m Model) boxWidth() int {
	w := 64
	if m.width > 0 && w > m.width-4 {
		w = max(m.width-4, 20)
	}
	return w
}

// Show makes the screen visible on the connection list.
func (m *Model) Show() {
	m.visible = true
	m.state = stateList
	m.cursor = 0
}

// ShowError shows the screen with an error, typically a failed connect.
func (m *Model) ShowError(err error) {
	m.Show()
	m.setMessage(scrubCredentials(err.Error()), true)
}

// scrubCredentials masks the user info of URL DSNs embedded in driver
// error text.
func scrubCredentials(text string) string {
	for _, scheme := range []string{"postgres://", "postgresql://", "mysql://", "duckdb://"} {
		from := 0
		for {
			i := strings.Index(text[from:], scheme)
			if i < 0 {
				break
			}
			start := from + i + len(scheme)
			end := strings.IndexAny(text[start:], "@ /")
			if end < 0 || text[start+end] != '@' {
				from = start
				continue
			}
			text = text[:start] + "***" + text[start+end:]
			from = start + len("***")
		}
	}
	return text
}

// Hide hides the screen.
func (m *Model) Hide() {
	m.visible = false
}

func (m Model) Visible() bool { return m.visible }

// SetSize sets the available width.
func (m *Model) SetSize(width int) {
	m.width = width
}

// Connections returns the saved connections.
func (m Model) Connections() []config.SavedConnection {
	return m.connections
}
