// Package statusbar shows the connection, the outcome of the last request
// and the focused pane.
package statusbar

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	appmsg "github.com/sadopc/dbviewer/internal/msg"
	"github.com/sadopc/dbviewer/internal/theme"
)

// clearAfter is how long a message stays up.
const clearAfter = 5 * time.Second

// ClearStatusMsg reverts the bar to key hints.
type ClearStatusMsg struct{}

// Model is the status bar.
type Model struct {
	width        int
	adapterName  string
	databaseName string
	queryTime    time.Duration
	rowCount     int64
	message      string
	isError      bool
	pane         appmsg.Pane
	connected    bool
}

// New creates a disconnected status bar.
func New() Model {
	return Model{rowCount: -1}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func clearLater() tea.Cmd {
	return tea.Tick(clearAfter, func(time.Time) tea.Msg {
		return ClearStatusMsg{}
	})
}

// Update tracks connections, responses and status messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case appmsg.ConnectMsg:
		m.adapterName = msg.Adapter
		if msg.Conn != nil {
			m.databaseName = msg.Conn.DatabaseName()
		}
		m.connected = true
		m.message = ""
		m.isError = false

	case appmsg.ConnectErrMsg:
		m.connected = false
		m.setMessage(msg.Err.Error(), true)
		return m, clearLater()

	case appmsg.ResponseMsg:
		return m.response(msg)

	case appmsg.StatusMsg:
		m.setMessage(msg.Text, msg.IsError)
		if msg.Duration > 0 {
			m.queryTime = msg.Duration
		}
		return m, clearLater()

	case appmsg.FocusMsg:
		m.pane = msg.Pane

	case ClearStatusMsg:
		m.queryTime = 0
		m.rowCount = -1
		m.message = ""
		m.isError = false
	}
	return m, nil
}

func (m Model) response(msg appmsg.ResponseMsg) (Model, tea.Cmd) {
	m.queryTime = msg.Duration
	switch r := msg.Response.(type) {
	case appmsg.DisplayQueryResultsMsg:
		m.rowCount = int64(len(r.Rows))
		m.message = ""
	case appmsg.RecordUpdatedMsg:
		m.setMessage(fmt.Sprintf("updated %d row(s) in %s", r.RowsAffected, r.TableName), false)
	case appmsg.DisplayDiagramMsg:
		if n := len(r.Warnings); n > 0 {
			m.setMessage(fmt.Sprintf("diagram: %d warning(s): %s", n, r.Warnings[0]), true)
		}
	case appmsg.LoadSchemaMsg:
		if n := len(r.Diagnostics); n > 0 {
			m.setMessage(fmt.Sprintf("schema: %d diagnostic(s)", n), true)
		}
	case appmsg.ErrorMsg:
		m.setMessage(r.Error(), true)
	default:
		return m, nil
	}
	return m, clearLater()
}

func (m *Model) setMessage(text string, isError bool) {
	m.message = text
	m.isError = isError
}

// View renders the bar.
func (m Model) View() string {
	if m.width == 0 {
		return ""
	}
	th := theme.Current

	left := th.StatusBarKey.Render(" disconnected ")
	if m.connected {
		left = th.StatusBarKey.Render(fmt.Sprintf(" %s://%s ", m.adapterName, m.databaseName))
	}

	var center string
	switch {
	case m.message != "" && m.isError:
		center = th.StatusBarError.Render(" " + runewidth.Truncate(m.message, max(m.width/2, 4), "...") + " ")
	case m.message != "":
		center = th.StatusBarSuccess.Render(" " + m.message + " ")
	case m.queryTime > 0:
		center = th.StatusBarValue.Render(formatDuration(m.queryTime))
		if m.rowCount >= 0 {
			center += th.StatusBarValue.Render(formatCount(m.rowCount) + " rows")
		}
	default:
		center = hints(th)
	}

	right := th.StatusBarKey.Render(m.pane.String())

	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(center)-lipgloss.Width(right), 0)
	bar := left +
		th.StatusBar.Render(strings.Repeat(" ", gap/2)) +
		center +
		th.StatusBar.Render(strings.Repeat(" ", gap-gap/2)) +
		right
	return th.StatusBar.Width(m.width).Render(bar)
}

var keyHints = [][2]string{
	{"F5", "Run"},
	{"e", "Edit"},
	{"Ctrl+D", "Diagram"},
	{"Tab", "Pane"},
	{"Ctrl+Q", "Quit"},
}

func hints(th *theme.Theme) string {
	var b strings.Builder
	for _, h := range keyHints {
		b.WriteString(th.StatusBarValue.Render(h[0]))
		b.WriteString(th.StatusBar.Render(" " + h[1] + " "))
	}
	return b.String()
}

// SetSize sets the bar width.
func (m *Model) SetSize(width int) {
	m.width = width
}

// Message returns the current message and whether it is an error.
func (m Model) Message() (string, bool) {
	return m.message, m.isError
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatCount(n int64) string {
	switch {
	case n < 1000:
		return fmt.Sprintf("%d", n)
	case n < 1_000_000:
		return fmt.Sprintf("%.1fk", float64(n)/1000)
	}
	return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
}
