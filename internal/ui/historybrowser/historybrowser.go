// Package historybrowser lists previously served requests and re-issues a
// chosen table preview or SELECT.
package historybrowser

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/sadopc/dbviewer/internal/history"
	appmsg "github.com/sadopc/dbviewer/internal/msg"
	"github.com/sadopc/dbviewer/internal/theme"
)

const maxEntries = 200

// Store is the part of *history.History the browser reads.
type Store interface {
	Recent(limit int) ([]history.Entry, error)
	Search(pattern string, limit int) ([]history.Entry, error)
}

// Model is the history overlay.
type Model struct {
	store   Store
	entries []history.Entry
	err     error
	cursor  int
	offset  int
	visible bool
	width   int
	height  int
	search  textinput.Model
}

// New creates a browser over store, which may be nil.
func New(store Store) Model {
	ti := textinput.New()
	ti.Placeholder = "filter by table or query..."
	ti.Prompt = "> "
	ti.Width = 50
	return Model{store: store, search: ti}
}

// Show opens the overlay and loads the latest entries.
func (m *Model) Show() tea.Cmd {
	m.visible = true
	m.cursor = 0
	m.offset = 0
	m.search.SetValue("")
	m.load()
	return m.search.Focus()
}

func (m *Model) Hide() {
	m.visible = false
	m.search.Blur()
}

func (m Model) Visible() bool { return m.visible }

// SetSize sets the available space.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// Entries returns the loaded entries, most recent first.
func (m Model) Entries() []history.Entry { return m.entries }

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.visible {
		return m, nil
	}

	key, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		return m, cmd
	}

	switch key.String() {
	case "esc", "ctrl+h":
		m.Hide()
		return m, nil
	case "up", "ctrl+p":
		m.move(-1)
		return m, nil
	case "down", "ctrl+n":
		m.move(1)
		return m, nil
	case "pgup":
		m.move(-m.rows())
		return m, nil
	case "pgdown":
		m.move(m.rows())
		return m, nil
	case "enter":
		if m.cursor >= len(m.entries) {
			return m, nil
		}
		req, ok := Replay(m.entries[m.cursor])
		if !ok {
			return m, nil
		}
		m.Hide()
		return m, func() tea.Msg { return req }
	}

	prev := m.search.Value()
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(key)
	if m.search.Value() != prev {
		m.cursor = 0
		m.offset = 0
		m.load()
	}
	return m, cmd
}

// Replay turns an entry back into a request. Table previews and SELECTs are
// re-run; updates reopen the updated table. Entries without a target have
// nothing to replay.
func Replay(e history.Entry) (appmsg.QueryTableMsg, bool) {
	target := strings.TrimSpace(e.Target)
	if target == "" {
		return appmsg.QueryTableMsg{}, false
	}
	if appmsg.Command(e.Command) == appmsg.CmdQueryTable && strings.ContainsAny(target, " \t\n") {
		return appmsg.QueryTableMsg{SelectQuery: target}, true
	}
	return appmsg.QueryTableMsg{TableName: target}, true
}

func (m *Model) move(delta int) {
	if len(m.entries) == 0 {
		return
	}
	m.cursor = min(max(m.cursor+delta, 0), len(m.entries)-1)
	rows := m.rows()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+rows {
		m.offset = m.cursor - rows + 1
	}
}

func (m *Model) load() {
	m.entries, m.err = nil, nil
	if m.store == nil {
		return
	}
	if text := m.search.Value(); text != "" {
		m.entries, m.err = m.store.Search("%"+text+"%", maxEntries)
	} else {
		m.entries, m.err = m.store.Recent(maxEntries)
	}
}

// rows is the number of entries that fit: the box chrome takes 8 lines.
func (m Model) rows() int {
	return max(m.height-8, 3)
}

func (m Model) View() string {
	if !m.visible {
		return ""
	}
	th := theme.Current
	w := m.boxWidth()

	var lines []string
	end := min(m.offset+m.rows(), len(m.entries))
	for i := m.offset; i < end; i++ {
		e := m.entries[i]
		line := runewidth.FillRight(formatEntry(e, w-4, time.Now()), w-4)
		switch {
		case i == m.cursor:
			line = th.SidebarSelected.Render(line)
		case e.IsError:
			line = th.ErrorText.Render(line)
		}
		lines = append(lines, line)
	}
	switch {
	case m.err != nil:
		lines = append(lines, th.ErrorText.Render(m.err.Error()))
	case m.store == nil:
		lines = append(lines, th.MutedText.Render("History is unavailable."))
	case len(m.entries) == 0:
		lines = append(lines, th.MutedText.Render("No history."))
	}

	body := lipgloss.JoinVertical(lipgloss.Left,
		th.SidebarTitle.Render("History"),
		m.search.View(),
		"",
		strings.Join(lines, "\n"),
		"",
		th.MutedText.Render(fmt.Sprintf("%d entries · enter re-run · esc close", len(m.entries))),
	)
	return th.FocusedBorder.Padding(0, 1).Width(w).Render(body)
}

func (m Model) boxWidth() int {
	w := 90
	if m.width > 0 && w > m.width-4 {
		w = max(m.width-4, 30)
	}
	return w
}

// formatEntry renders "COMMAND target   meta" in width cells.
func formatEntry(e history.Entry, width int, now time.Time) string {
	meta := []string{RelativeTime(now.Sub(e.ExecutedAt))}
	if e.DurationMS > 0 {
		meta = append([]string{formatDuration(e.DurationMS)}, meta...)
	}
	if e.RowCount > 0 {
		meta = append([]string{fmt.Sprintf("%d rows", e.RowCount)}, meta...)
	}
	tail := strings.Join(meta, " · ")

	head := e.Command
	if target := firstLine(e.Target); target != "" {
		head += " " + target
	}
	room := max(width-runewidth.StringWidth(tail)-2, 10)
	head = runewidth.FillRight(runewidth.Truncate(head, room, "…"), room)
	return head + "  " + tail
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i]) + " …"
	}
	return s
}

func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	return fmt.Sprintf("%.1fs", float64(ms)/1000)
}

// RelativeTime formats an age as "just now", "5m ago" and so on.
func RelativeTime(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 48*time.Hour:
		return "yesterday"
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
