package editor

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/dbviewer/internal/theme"
)

// Model wraps a textarea. While focused the textarea edits; while blurred
// the query is shown highlighted with line numbers.
type Model struct {
	textarea    textarea.Model
	highlighter *Highlighter
	width       int
	height      int
	focused     bool
	modified    bool
}

// New creates an editor that highlights the given adapter's dialect.
func New(adapterName string) Model {
	ta := textarea.New()
	ta.Placeholder = "SELECT * FROM ... (F5 to run)"
	ta.ShowLineNumbers = true
	ta.CharLimit = 0

	th := theme.Current
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Prompt = th.EditorLineNumber
	ta.FocusedStyle.Text = lipgloss.NewStyle()
	ta.BlurredStyle.Prompt = th.EditorLineNumber
	ta.BlurredStyle.Text = lipgloss.NewStyle()
	ta.Blur()

	return Model{textarea: ta, highlighter: NewHighlighter(adapterName)}
}

// SetDialect switches the highlighter after a new connection.
func (m *Model) SetDialect(adapterName string) {
	m.highlighter = NewHighlighter(adapterName)
}

func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// Update forwards messages to the textarea while focused.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.focused {
		return m, nil
	}
	before := m.textarea.Value()
	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	if m.textarea.Value() != before {
		m.modified = true
	}
	return m, cmd
}

func (m Model) View() string {
	th := theme.Current
	border := th.UnfocusedBorder
	if m.focused {
		border = th.FocusedBorder
	}
	innerW, innerH := inner(m.width), inner(m.height)

	var content string
	if m.focused {
		content = m.textarea.View()
	} else {
		content = m.renderHighlighted(th, innerH)
	}
	return border.Width(innerW).Height(innerH).Render(content)
}

func (m Model) renderHighlighted(th *theme.Theme, height int) string {
	raw := m.textarea.Value()
	if raw == "" {
		return th.MutedText.Render(m.textarea.Placeholder)
	}

	lines := strings.Split(m.highlighter.Highlight(raw, th), "\n")
	if len(lines) > height {
		lines = lines[:height]
	}
	gutter := max(len(fmt.Sprint(strings.Count(raw, "\n")+1)), 2)

	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(th.EditorLineNumber.Render(fmt.Sprintf("%*d ", gutter, i+1)))
		b.WriteString(line)
	}
	return b.String()
}

// inner is the content size inside a one-cell border.
func inner(n int) int {
	return max(n-2, 1)
}

// Value returns the query text.
func (m Model) Value() string {
	return m.textarea.Value()
}

// SetValue replaces the query text.
func (m *Model) SetValue(s string) {
	m.textarea.SetValue(s)
}

// SetSize sets the outer size, border included.
func (m *Model) SetSize(w, h int) {
	m.width, m.height = w, h
	m.textarea.SetWidth(inner(w))
	m.textarea.SetHeight(inner(h))
}

func (m *Model) Focus() {
	m.focused = true
	m.textarea.Focus()
}

func (m *Model) Blur() {
	m.focused = false
	m.textarea.Blur()
}

func (m Model) Focused() bool {
	return m.focused
}

// Modified reports whether the text changed since ResetModified.
func (m Model) Modified() bool {
	return m.modified
}

func (m *Model) ResetModified() {
	m.modified = false
}

// InsertText inserts text at the cursor, separated from a preceding word by
// a space. The sidebar uses it to drop table and column names in.
func (m *Model) InsertText(text string) {
	if v := m.textarea.Value(); v != "" && m.textarea.Line() == m.textarea.LineCount()-1 {
		if last := v[len(v)-1]; last != ' ' && last != '\n' && last != '\t' && last != '(' {
			text = " " + text
		}
	}
	m.textarea.InsertString(text)
	m.modified = true
}
