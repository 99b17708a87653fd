// Package diagramview shows the ER diagram as text in a scrollable pane.
package diagramview

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"

	"github.com/sadopc/dbviewer/internal/diagram"
	appmsg "github.com/sadopc/dbviewer/internal/msg"
	"github.com/sadopc/dbviewer/internal/theme"
)

// Model is the diagram pane.
type Model struct {
	scene    *diagram.Scene
	lines    []string
	warnings []diagram.Warning
	scale    diagram.TextScale

	top, left     int
	width, height int
	focused       bool
	loading       bool
}

// New creates an empty diagram pane.
func New() Model {
	return Model{scale: diagram.DefaultTextScale()}
}

func (m Model) Init() tea.Cmd {
	return nil
}

// Update takes rendered diagrams and scroll keys.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case appmsg.DisplayDiagramMsg:
		m.SetDiagram(msg)

	case tea.KeyMsg:
		if !m.focused {
			return m, nil
		}
		switch msg.String() {
		case "up", "k":
			m.scroll(-1, 0)
		case "down", "j":
			m.scroll(1, 0)
		case "left", "h":
			m.scroll(0, -4)
		case "right", "l":
			m.scroll(0, 4)
		case "pgup":
			m.scroll(-m.rows(), 0)
		case "pgdown", " ":
			m.scroll(m.rows(), 0)
		case "home", "g":
			m.top, m.left = 0, 0
		case "end", "G":
			m.scroll(len(m.lines), 0)
		case "+", "=":
			m.zoom(0.8)
		case "-":
			m.zoom(1.25)
		}
	}
	return m, nil
}

// SetDiagram replaces the scene and keeps the scroll position in range.
func (m *Model) SetDiagram(d appmsg.DisplayDiagramMsg) {
	m.scene = d.Scene
	m.warnings = d.Warnings
	m.loading = false
	m.rasterize()
}

func (m *Model) rasterize() {
	m.lines = nil
	if m.scene != nil {
		m.lines = diagram.Rasterize(m.scene, m.scale)
	}
	m.scroll(0, 0)
}

// zoom scales the scene units per cell by f.
func (m *Model) zoom(f float64) {
	s := diagram.TextScale{X: m.scale.X * f, Y: m.scale.Y * f}
	if s.X < 2 || s.X > 40 {
		return
	}
	m.scale = s
	m.rasterize()
}

func (m *Model) scroll(dy, dx int) {
	m.top = clamp(m.top+dy, 0, max(len(m.lines)-m.rows(), 0))
	m.left = clamp(m.left+dx, 0, max(m.maxLineWidth()-m.cols(), 0))
}

func (m Model) maxLineWidth() int {
	w := 0
	for _, l := range m.lines {
		w = max(w, runewidth.StringWidth(l))
	}
	return w
}

// rows is the number of diagram lines that fit under the title.
func (m Model) rows() int { return max(m.height-3, 1) }

func (m Model) cols() int { return max(m.width-2, 1) }

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// View renders the visible window of the diagram.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	th := theme.Current
	w := m.cols()

	title := " ER diagram "
	if m.scene != nil {
		title = fmt.Sprintf(" ER diagram: %d tables, %d relations ", len(m.scene.Boxes), len(m.scene.Edges))
	}
	if n := len(m.warnings); n > 0 {
		title += th.WarningText.Render(fmt.Sprintf("(%d warnings) ", n))
	}
	out := []string{th.DiagramTitle.Render(title)}

	switch {
	case m.loading:
		out = append(out, th.MutedText.Render("  Rendering..."))
	case len(m.lines) == 0:
		out = append(out, th.MutedText.Render("  No tables to draw."))
	default:
		end := min(m.top+m.rows(), len(m.lines))
		for _, l := range m.lines[m.top:end] {
			out = append(out, th.DiagramBox.Render(window(l, m.left, w)))
		}
	}

	border := th.UnfocusedBorder
	if m.focused {
		border = th.FocusedBorder
	}
	return border.Width(w).Height(max(m.height-2, 1)).Render(strings.Join(out, "\n"))
}

// window cuts the cells [left, left+w) out of a line.
func window(line string, left, w int) string {
	var b strings.Builder
	pos := 0
	for _, r := range line {
		rw := runewidth.RuneWidth(r)
		if pos >= left && pos+rw <= left+w {
			b.WriteRune(r)
		}
		pos += rw
		if pos >= left+w {
			break
		}
	}
	return b.String()
}

// Lines returns the rasterised diagram.
func (m Model) Lines() []string { return m.lines }

// Warnings returns the warnings of the last render.
func (m Model) Warnings() []diagram.Warning { return m.warnings }

// SetSize sets the outer dimensions.
func (m *Model) SetSize(w, h int) {
	m.width, m.height = w, h
	m.scroll(0, 0)
}

func (m *Model) SetLoading(loading bool) { m.loading = loading }

func (m *Model) Focus() { m.focused = true }

func (m *Model) Blur() { m.focused = false }

func (m Model) Focused() bool { return m.focused }
