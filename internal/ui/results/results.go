// Package results renders a table's rows or a query's result set and lets
// the user edit single cells. A committed edit becomes an UpdateRecordMsg;
// key columns cannot be edited.
package results

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/sadopc/dbviewer/internal/adapter"
	appmsg "github.com/sadopc/dbviewer/internal/msg"
	"github.com/sadopc/dbviewer/internal/theme"
)

// Edit refusals, surfaced in the status bar.
var (
	ErrReadOnlyColumn = errors.New("key columns are read-only")
	ErrNoPrimaryKey   = errors.New("result has no primary key column")
	ErrNotEditable    = errors.New("result is not tied to a single table")
)

// DefaultMaxColumnWidth caps a column's display width.
const DefaultMaxColumnWidth = 50

// EditErrMsg reports an edit that could not start.
type EditErrMsg struct {
	Err error
}

// Model is the results pane. The bubbles table tracks the row cursor; rows
// are drawn by hand so the selected cell and NULLs can be styled.
type Model struct {
	table     table.Model
	result    appmsg.DisplayQueryResultsMsg
	tableCols []table.Column
	col       int
	viewTop   int
	maxColW   int

	editing bool
	input   textinput.Model
	setNull bool

	width     int
	height    int
	focused   bool
	loading   bool
	message   string
	queryTime time.Duration
	err       error
}

// New creates an empty results pane.
func New() Model {
	t := table.New(table.WithFocused(false), table.WithHeight(10))
	ti := textinput.New()
	ti.Prompt = ""
	return Model{table: t, input: ti, maxColW: DefaultMaxColumnWidth}
}

func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles navigation and editing keys.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case appmsg.DisplayQueryResultsMsg:
		m.SetResults(msg, 0)
		return m, nil

	case tea.KeyMsg:
		if !m.focused {
			return m, nil
		}
		if m.editing {
			return m.updateEdit(msg)
		}
		switch msg.String() {
		case "left", "h":
			if m.col > 0 {
				m.col--
			}
			return m, nil
		case "right", "l":
			if m.col < len(m.result.Columns)-1 {
				m.col++
			}
			return m, nil
		case "home", "0":
			m.col = 0
			return m, nil
		case "end", "$":
			m.col = max(len(m.result.Columns)-1, 0)
			return m, nil
		case "e", "enter":
			return m.startEdit()
		}
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		m.updateViewTop()
		return m, cmd
	}
	return m, nil
}

// startEdit opens the inline editor on the selected cell.
func (m Model) startEdit() (Model, tea.Cmd) {
	if err := m.editable(); err != nil {
		return m, func() tea.Msg { return EditErrMsg{Err: err} }
	}
	v, _ := m.cell(m.table.Cursor(), m.col)
	m.editing = true
	m.setNull = false
	if v != nil {
		m.input.SetValue(*v)
	} else {
		m.input.SetValue("")
	}
	m.input.CursorEnd()
	cmd := m.input.Focus()
	return m, cmd
}

func (m Model) editable() error {
	if len(m.result.Rows) == 0 || m.col >= len(m.result.Columns) {
		return ErrNotEditable
	}
	if m.result.TableName == "" {
		return ErrNotEditable
	}
	if _, ok := m.result.PrimaryKey(); !ok {
		return ErrNoPrimaryKey
	}
	c := m.result.Columns[m.col]
	if c.IsPrimaryKey || c.IsForeignKey {
		return fmt.Errorf("%s: %w", c.Name, ErrReadOnlyColumn)
	}
	return nil
}

func (m Model) updateEdit(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.stopEdit()
		return m, nil
	case "ctrl+n":
		m.setNull = true
		m.input.SetValue("")
		return m, nil
	case "enter":
		req := m.updateRequest()
		m.stopEdit()
		return m, func() tea.Msg { return req }
	}
	m.setNull = false
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) stopEdit() {
	m.editing = false
	m.setNull = false
	m.input.Blur()
}

// updateRequest builds the request for the cell being edited: the row as
// displayed with the one field replaced.
func (m Model) updateRequest() appmsg.UpdateRecordMsg {
	row := m.result.Rows[m.table.Cursor()]
	name := m.result.Columns[m.col].Name
	rec := make(appmsg.Record, 0, len(row))
	for _, f := range row {
		if f.Name == name {
			if m.setNull {
				f = appmsg.Null(name)
			} else {
				f = appmsg.Text(name, m.input.Value())
			}
		}
		rec = append(rec, f)
	}
	pk, _ := m.result.PrimaryKey()
	return appmsg.UpdateRecordMsg{
		TableName:      m.result.TableName,
		Record:         rec,
		PrimaryKey:     pk.Name,
		PrimaryKeyType: pk.Type,
	}
}

// View renders the pane.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	th := theme.Current
	contentHeight := max(m.height-3, 1)

	switch {
	case m.loading && len(m.result.Rows) == 0:
		return m.wrapBorder(th.MutedText.Render("  Running query..."), contentHeight)
	case m.err != nil:
		return m.wrapBorder(th.ErrorText.Render("  Error: "+m.err.Error()), contentHeight)
	case len(m.result.Columns) == 0:
		text := "  Select a table, or write a SELECT and press F5"
		if m.message != "" {
			return m.wrapBorder(th.SuccessText.Render("  "+m.message), contentHeight)
		}
		return m.wrapBorder(th.MutedText.Render(text), contentHeight)
	}
	content := lipgloss.JoinVertical(lipgloss.Left, m.renderTable(), m.buildFooter())
	return m.wrapBorder(content, 0)
}

// SetResults replaces the displayed result set.
func (m *Model) SetResults(res appmsg.DisplayQueryResultsMsg, took time.Duration) {
	m.result = res
	m.err = nil
	m.loading = false
	m.message = ""
	m.queryTime = took
	m.viewTop = 0
	m.col = min(m.col, max(len(res.Columns)-1, 0))
	m.stopEdit()
	m.rebuildTable()
	m.table.GotoTop()
}

// ApplyUpdate reflects a successful edit locally so the grid does not wait
// for a reload.
func (m *Model) ApplyUpdate(req appmsg.UpdateRecordMsg) {
	if req.TableName != m.result.TableName {
		return
	}
	key, ok := req.Record.Get(req.PrimaryKey)
	if !ok {
		return
	}
	for i, row := range m.result.Rows {
		v, ok := row.Get(req.PrimaryKey)
		if !ok || !sameValue(v, key) {
			continue
		}
		m.result.Rows[i] = req.Record
		break
	}
	m.rebuildTableRows()
}

func sameValue(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// SetSize updates the pane dimensions.
func (m *Model) SetSize(w, h int) {
	if m.width == w && m.height == h {
		return
	}
	m.width = w
	m.height = h
	m.table.SetWidth(max(w-2, 0))
	m.table.SetHeight(max(h-3, 1))
	if len(m.result.Columns) > 0 {
		m.rebuildTable()
	}
	m.input.Width = max(w/3, 10)
}

// SetMaxColumnWidth sets the display cap for a single column.
func (m *Model) SetMaxColumnWidth(n int) {
	if n > 0 {
		m.maxColW = n
	}
}

func (m *Model) SetLoading(loading bool) {
	m.loading = loading
	if loading {
		m.err = nil
	}
}

func (m *Model) SetError(err error) {
	m.err = err
	m.loading = false
}

// SetMessage shows text in place of a result set.
func (m *Model) SetMessage(msg string) {
	m.message = msg
	m.err = nil
	m.loading = false
}

func (m *Model) Focus() {
	m.focused = true
	m.table.Focus()
}

func (m *Model) Blur() {
	m.focused = false
	m.table.Blur()
	m.stopEdit()
}

func (m Model) Focused() bool { return m.focused }

// Editing reports whether a cell editor is open.
func (m Model) Editing() bool { return m.editing }

// Result returns the displayed result set.
func (m Model) Result() appmsg.DisplayQueryResultsMsg { return m.result }

// Cursor returns the selected row and column.
func (m Model) Cursor() (row, col int) { return m.table.Cursor(), m.col }

func (m Model) QueryDuration() time.Duration { return m.queryTime }

func (m Model) cell(row, col int) (*string, bool) {
	if row < 0 || row >= len(m.result.Rows) || col >= len(m.result.Columns) {
		return nil, false
	}
	return m.result.Rows[row].Get(m.result.Columns[col].Name)
}

func (m *Model) rebuildTable() {
	m.tableCols = autoSizeColumns(m.result, m.contentWidth(), m.maxColW)
	m.table.SetColumns(m.tableCols)
	m.rebuildTableRows()
}

func (m *Model) rebuildTableRows() {
	rows := make([]table.Row, len(m.result.Rows))
	for i := range m.result.Rows {
		rows[i] = m.displayRow(i)
	}
	m.table.SetRows(rows)
}

func (m Model) displayRow(i int) table.Row {
	row := make(table.Row, len(m.result.Columns))
	for j := range m.result.Columns {
		if v, _ := m.cell(i, j); v != nil {
			row[j] = *v
		} else {
			row[j] = adapter.NullText
		}
	}
	return row
}

func (m *Model) contentWidth() int {
	return max(m.width-2, 10)
}

// visibleDataHeight is the data rows that fit below the header and its rule.
func (m Model) visibleDataHeight() int {
	return max(m.height-5, 1)
}

func (m *Model) updateViewTop() {
	cursor := m.table.Cursor()
	visH := m.visibleDataHeight()
	if cursor < m.viewTop {
		m.viewTop = cursor
	}
	if cursor >= m.viewTop+visH {
		m.viewTop = cursor - visH + 1
	}
	m.viewTop = max(m.viewTop, 0)
}

func (m Model) renderTable() string {
	if len(m.tableCols) == 0 {
		return ""
	}
	th := theme.Current
	contentW := m.contentWidth()
	visH := m.visibleDataHeight()

	var sb strings.Builder
	sb.WriteString(m.renderHeader(th, contentW))
	sb.WriteByte('\n')
	sb.WriteString(strings.Repeat("─", contentW))
	sb.WriteByte('\n')

	cursor := m.table.Cursor()
	for i := 0; i < visH; i++ {
		idx := m.viewTop + i
		if idx >= len(m.result.Rows) {
			sb.WriteString(strings.Repeat(" ", contentW))
		} else {
			sb.WriteString(m.renderDataRow(th, idx, idx == cursor, contentW))
		}
		if i < visH-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func (m Model) renderHeader(th *theme.Theme, totalWidth int) string {
	var sb strings.Builder
	used := 0
	for j, col := range m.tableCols {
		style := th.ResultsHeader.Padding(0, 1)
		c := m.result.Columns[j]
		title := col.Title
		if c.IsPrimaryKey || c.IsForeignKey {
			style = th.ResultsKeyHeader.Padding(0, 1)
		}
		sb.WriteString(style.Render(fit(title, col.Width)))
		used += col.Width + 2
	}
	if used < totalWidth {
		sb.WriteString(strings.Repeat(" ", totalWidth-used))
	}
	return sb.String()
}

func (m Model) renderDataRow(th *theme.Theme, idx int, selected bool, totalWidth int) string {
	rowStyle := th.ResultsCell
	if selected {
		rowStyle = th.ResultsSelectedRow
	}

	var sb strings.Builder
	used := 0
	for j, col := range m.tableCols {
		v, _ := m.cell(idx, j)
		text := adapter.NullText
		style := rowStyle
		if v != nil {
			text = *v
		} else if !selected {
			style = th.ResultsNull
		}
		if selected && j == m.col {
			style = th.ResultsSelectedCell
			if m.editing {
				style = th.ResultsEditing
				text = m.input.Value() + "▏"
				if m.setNull {
					text = adapter.NullText
				}
			}
		}
		sb.WriteString(style.Padding(0, 1).Render(fit(text, col.Width)))
		used += col.Width + 2
	}
	if used < totalWidth {
		sb.WriteString(rowStyle.Render(strings.Repeat(" ", totalWidth-used)))
	}
	return sb.String()
}

// fit truncates or pads s to exactly w display cells.
func fit(s string, w int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return runewidth.FillRight(runewidth.Truncate(s, w, "…"), w)
}

func (m Model) buildFooter() string {
	th := theme.Current
	var parts []string
	if m.result.TableName != "" {
		parts = append(parts, m.result.TableName)
	}
	parts = append(parts, fmt.Sprintf("%d rows", len(m.result.Rows)))
	if len(m.result.Columns) > 0 {
		c := m.result.Columns[m.col]
		parts = append(parts, fmt.Sprintf("%s %s", c.Name, c.Type))
	}
	if m.queryTime > 0 {
		parts = append(parts, formatDuration(m.queryTime))
	}
	if m.editing {
		parts = append(parts, "enter save · esc cancel · ctrl+n NULL")
	}
	return th.MutedText.Render("  " + strings.Join(parts, " | "))
}

func (m Model) wrapBorder(content string, minHeight int) string {
	th := theme.Current
	style := th.UnfocusedBorder
	if m.focused {
		style = th.FocusedBorder
	}
	style = style.Width(max(m.width-2, 0))
	if minHeight > 0 {
		style = style.Height(minHeight)
	}
	return style.Render(content)
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%d us", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%d ms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.2f s", d.Seconds())
	default:
		return fmt.Sprintf("%.1f min", d.Minutes())
	}
}

// autoSizeColumns sizes each column to its header and the first hundred
// rows, capped at maxColW, then scales down to fit maxWidth. Every column
// carries two cells of padding.
func autoSizeColumns(res appmsg.DisplayQueryResultsMsg, maxWidth, maxColW int) []table.Column {
	n := len(res.Columns)
	if n == 0 {
		return nil
	}

	widths := make([]int, n)
	for i, c := range res.Columns {
		widths[i] = max(runewidth.StringWidth(c.Name), 4)
	}
	for _, row := range res.Rows[:min(len(res.Rows), 100)] {
		for j, c := range res.Columns {
			v, _ := row.Get(c.Name)
			w := len(adapter.NullText)
			if v != nil {
				w = runewidth.StringWidth(*v)
			}
			widths[j] = max(widths[j], w)
		}
	}
	for i := range widths {
		widths[i] = min(widths[i], maxColW)
	}

	padding := n * 2
	total := padding
	for _, w := range widths {
		total += w
	}
	if total > maxWidth {
		available := max(maxWidth-padding, n)
		sum := total - padding
		for i := range widths {
			widths[i] = max(widths[i]*available/sum, 2)
		}
	}

	cols := make([]table.Column, n)
	for i, c := range res.Columns {
		cols[i] = table.Column{Title: c.Name, Width: widths[i]}
	}
	return cols
}
