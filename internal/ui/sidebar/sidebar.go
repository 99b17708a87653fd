// Package sidebar is the table browser: every table of the connected
// database with its columns, key markers and a fuzzy filter.
package sidebar

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"
	"github.com/sahilm/fuzzy"

	appmsg "github.com/sadopc/dbviewer/internal/msg"
	"github.com/sadopc/dbviewer/internal/theme"
)

// useSimpleIcons is set inside Neovim's terminal, where libvterm gets emoji
// widths wrong.
var useSimpleIcons = os.Getenv("NVIM") != ""

// NodeKind is the type of a tree node.
type NodeKind int

const (
	NodeTable NodeKind = iota
	NodeColumn
)

// TreeNode is one visible row of the tree.
type TreeNode struct {
	Label    string
	Kind     NodeKind
	Children []*TreeNode
	Expanded bool
	Depth    int

	Table   string
	Column  string
	ColType string
	IsPK    bool
	IsFK    bool
}

// Model is the table browser.
type Model struct {
	database string
	tables   []appmsg.TableInfo
	nodes    []*TreeNode
	flat     []*TreeNode
	cursor   int
	offset   int
	width    int
	height   int
	focused  bool
	loading  bool

	filter    textinput.Model
	filtering bool
}

// New creates an empty sidebar.
func New() Model {
	ti := textinput.New()
	ti.Prompt = "/"
	ti.Placeholder = "filter tables"
	return Model{filter: ti}
}

func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles table listings and navigation keys. Enter on a table
// requests its rows; Enter on a column, or i on either, inserts the name
// into the editor.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case appmsg.DisplayTablesMsg:
		m.SetTables(msg.Tables)
		m.loading = false
		return m, nil

	case tea.KeyMsg:
		if !m.focused {
			return m, nil
		}
		if m.filtering {
			return m.updateFilter(msg)
		}
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
				m.ensureVisible()
			}
		case "down", "j":
			if m.cursor < len(m.flat)-1 {
				m.cursor++
				m.ensureVisible()
			}
		case "right", "l":
			m.setExpanded(true)
		case "left", "h":
			m.setExpanded(false)
		case "enter":
			return m, m.selectNode()
		case "i":
			return m, m.insertName()
		case "/":
			m.filtering = true
			cmd := m.filter.Focus()
			return m, cmd
		case "esc":
			if m.filter.Value() != "" {
				m.filter.SetValue("")
				m.rebuild()
			}
		case "home", "g":
			m.cursor = 0
			m.offset = 0
		case "end", "G":
			m.cursor = max(len(m.flat)-1, 0)
			m.ensureVisible()
		}
	}
	return m, nil
}

func (m Model) updateFilter(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.filtering = false
		m.filter.Blur()
		return m, nil
	case "esc":
		m.filtering = false
		m.filter.Blur()
		m.filter.SetValue("")
		m.rebuild()
		return m, nil
	}
	var cmd tea.Cmd
	before := m.filter.Value()
	m.filter, cmd = m.filter.Update(msg)
	if m.filter.Value() != before {
		m.rebuild()
	}
	return m, cmd
}

func (m *Model) setExpanded(open bool) {
	if m.cursor >= len(m.flat) {
		return
	}
	node := m.flat[m.cursor]
	if node.Kind == NodeColumn {
		if open {
			return
		}
		// Collapse the parent table and land on it.
		for i := m.cursor; i >= 0; i-- {
			if m.flat[i].Kind == NodeTable {
				m.cursor = i
				node = m.flat[i]
				break
			}
		}
	}
	if node.Expanded != open {
		node.Expanded = open
		m.flatten()
		m.ensureVisible()
	}
}

func (m *Model) selectNode() tea.Cmd {
	if m.cursor >= len(m.flat) {
		return nil
	}
	node := m.flat[m.cursor]
	if node.Kind == NodeColumn {
		return m.insertName()
	}
	table := node.Table
	return func() tea.Msg {
		return appmsg.QueryTableMsg{TableName: table}
	}
}

func (m *Model) insertName() tea.Cmd {
	if m.cursor >= len(m.flat) {
		return nil
	}
	node := m.flat[m.cursor]
	text := quoteIdentifier(node.Table)
	if node.Kind == NodeColumn {
		text = quoteIdentifier(node.Column)
	}
	return func() tea.Msg {
		return appmsg.InsertTextMsg{Text: text}
	}
}

// View renders the sidebar.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	th := theme.Current
	innerW := max(m.width-2, 1)
	innerH := max(m.height-2, 1)

	title := " Tables "
	if m.database != "" {
		title = " " + m.database + " "
	}
	titleStyle := th.SidebarTitle
	if m.focused {
		titleStyle = titleStyle.Background(th.Palette.Selection)
	}
	header := []string{titleStyle.Width(innerW).Render(title)}
	if m.filtering || m.filter.Value() != "" {
		header = append(header, m.filter.View())
	}

	var body []string
	switch {
	case m.loading:
		body = []string{"", "  Loading tables..."}
	case len(m.tables) == 0:
		body = []string{"", "  No tables."}
	case len(m.flat) == 0:
		body = []string{"", th.MutedText.Render("  No matches.")}
	default:
		rows := max(innerH-len(header), 1)
		end := min(m.offset+rows, len(m.flat))
		for i := m.offset; i < end; i++ {
			body = append(body, m.renderNode(m.flat[i], i == m.cursor, innerW, th))
		}
	}

	content := strings.Join(append(header, body...), "\n")
	border := th.UnfocusedBorder
	if m.focused {
		border = th.FocusedBorder
	}
	return border.Width(innerW).Height(innerH).Render(content)
}

func (m Model) renderNode(node *TreeNode, selected bool, width int, th *theme.Theme) string {
	indent := strings.Repeat("  ", node.Depth)

	expand := "  "
	if len(node.Children) > 0 {
		expand = "▶ "
		if node.Expanded {
			expand = "▼ "
		}
	}

	icon := "  "
	switch {
	case node.Kind == NodeTable && useSimpleIcons:
		icon = "◆ "
	case node.Kind == NodeTable:
		icon = "📊 "
	case node.IsPK:
		icon = "PK"
	case node.IsFK:
		icon = "FK"
	}

	label := node.Label
	if node.Kind == NodeColumn && node.ColType != "" {
		label += " " + node.ColType
	}
	line := runewidth.FillRight(runewidth.Truncate(indent+expand+icon+" "+label, width, "…"), width)

	switch {
	case selected:
		return th.SidebarSelected.Render(line)
	case node.Kind == NodeTable:
		return th.SidebarTable.Render(line)
	case node.IsPK || node.IsFK:
		return th.SidebarKey.Render(line)
	default:
		return th.SidebarColumn.Render(line)
	}
}

// SetTables replaces the listing. Expansion state survives for tables that
// are still present.
func (m *Model) SetTables(tables []appmsg.TableInfo) {
	m.tables = tables
	m.rebuild()
}

// rebuild regenerates the tree from the table list and current filter.
func (m *Model) rebuild() {
	expanded := make(map[string]bool, len(m.nodes))
	for _, n := range m.nodes {
		if n.Expanded {
			expanded[n.Table] = true
		}
	}

	tables := m.tables
	if q := strings.TrimSpace(m.filter.Value()); q != "" {
		tables = filterTables(q, tables)
	}
	m.nodes = buildTree(tables, expanded)
	m.flatten()
	m.ensureVisible()
}

type tableNames []appmsg.TableInfo

func (t tableNames) String(i int) string { return strings.ToLower(t[i].Name) }
func (t tableNames) Len() int            { return len(t) }

// filterTables ranks tables by fuzzy match on their names, best first.
func filterTables(query string, tables []appmsg.TableInfo) []appmsg.TableInfo {
	matches := fuzzy.FindFrom(strings.ToLower(query), tableNames(tables))
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	out := make([]appmsg.TableInfo, 0, len(matches))
	for _, match := range matches {
		out = append(out, tables[match.Index])
	}
	return out
}

func buildTree(tables []appmsg.TableInfo, expanded map[string]bool) []*TreeNode {
	nodes := make([]*TreeNode, 0, len(tables))
	for _, t := range tables {
		tn := &TreeNode{
			Label:    t.Name,
			Kind:     NodeTable,
			Table:    t.Name,
			Expanded: expanded[t.Name],
		}
		if len(t.Columns) > 0 {
			tn.Label = fmt.Sprintf("%s (%d)", t.Name, len(t.Columns))
		}
		for _, c := range t.Columns {
			tn.Children = append(tn.Children, &TreeNode{
				Label:   c.Name,
				Kind:    NodeColumn,
				Depth:   1,
				Table:   t.Name,
				Column:  c.Name,
				ColType: c.Type,
				IsPK:    c.IsPrimaryKey,
				IsFK:    c.IsForeignKey,
			})
		}
		nodes = append(nodes, tn)
	}
	return nodes
}

func (m *Model) flatten() {
	m.flat = nil
	for _, n := range m.nodes {
		m.flat = append(m.flat, n)
		if n.Expanded {
			m.flat = append(m.flat, n.Children...)
		}
	}
	m.cursor = max(min(m.cursor, len(m.flat)-1), 0)
}

func (m *Model) ensureVisible() {
	rows := max(m.height-3, 1)
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+rows {
		m.offset = m.cursor - rows + 1
	}
}

// SetDatabase sets the title.
func (m *Model) SetDatabase(name string) { m.database = name }

// SetSize sets the outer dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) Focus() { m.focused = true }

func (m *Model) Blur() {
	m.focused = false
	m.filtering = false
	m.filter.Blur()
}

func (m Model) Focused() bool { return m.focused }

// Filtering reports whether the filter input has the keyboard.
func (m Model) Filtering() bool { return m.filtering }

func (m *Model) SetLoading(loading bool) { m.loading = loading }

// Selected returns the table under the cursor.
func (m Model) Selected() (string, bool) {
	if m.cursor >= len(m.flat) {
		return "", false
	}
	return m.flat[m.cursor].Table, true
}

// quoteIdentifier wraps a SQL identifier in double quotes, doubling any
// embedded quote.
func quoteIdentifier(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
