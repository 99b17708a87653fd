// Package app is the root bubbletea model. It lays out the panes, routes
// keys, and turns pane requests into viewer.Service calls run off the UI
// goroutine.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/dbviewer/internal/adapter"
	"github.com/sadopc/dbviewer/internal/audit"
	"github.com/sadopc/dbviewer/internal/config"
	"github.com/sadopc/dbviewer/internal/history"
	appmsg "github.com/sadopc/dbviewer/internal/msg"
	"github.com/sadopc/dbviewer/internal/theme"
	"github.com/sadopc/dbviewer/internal/ui/connmgr"
	"github.com/sadopc/dbviewer/internal/ui/diagramview"
	"github.com/sadopc/dbviewer/internal/ui/editor"
	"github.com/sadopc/dbviewer/internal/ui/historybrowser"
	"github.com/sadopc/dbviewer/internal/ui/results"
	"github.com/sadopc/dbviewer/internal/ui/sidebar"
	"github.com/sadopc/dbviewer/internal/ui/statusbar"
	"github.com/sadopc/dbviewer/internal/viewer"
)

// requestTimeout bounds a single service call.
const requestTimeout = 5 * time.Minute

var errNoResults = errors.New("no results to export")

// Model is the root application model.
type Model struct {
	// Layout
	width        int
	height       int
	sidebarWidth int
	editorHeight int // percentage of the main area given to the editor
	showSidebar  bool
	showDiagram  bool

	focusedPane Pane

	sidebar   sidebar.Model
	editor    editor.Model
	results   results.Model
	diagram   diagramview.Model
	statusbar statusbar.Model
	help      help.Model

	// Overlays
	connMgr     connmgr.Model
	histBrowser historybrowser.Model

	// Database
	conn       adapter.Connection
	svc        *viewer.Service
	svcOpts    viewer.Options
	cancelFunc context.CancelFunc
	connGen    uint64

	cfg    *config.Config
	keyMap KeyMap

	showHelp  bool
	executing bool
	quitting  bool
}

// New creates the app model. hist and auditLog may be nil.
func New(cfg *config.Config, hist *history.History, auditLog *audit.Logger) Model {
	theme.Current = theme.Get(cfg.Theme)

	res := results.New()
	res.SetMaxColumnWidth(cfg.Results.MaxColumnWidth)

	ed := editor.New("")
	ed.Focus()

	var store historybrowser.Store
	if hist != nil {
		store = hist
	}

	return Model{
		sidebarWidth: 30,
		editorHeight: 30,
		showSidebar:  true,
		focusedPane:  PaneEditor,

		sidebar:   sidebar.New(),
		editor:    ed,
		results:   res,
		diagram:   diagramview.New(),
		statusbar: statusbar.New(),
		help:      help.New(),

		connMgr:     connmgr.New(cfg.Connections),
		histBrowser: historybrowser.New(store),

		svcOpts: viewer.Options{
			Layout:   cfg.Diagram.Layout(),
			Diagram:  cfg.Diagram.Options,
			RowLimit: cfg.Results.RowLimit,
			Audit:    auditLog,
			History:  hist,
		},
		cfg:    cfg,
		keyMap: DefaultKeyMap(),
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles all messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		return m, nil

	case tea.KeyMsg:
		if m.showHelp {
			switch msg.String() {
			case "f1", "?", "esc", "q":
				m.showHelp = false
			}
			return m, nil
		}
		if key.Matches(msg, m.keyMap.Quit) {
			m.quitting = true
			m.cancel()
			return m, tea.Quit
		}
		if m.connMgr.Visible() {
			var cmd tea.Cmd
			m.connMgr, cmd = m.connMgr.Update(msg)
			return m, cmd
		}
		if m.histBrowser.Visible() {
			var cmd tea.Cmd
			m.histBrowser, cmd = m.histBrowser.Update(msg)
			return m, cmd
		}
		if cmd, handled := m.handleGlobalKeys(msg); handled {
			return m, cmd
		}
		return m, m.handleFocusedPaneKey(msg)

	case ConnectMsg:
		m.connMgr.Hide()
		m.setConnection(msg.Conn)
		var cmd tea.Cmd
		m.statusbar, cmd = m.statusbar.Update(msg)
		cmds = append(cmds, cmd, m.reload())

	case ConnectErrMsg:
		if m.conn == nil {
			m.connMgr.ShowError(msg.Err)
		}
		var cmd tea.Cmd
		m.statusbar, cmd = m.statusbar.Update(msg)
		cmds = append(cmds, cmd)

	case connmgr.ConnectRequestMsg:
		cmds = append(cmds, m.status("Connecting...", false), Connect(msg.AdapterName, msg.DSN))

	case connmgr.ConnectionsUpdatedMsg:
		m.cfg.Connections = msg.Connections
		cmds = append(cmds, saveConnections(m.cfg))

	case appmsg.Request:
		cmds = append(cmds, m.request(msg))

	case ResponseMsg:
		if msg.Gen != m.connGen {
			break // answer from a previous connection
		}
		cmds = append(cmds, m.handleResponse(msg))

	case InsertTextMsg:
		m.editor.InsertText(msg.Text)
		m.setFocus(PaneEditor)

	case results.EditErrMsg:
		cmds = append(cmds, m.status(msg.Err.Error(), true))

	case ExportCompleteMsg:
		cmds = append(cmds, m.status(fmt.Sprintf("Exported %d rows to %s", msg.RowCount, msg.Path), false))

	case ExportErrMsg:
		cmds = append(cmds, m.status("Export failed: "+msg.Err.Error(), true))

	case StatusMsg, statusbar.ClearStatusMsg:
		var cmd tea.Cmd
		m.statusbar, cmd = m.statusbar.Update(msg)
		cmds = append(cmds, cmd)

	default:
		// Cursor blink and other component ticks.
		var cmd tea.Cmd
		switch {
		case m.connMgr.Visible():
			m.connMgr, cmd = m.connMgr.Update(msg)
		case m.histBrowser.Visible():
			m.histBrowser, cmd = m.histBrowser.Update(msg)
		default:
			m.editor, cmd = m.editor.Update(msg)
		}
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// handleGlobalKeys handles keys that work from any pane. It reports whether
// the key was consumed.
func (m *Model) handleGlobalKeys(msg tea.KeyMsg) (tea.Cmd, bool) {
	km := m.keyMap
	switch {
	case key.Matches(msg, km.CancelQuery):
		if !m.executing {
			return nil, true
		}
		m.cancel()
		m.executing = false
		m.results.SetLoading(false)
		return m.status("Query cancelled", false), true
	}

	// Text inputs own the keyboard while open.
	if m.results.Editing() || m.sidebar.Filtering() {
		return nil, false
	}

	switch {
	case key.Matches(msg, km.Help):
		m.showHelp = true
	case msg.String() == "?" && m.focusedPane != PaneEditor:
		m.showHelp = true
	case key.Matches(msg, km.RunQuery):
		return m.runEditorQuery(), true
	case key.Matches(msg, km.ToggleDiagram):
		return m.toggleDiagram(), true
	case key.Matches(msg, km.ReloadSchema):
		return m.reload(), true
	case key.Matches(msg, km.OpenConnMgr):
		m.connMgr.Show()
	case key.Matches(msg, km.History):
		return m.histBrowser.Show(), true
	case key.Matches(msg, km.Export):
		return m.exportResults(), true
	case key.Matches(msg, km.ToggleSidebar):
		m.showSidebar = !m.showSidebar
		if !m.showSidebar && m.focusedPane == PaneSidebar {
			m.cycleFocus(1)
		}
		m.updateLayout()
	case key.Matches(msg, km.FilterTables) && m.focusedPane != PaneEditor:
		m.showSidebar = true
		m.updateLayout()
		m.setFocus(PaneSidebar)
		var cmd tea.Cmd
		m.sidebar, cmd = m.sidebar.Update(msg)
		return cmd, true
	case key.Matches(msg, km.FocusNext):
		m.cycleFocus(1)
	case key.Matches(msg, km.FocusPrev):
		m.cycleFocus(-1)
	case key.Matches(msg, km.FocusSidebar):
		m.showSidebar = true
		m.updateLayout()
		m.setFocus(PaneSidebar)
	case key.Matches(msg, km.FocusEditor):
		m.showDiagram = false
		m.setFocus(PaneEditor)
	case key.Matches(msg, km.FocusResults):
		m.showDiagram = false
		m.setFocus(PaneResults)
	case key.Matches(msg, km.ResizeLeft):
		if m.sidebarWidth > 15 {
			m.sidebarWidth -= 2
			m.updateLayout()
		}
	case key.Matches(msg, km.ResizeRight):
		if m.sidebarWidth < m.width/2 {
			m.sidebarWidth += 2
			m.updateLayout()
		}
	case key.Matches(msg, km.ResizeUp):
		if m.editorHeight > 15 {
			m.editorHeight -= 5
			m.updateLayout()
		}
	case key.Matches(msg, km.ResizeDown):
		if m.editorHeight < 80 {
			m.editorHeight += 5
			m.updateLayout()
		}
	default:
		return nil, false
	}
	return nil, true
}

func (m *Model) handleFocusedPaneKey(msg tea.KeyMsg) tea.Cmd {
	var cmd tea.Cmd
	switch m.focusedPane {
	case PaneSidebar:
		m.sidebar, cmd = m.sidebar.Update(msg)
	case PaneEditor:
		m.editor, cmd = m.editor.Update(msg)
	case PaneResults:
		m.results, cmd = m.results.Update(msg)
	case PaneDiagram:
		m.diagram, cmd = m.diagram.Update(msg)
	}
	return cmd
}

// setConnection swaps the connection and bumps the generation so answers
// still in flight for the old one are dropped.
func (m *Model) setConnection(conn adapter.Connection) {
	m.cancel()
	if m.conn != nil && m.conn != conn {
		m.conn.Close()
	}
	m.conn = conn
	m.svc = viewer.New(conn, m.svcOpts)
	m.connGen++
	m.executing = false

	m.editor.SetDialect(conn.AdapterName())
	m.sidebar.SetDatabase(conn.DatabaseName())
}

// reload asks for the table list and the diagram again.
func (m *Model) reload() tea.Cmd {
	if m.svc == nil {
		return m.status(adapter.ErrNotConnected.Error(), true)
	}
	m.sidebar.SetLoading(true)
	m.diagram.SetLoading(true)
	return tea.Batch(
		m.request(appmsg.QueryDatabaseMsg{}),
		m.request(appmsg.RenderDiagramMsg{Positions: m.cfg.Diagram.Positions}),
	)
}

// request runs req against the service in a command. Table queries replace
// any query still running.
func (m *Model) request(req appmsg.Request) tea.Cmd {
	svc := m.svc
	gen := m.connGen
	if svc == nil {
		return m.status(adapter.ErrNotConnected.Error(), true)
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	if _, ok := req.(appmsg.QueryTableMsg); ok {
		m.cancel()
		m.cancelFunc = cancel
		m.executing = true
		m.results.SetLoading(true)
	}

	return func() tea.Msg {
		defer cancel()
		start := time.Now()
		resp := svc.Handle(ctx, req)
		return ResponseMsg{Request: req, Response: resp, Gen: gen, Duration: time.Since(start)}
	}
}

func (m *Model) handleResponse(msg ResponseMsg) tea.Cmd {
	switch r := msg.Response.(type) {
	case appmsg.DisplayTablesMsg:
		m.sidebar, _ = m.sidebar.Update(r)
	case appmsg.DisplayQueryResultsMsg:
		m.executing = false
		m.results.SetResults(r, msg.Duration)
		if q, ok := msg.Request.(appmsg.QueryTableMsg); ok && q.SelectQuery == "" {
			m.editor.SetValue(r.SelectQuery)
			m.editor.ResetModified()
		}
		if m.showDiagram {
			m.showDiagram = false
			m.updateLayout()
		}
	case appmsg.RecordUpdatedMsg:
		if req, ok := msg.Request.(appmsg.UpdateRecordMsg); ok && r.RowsAffected > 0 {
			m.results.ApplyUpdate(req)
		}
	case appmsg.DisplayDiagramMsg:
		m.diagram.SetDiagram(r)
	case appmsg.ErrorMsg:
		switch r.Request {
		case appmsg.CmdQueryTable:
			m.executing = false
			m.results.SetError(r)
		case appmsg.CmdQueryDatabase:
			m.sidebar.SetLoading(false)
		case appmsg.CmdRenderDiagram:
			m.diagram.SetLoading(false)
		}
	}
	var cmd tea.Cmd
	m.statusbar, cmd = m.statusbar.Update(msg)
	return cmd
}

func (m *Model) runEditorQuery() tea.Cmd {
	query := strings.TrimSpace(m.editor.Value())
	if query == "" {
		return nil
	}
	return m.request(appmsg.QueryTableMsg{SelectQuery: query})
}

func (m *Model) toggleDiagram() tea.Cmd {
	m.showDiagram = !m.showDiagram
	m.updateLayout()
	if m.showDiagram {
		m.setFocus(PaneDiagram)
		if m.diagram.Lines() == nil && m.svc != nil {
			m.diagram.SetLoading(true)
			return m.request(appmsg.RenderDiagramMsg{Positions: m.cfg.Diagram.Positions})
		}
		return nil
	}
	m.setFocus(PaneResults)
	return nil
}

func (m *Model) cancel() {
	if m.cancelFunc != nil {
		m.cancelFunc()
		m.cancelFunc = nil
	}
	if m.conn != nil && m.executing {
		m.conn.Cancel()
	}
}

func (m *Model) status(text string, isError bool) tea.Cmd {
	var cmd tea.Cmd
	m.statusbar, cmd = m.statusbar.Update(StatusMsg{Text: text, IsError: isError})
	return cmd
}

// View renders the entire application.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var main string
	if m.showDiagram {
		main = m.diagram.View()
	} else {
		main = lipgloss.JoinVertical(lipgloss.Left, m.editor.View(), m.results.View())
	}
	content := main
	if m.showSidebar {
		content = lipgloss.JoinHorizontal(lipgloss.Top, m.sidebar.View(), main)
	}
	view := lipgloss.JoinVertical(lipgloss.Left, content, m.statusbar.View())

	switch {
	case m.showHelp:
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.renderHelpScreen())
	case m.connMgr.Visible():
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.connMgr.View())
	case m.histBrowser.Visible():
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.histBrowser.View())
	}
	return view
}

func (m *Model) updateLayout() {
	m.statusbar.SetSize(m.width)

	mainHeight := max(m.height-1, 3)
	mainWidth := m.width
	if m.showSidebar {
		mainWidth = max(m.width-m.sidebarWidth, 10)
		m.sidebar.SetSize(m.sidebarWidth, mainHeight)
	}

	editorH := max(mainHeight*m.editorHeight/100, 3)
	resultsH := max(mainHeight-editorH, 3)
	m.editor.SetSize(mainWidth, editorH)
	m.results.SetSize(mainWidth, resultsH)
	m.diagram.SetSize(mainWidth, mainHeight)
	m.help.Width = m.width
	m.connMgr.SetSize(m.width)
	m.histBrowser.SetSize(m.width, m.height)
}

// panes lists the focusable panes in Tab order.
func (m Model) panes() []Pane {
	var out []Pane
	if m.showSidebar {
		out = append(out, PaneSidebar)
	}
	if m.showDiagram {
		return append(out, PaneDiagram)
	}
	return append(out, PaneEditor, PaneResults)
}

func (m *Model) cycleFocus(direction int) {
	panes := m.panes()
	current := 0
	for i, p := range panes {
		if p == m.focusedPane {
			current = i
			break
		}
	}
	m.setFocus(panes[(current+direction+len(panes))%len(panes)])
}

func (m *Model) setFocus(pane Pane) {
	switch m.focusedPane {
	case PaneSidebar:
		m.sidebar.Blur()
	case PaneEditor:
		m.editor.Blur()
	case PaneResults:
		m.results.Blur()
	case PaneDiagram:
		m.diagram.Blur()
	}

	m.focusedPane = pane
	m.statusbar, _ = m.statusbar.Update(FocusMsg{Pane: pane})

	switch pane {
	case PaneSidebar:
		m.sidebar.Focus()
	case PaneEditor:
		m.editor.Focus()
	case PaneResults:
		m.results.Focus()
	case PaneDiagram:
		m.diagram.Focus()
	}
}

// Connect returns a command that opens a connection with the named adapter.
func Connect(adapterName, dsn string) tea.Cmd {
	return func() tea.Msg {
		a, ok := adapter.Registry[adapterName]
		if !ok {
			return ConnectErrMsg{Err: fmt.Errorf("unknown adapter: %s", adapterName)}
		}
		ctx := context.Background()
		conn, err := a.Connect(ctx, dsn)
		if err != nil {
			return ConnectErrMsg{Err: err}
		}
		if err := conn.Ping(ctx); err != nil {
			conn.Close()
			return ConnectErrMsg{Err: err}
		}
		return ConnectMsg{Conn: conn, Adapter: adapterName, DSN: dsn}
	}
}

// ShowConnManager opens the connection screen, for starting without a DSN.
func (m *Model) ShowConnManager() {
	m.connMgr.Show()
}

// saveConnections persists the saved connections to the default config file.
func saveConnections(cfg *config.Config) tea.Cmd {
	return func() tea.Msg {
		if err := cfg.SaveDefault(); err != nil {
			return StatusMsg{Text: "could not save connections: " + err.Error(), IsError: true}
		}
		return StatusMsg{Text: "Connections saved"}
	}
}

// Connection returns the current connection, or nil.
func (m Model) Connection() adapter.Connection {
	return m.conn
}

func (m Model) renderHelpScreen() string {
	th := theme.Current
	title := th.SidebarTitle.MarginBottom(1).Render("dbviewer keyboard shortcuts")
	panes := th.MutedText.Render(strings.Join([]string{
		"Tables:  enter open · i insert name · l/h expand/collapse",
		"Results: h/j/k/l move · e edit · enter save · esc cancel · ctrl+n NULL",
		"Diagram: arrows scroll · +/- zoom",
		"",
		"Press F1 / ? / Esc to close",
	}, "\n"))
	h := m.help
	h.ShowAll = true
	body := lipgloss.JoinVertical(lipgloss.Left, title, h.View(m.keyMap), "", panes)
	return th.FocusedBorder.Padding(1, 2).Render(body)
}

func (m *Model) exportResults() tea.Cmd {
	res := m.results.Result()
	if len(res.Columns) == 0 || len(res.Rows) == 0 {
		return func() tea.Msg { return ExportErrMsg{Err: errNoResults} }
	}
	return func() tea.Msg {
		dir, err := os.Getwd()
		if err != nil {
			return ExportErrMsg{Err: err}
		}
		name := res.TableName
		if name == "" {
			name = "query"
		}
		path := filepath.Join(dir, fmt.Sprintf("%s_%s.csv", name, time.Now().Format("20060102_150405")))
		n, err := results.ExportCSV(path, res)
		if err != nil {
			return ExportErrMsg{Err: err}
		}
		return ExportCompleteMsg{Path: path, RowCount: n}
	}
}
