// Package theme holds the lipgloss styles of the terminal UI. Each theme is
// built from a small palette, so every pane draws from the same colours and
// the whole look can be swapped at runtime.
package theme

import "github.com/charmbracelet/lipgloss"

// Palette is the set of colours a theme is derived from.
type Palette struct {
	Background lipgloss.Color
	Surface    lipgloss.Color
	Foreground lipgloss.Color
	Muted      lipgloss.Color
	Border     lipgloss.Color
	Accent     lipgloss.Color
	Selection  lipgloss.Color
	OnAccent   lipgloss.Color

	Keyword lipgloss.Color
	String  lipgloss.Color
	Number  lipgloss.Color
	Comment lipgloss.Color
	Func    lipgloss.Color
	Type    lipgloss.Color

	PrimaryKey lipgloss.Color
	ForeignKey lipgloss.Color

	Error   lipgloss.Color
	Success lipgloss.Color
	Warning lipgloss.Color
}

// Theme holds lipgloss.Style values for every UI element in the application.
type Theme struct {
	Name    string
	Palette Palette

	// Sidebar table tree
	SidebarTitle      lipgloss.Style
	SidebarDatabase   lipgloss.Style
	SidebarTable      lipgloss.Style
	SidebarColumn     lipgloss.Style
	SidebarColumnType lipgloss.Style
	SidebarKey        lipgloss.Style
	SidebarSelected   lipgloss.Style

	// Editor
	EditorLineNumber lipgloss.Style

	// SQL Syntax highlighting
	SQLKeyword    lipgloss.Style
	SQLString     lipgloss.Style
	SQLNumber     lipgloss.Style
	SQLComment    lipgloss.Style
	SQLOperator   lipgloss.Style
	SQLFunction   lipgloss.Style
	SQLType       lipgloss.Style
	SQLIdentifier lipgloss.Style

	// Results table
	ResultsHeader       lipgloss.Style
	ResultsKeyHeader    lipgloss.Style
	ResultsCell         lipgloss.Style
	ResultsSelectedRow  lipgloss.Style
	ResultsSelectedCell lipgloss.Style
	ResultsNull         lipgloss.Style
	ResultsEditing      lipgloss.Style

	// ER diagram pane
	DiagramBox   lipgloss.Style
	DiagramTitle lipgloss.Style
	DiagramEdge  lipgloss.Style

	// Status bar
	StatusBar        lipgloss.Style
	StatusBarKey     lipgloss.Style
	StatusBarValue   lipgloss.Style
	StatusBarError   lipgloss.Style
	StatusBarSuccess lipgloss.Style

	// General
	FocusedBorder   lipgloss.Style
	UnfocusedBorder lipgloss.Style
	ErrorText       lipgloss.Style
	SuccessText     lipgloss.Style
	WarningText     lipgloss.Style
	MutedText       lipgloss.Style
}

// New derives a theme from a palette.
func New(name string, p Palette) *Theme {
	fg := func(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }
	border := func(c lipgloss.Color) lipgloss.Style {
		return lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(c)
	}
	pill := func(fgc, bg lipgloss.Color) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(fgc).Background(bg).PaddingLeft(1).PaddingRight(1)
	}

	return &Theme{
		Name:    name,
		Palette: p,

		SidebarTitle:      fg(p.Accent).Bold(true).PaddingLeft(1),
		SidebarDatabase:   fg(p.Warning).Bold(true),
		SidebarTable:      fg(p.Type),
		SidebarColumn:     fg(p.Foreground),
		SidebarColumnType: fg(p.Muted).Italic(true),
		SidebarKey:        fg(p.PrimaryKey).Bold(true),
		SidebarSelected:   lipgloss.NewStyle().Bold(true).Foreground(p.Foreground).Background(p.Selection),

		EditorLineNumber: fg(p.Muted),

		SQLKeyword:    fg(p.Keyword).Bold(true),
		SQLString:     fg(p.String),
		SQLNumber:     fg(p.Number),
		SQLComment:    fg(p.Comment).Italic(true),
		SQLOperator:   fg(p.Foreground),
		SQLFunction:   fg(p.Func),
		SQLType:       fg(p.Type),
		SQLIdentifier: fg(p.Foreground),

		ResultsHeader:       fg(p.Accent).Bold(true),
		ResultsKeyHeader:    fg(p.PrimaryKey).Bold(true),
		ResultsCell:         fg(p.Foreground),
		ResultsSelectedRow:  lipgloss.NewStyle().Foreground(p.Foreground).Background(p.Selection),
		ResultsSelectedCell: lipgloss.NewStyle().Bold(true).Foreground(p.OnAccent).Background(p.Accent),
		ResultsNull:         fg(p.Muted).Italic(true),
		ResultsEditing:      lipgloss.NewStyle().Foreground(p.Foreground).Background(p.Surface).Underline(true),

		DiagramBox:   fg(p.Border),
		DiagramTitle: fg(p.Type).Bold(true),
		DiagramEdge:  fg(p.ForeignKey),

		StatusBar:        lipgloss.NewStyle().Foreground(p.Foreground).Background(p.Surface),
		StatusBarKey:     pill(p.OnAccent, p.Accent).Bold(true),
		StatusBarValue:   pill(p.Foreground, p.Surface),
		StatusBarError:   lipgloss.NewStyle().Bold(true).Foreground(p.Foreground).Background(p.Error),
		StatusBarSuccess: lipgloss.NewStyle().Bold(true).Foreground(p.Background).Background(p.Success),

		FocusedBorder:   border(p.Accent),
		UnfocusedBorder: border(p.Border),
		ErrorText:       fg(p.Error).Bold(true),
		SuccessText:     fg(p.Success),
		WarningText:     fg(p.Warning),
		MutedText:       fg(p.Muted),
	}
}

var (
	defaultPalette = Palette{
		Background: "#1E1E1E", Surface: "#252526", Foreground: "#D4D4D4", Muted: "#808080",
		Border: "#3C3C3C", Accent: "#569CD6", Selection: "#264F78", OnAccent: "#1E1E1E",
		Keyword: "#569CD6", String: "#CE9178", Number: "#B5CEA8", Comment: "#6A9955",
		Func: "#DCDCAA", Type: "#4EC9B0",
		PrimaryKey: "#DCDCAA", ForeignKey: "#C586C0",
		Error: "#F44747", Success: "#6A9955", Warning: "#CCA700",
	}

	lightPalette = Palette{
		Background: "#FFFFFF", Surface: "#F3F3F3", Foreground: "#1E1E1E", Muted: "#6E6E6E",
		Border: "#C8C8C8", Accent: "#0066B8", Selection: "#ADD6FF", OnAccent: "#FFFFFF",
		Keyword: "#0000FF", String: "#A31515", Number: "#098658", Comment: "#008000",
		Func: "#795E26", Type: "#267F99",
		PrimaryKey: "#795E26", ForeignKey: "#AF00DB",
		Error: "#CD3131", Success: "#388A34", Warning: "#BF8803",
	}

	monokaiPalette = Palette{
		Background: "#272822", Surface: "#3E3D32", Foreground: "#F8F8F2", Muted: "#75715E",
		Border: "#49483E", Accent: "#F92672", Selection: "#49483E", OnAccent: "#272822",
		Keyword: "#F92672", String: "#E6DB74", Number: "#AE81FF", Comment: "#75715E",
		Func: "#A6E22E", Type: "#66D9EF",
		PrimaryKey: "#E6DB74", ForeignKey: "#FD971F",
		Error: "#F92672", Success: "#A6E22E", Warning: "#E6DB74",
	}
)

// Themes maps theme names to their Theme definitions.
var Themes = map[string]*Theme{
	"default": New("default", defaultPalette),
	"light":   New("light", lightPalette),
	"monokai": New("monokai", monokaiPalette),
}

// Current is the currently active theme. It is initialized to Default.
var Current = Themes["default"]

// Default returns the default dark theme.
func Default() *Theme {
	return Themes["default"]
}

// Get returns the theme identified by name. If no theme with that name exists
// it falls back to the default theme.
func Get(name string) *Theme {
	if t, ok := Themes[name]; ok {
		return t
	}
	return Default()
}
