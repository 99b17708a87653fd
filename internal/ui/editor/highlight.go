// Package editor is the SELECT query pane. Text is edited in a bubbles
// textarea and shown syntax-highlighted with chroma while the pane is not
// focused.
package editor

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/dbviewer/internal/theme"
)

// lexerNames maps adapter names to chroma lexers.
var lexerNames = map[string]string{
	"postgres": "PostgreSQL",
	"mysql":    "MySQL",
}

// Highlighter tokenises SQL with chroma and renders it with theme styles.
type Highlighter struct {
	lexer chroma.Lexer
}

// NewHighlighter returns a highlighter for the given adapter's SQL dialect.
// Unknown adapters use the generic SQL lexer.
func NewHighlighter(adapterName string) *Highlighter {
	var l chroma.Lexer
	if name, ok := lexerNames[adapterName]; ok {
		l = lexers.Get(name)
	}
	if l == nil {
		l = lexers.Get("SQL")
	}
	if l == nil {
		l = lexers.Fallback
	}
	return &Highlighter{lexer: chroma.Coalesce(l)}
}

// Highlight returns sql with every token styled from th. Newlines pass
// through unstyled so line splitting still works on the result.
func (h *Highlighter) Highlight(sql string, th *theme.Theme) string {
	if th == nil {
		return sql
	}
	iter, err := h.lexer.Tokenise(nil, sql)
	if err != nil {
		return sql
	}

	var b strings.Builder
	b.Grow(len(sql) * 2)
	for _, tok := range iter.Tokens() {
		if tok.Value == "" {
			continue
		}
		style, ok := styleFor(tok.Type, th)
		if !ok {
			b.WriteString(tok.Value)
			continue
		}
		for i, part := range strings.Split(tok.Value, "\n") {
			if i > 0 {
				b.WriteByte('\n')
			}
			if part != "" {
				b.WriteString(style.Render(part))
			}
		}
	}
	return b.String()
}

// styleFor maps a chroma token type to a theme style. It reports false for
// tokens that render unstyled.
func styleFor(tt chroma.TokenType, th *theme.Theme) (lipgloss.Style, bool) {
	switch {
	case tt == chroma.KeywordType:
		return th.SQLType, true
	case tt == chroma.NameFunction || tt == chroma.NameBuiltin:
		return th.SQLFunction, true
	case tt.InCategory(chroma.Keyword):
		return th.SQLKeyword, true
	case tt.InSubCategory(chroma.LiteralString):
		return th.SQLString, true
	case tt.InSubCategory(chroma.LiteralNumber):
		return th.SQLNumber, true
	case tt.InCategory(chroma.Comment):
		return th.SQLComment, true
	case tt.InCategory(chroma.Operator):
		return th.SQLOperator, true
	}
	return lipgloss.Style{}, false
}
