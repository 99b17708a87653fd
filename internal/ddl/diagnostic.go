package ddl

import (
	"fmt"
	"strings"
)

// Kind classifies a diagnostic.
type Kind string

const (
	KindSkippedStatement     Kind = "skipped_statement"
	KindSkippedElement       Kind = "skipped_element"
	KindDuplicateTable       Kind = "duplicate_table"
	KindUnresolvedForeignKey Kind = "unresolved_foreign_key"
	KindForeignKeyArity      Kind = "foreign_key_arity"
	KindUnknownTable         Kind = "unknown_table"
	KindUnterminated         Kind = "unterminated"
)

// Span is a half-open byte range in the source text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Diagnostic describes input the extractor skipped or could only partially
// understand. Diagnostics never abort extraction.
type Diagnostic struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Table   string `json:"table,omitempty"`
	Span    Span   `json:"span"`
	Line    int    `json:"line"`
}

func (d Diagnostic) String() string {
	var sb strings.Builder
	if d.Line > 0 {
		fmt.Fprintf(&sb, "line %d: ", d.Line)
	}
	fmt.Fprintf(&sb, "%s: %s", d.Kind, d.Message)
	if d.Table != "" {
		fmt.Fprintf(&sb, " (table %s)", d.Table)
	}
	return sb.String()
}

// tableDiagnostic reports a problem found after parsing, when only the
// owning table is known.
func tableDiagnostic(kind Kind, message, table string) Diagnostic {
	return Diagnostic{Kind: kind, Message: message, Table: table}
}

func newDiagnostic(src string, kind Kind, message, table string, span Span) Diagnostic {
	start := span.Start
	if start > len(src) {
		start = len(src)
	}
	return Diagnostic{
		Kind:    kind,
		Message: message,
		Table:   table,
		Span:    span,
		Line:    strings.Count(src[:start], "\n") + 1,
	}
}
