// Package ddl extracts table, column and foreign key structure from raw SQL
// DDL text. Extraction is best-effort: input it cannot understand is skipped
// and reported as diagnostics rather than failing the whole run.
package ddl

import (
	"fmt"
	"strings"

	"github.com/sadopc/dbviewer/internal/schema"
)

// Result is the outcome of an extraction.
type Result struct {
	Schema      *schema.Schema `json:"schema"`
	Diagnostics []Diagnostic   `json:"diagnostics"`
}

// Extract parses CREATE TABLE statements (and ALTER TABLE ... ADD clauses)
// from raw DDL text. It is deterministic and never fails; empty input yields
// an empty schema.
func Extract(raw string) *Result {
	toks, diags := lex(raw)
	e := &extractor{src: raw, schema: schema.New(), diags: append([]Diagnostic{}, diags...)}
	for _, st := range splitStatements(toks) {
		e.statement(st)
	}
	e.applyPending()
	e.resolveForeignKeys()
	return &Result{Schema: e.schema, Diagnostics: e.diags}
}

// pending holds clauses that modify a table defined elsewhere. They are
// applied once every CREATE TABLE has been registered.
type pending struct {
	table   string // empty for a bare FOREIGN KEY clause
	columns []schema.Column
	fks     []schema.ForeignKey
	keys    []string
	span    Span
}

type extractor struct {
	src     string
	schema  *schema.Schema
	diags   []Diagnostic
	pending []pending
}

func (e *extractor) report(kind Kind, table string, span Span, format string, args ...any) {
	e.diags = append(e.diags, newDiagnostic(e.src, kind, fmt.Sprintf(format, args...), table, span))
}

// text returns the source covered by toks with runs of whitespace collapsed.
func (e *extractor) text(toks []token) string {
	if len(toks) == 0 {
		return ""
	}
	return strings.Join(strings.Fields(e.src[toks[0].start:toks[len(toks)-1].end]), " ")
}

func tokensSpan(toks []token) Span {
	if len(toks) == 0 {
		return Span{}
	}
	return Span{Start: toks[0].start, End: toks[len(toks)-1].end}
}

func (e *extractor) statement(st statement) {
	c := &cursor{toks: st.toks}
	switch {
	case c.peek().is("CREATE"):
		if isCreateTable(c) {
			e.createTable(st)
		}
	case c.peek().is("ALTER"):
		e.alterTable(st)
	default:
		e.collectStray(st)
	}
}

var tableModifiers = map[string]bool{
	"TEMP":      true,
	"TEMPORARY": true,
	"GLOBAL":    true,
	"LOCAL":     true,
	"UNLOGGED":  true,
}

// skipCreatePrefix consumes CREATE [OR REPLACE] [modifiers] and reports
// whether TABLE follows.
func skipCreatePrefix(c *cursor) bool {
	if !c.accept("CREATE") {
		return false
	}
	c.accept("OR", "REPLACE")
	for c.peek().kind == tokWord && tableModifiers[strings.ToUpper(c.peek().text)] {
		c.next()
	}
	return c.peek().is("TABLE")
}

func isCreateTable(c *cursor) bool {
	ahead := &cursor{toks: c.toks, pos: c.pos}
	return skipCreatePrefix(ahead)
}

func (e *extractor) createTable(st statement) {
	c := &cursor{toks: st.toks}
	skipCreatePrefix(c)
	c.next() // TABLE
	c.accept("IF", "NOT", "EXISTS")

	name, ok := qualifiedName(c)
	if !ok {
		e.report(KindSkippedStatement, "", st.span(), "CREATE TABLE without a table name")
		return
	}
	if c.peek().is("AS") {
		e.report(KindSkippedStatement, name, st.span(), "CREATE TABLE ... AS query has no column list")
		return
	}
	if c.peek().kind != tokLParen {
		e.report(KindSkippedStatement, name, st.span(), "CREATE TABLE without a column list")
		return
	}
	c.next()
	elems, closed := splitElements(c)
	if !closed {
		e.report(KindSkippedStatement, name, st.span(), "unbalanced parentheses in column list")
		return
	}

	tbl := schema.Table{Name: name}
	for _, el := range elems {
		e.element(&tbl, el)
	}
	if tbl.Columns == nil {
		tbl.Columns = []schema.Column{}
	}
	if e.schema.Add(tbl) {
		e.report(KindDuplicateTable, name, st.span(), "table defined more than once; later definition wins")
	}
}

// element parses one entry of a column list into tbl.
func (e *extractor) element(tbl *schema.Table, toks []token) {
	c := &cursor{toks: toks}
	if isTableConstraint(c) {
		e.tableConstraint(tbl, c)
		return
	}
	if !c.peek().isIdent() {
		e.report(KindSkippedElement, tbl.Name, tokensSpan(toks), "unexpected %q in column list", c.peek().text)
		return
	}

	name := c.next().text
	typ := readType(c)
	rest := c.rest()
	tbl.Columns = append(tbl.Columns, schema.Column{
		Name:        name,
		Type:        e.text(typ),
		Constraints: e.text(rest),
	})

	depth := 0
	for i, t := range rest {
		switch {
		case t.kind == tokLParen:
			depth++
		case t.kind == tokRParen:
			depth--
		case depth == 0 && t.is("REFERENCES"):
			rc := &cursor{toks: rest[i+1:]}
			table, cols, ok := references(rc)
			if !ok {
				e.report(KindSkippedElement, tbl.Name, tokensSpan(rest[i:]), "malformed REFERENCES on column %s", name)
				continue
			}
			tbl.ForeignKeys = append(tbl.ForeignKeys, schema.ForeignKey{
				FromColumns: []string{name},
				ToTable:     table,
				ToColumns:   cols,
			})
		}
	}
}

// tableConstraint handles CONSTRAINT/PRIMARY KEY/UNIQUE/CHECK/FOREIGN KEY
// entries. Only primary and foreign keys carry structure we keep.
func (e *extractor) tableConstraint(tbl *schema.Table, c *cursor) {
	span := tokensSpan(c.rest())
	if c.accept("CONSTRAINT") && c.peek().isIdent() && !c.peek().is("FOREIGN") && !c.peek().is("PRIMARY") {
		c.next()
	}
	switch {
	case c.accept("PRIMARY", "KEY"):
		if cols, ok := identList(c); ok && len(cols) > 0 {
			tbl.KeyColumns = cols
		}
	case c.accept("FOREIGN", "KEY"):
		fk, problem := foreignKeyBody(c)
		if problem != "" {
			e.report(KindSkippedElement, tbl.Name, span, "%s", problem)
			return
		}
		tbl.ForeignKeys = append(tbl.ForeignKeys, fk)
	}
}

// foreignKeyBody parses "(cols) REFERENCES t [(cols)]" after FOREIGN KEY.
// MySQL allows an index name before the column list.
func foreignKeyBody(c *cursor) (schema.ForeignKey, string) {
	if c.peek().isIdent() && c.at(1).kind == tokLParen {
		c.next()
	}
	from, ok := identList(c)
	if !ok || len(from) == 0 {
		return schema.ForeignKey{}, "FOREIGN KEY without a column list"
	}
	if !c.accept("REFERENCES") {
		return schema.ForeignKey{}, "FOREIGN KEY without REFERENCES"
	}
	table, to, ok := references(c)
	if !ok {
		return schema.ForeignKey{}, "malformed REFERENCES clause"
	}
	return schema.ForeignKey{FromColumns: from, ToTable: table, ToColumns: to}, ""
}

// alterTable records ADD COLUMN, ADD PRIMARY KEY and ADD FOREIGN KEY
// actions of ALTER TABLE statements. Other actions are ignored.
func (e *extractor) alterTable(st statement) {
	c := &cursor{toks: st.toks}
	if !c.accept("ALTER", "TABLE") {
		return
	}
	c.accept("IF", "EXISTS")
	c.accept("ONLY")
	name, ok := qualifiedName(c)
	if !ok {
		return
	}

	// Reuse the column-list element parser on each comma-separated action.
	target := schema.Table{Name: name}
	depth := 0
	var action []token
	flush := func() {
		ac := &cursor{toks: action}
		if ac.accept("ADD") {
			ac.accept("COLUMN")
			ac.accept("IF", "NOT", "EXISTS")
			if !ac.eof() {
				e.element(&target, ac.rest())
			}
		}
		action = nil
	}
	for _, t := range c.rest() {
		switch t.kind {
		case tokLParen:
			depth++
		case tokRParen:
			depth--
		case tokComma:
			if depth == 0 {
				flush()
				continue
			}
		}
		action = append(action, t)
	}
	flush()

	if len(target.Columns) > 0 || len(target.ForeignKeys) > 0 || len(target.KeyColumns) > 0 {
		e.pending = append(e.pending, pending{
			table:   name,
			columns: target.Columns,
			fks:     target.ForeignKeys,
			keys:    target.KeyColumns,
			span:    st.span(),
		})
	}
}

// collectStray picks up FOREIGN KEY clauses that appear outside any table
// definition, as happens in concatenated or hand-edited dumps.
func (e *extractor) collectStray(st statement) {
	depth := 0
	for i := 0; i < len(st.toks); i++ {
		t := st.toks[i]
		switch {
		case t.kind == tokLParen:
			depth++
		case t.kind == tokRParen:
			depth--
		case depth == 0 && t.is("FOREIGN") && i+1 < len(st.toks) && st.toks[i+1].is("KEY"):
			c := &cursor{toks: st.toks[i+2:]}
			fk, problem := foreignKeyBody(c)
			span := Span{Start: t.start, End: st.toks[i+1].end}
			if c.pos > 0 {
				span.End = c.toks[c.pos-1].end
			}
			if problem != "" {
				e.report(KindUnresolvedForeignKey, "", span, "%s", problem)
				return
			}
			e.pending = append(e.pending, pending{fks: []schema.ForeignKey{fk}, span: span})
			i += 1 + c.pos
		}
	}
}

func (e *extractor) applyPending() {
	for _, p := range e.pending {
		if p.table != "" {
			tbl, ok := e.schema.Lookup(p.table)
			if !ok {
				e.report(KindUnknownTable, p.table, p.span, "ALTER TABLE on a table that is not defined")
				continue
			}
			tbl.Columns = append(tbl.Columns, p.columns...)
			tbl.ForeignKeys = append(tbl.ForeignKeys, p.fks...)
			if len(p.keys) > 0 {
				tbl.KeyColumns = p.keys
			}
			continue
		}
		for _, fk := range p.fks {
			owner := e.owner(fk)
			if owner == nil {
				e.report(KindUnresolvedForeignKey, "", p.span,
					"no table declares column %s; FOREIGN KEY to %s dropped", strings.Join(fk.FromColumns, ", "), fk.ToTable)
				continue
			}
			owner.ForeignKeys = append(owner.ForeignKeys, fk)
		}
	}
}

// owner returns the first table, in registration order, that declares the
// key's first referencing column.
func (e *extractor) owner(fk schema.ForeignKey) *schema.Table {
	if len(fk.FromColumns) == 0 {
		return nil
	}
	for _, t := range e.schema.Tables() {
		if t.HasColumn(fk.FromColumns[0]) {
			return t
		}
	}
	return nil
}

// resolveForeignKeys fills omitted referenced columns from the target's
// primary key and reports keys that cannot be drawn faithfully.
func (e *extractor) resolveForeignKeys() {
	for _, t := range e.schema.Tables() {
		for i := range t.ForeignKeys {
			fk := &t.ForeignKeys[i]
			target, known := e.schema.Lookup(fk.ToTable)
			if len(fk.ToColumns) == 0 {
				if known {
					fk.ToColumns = append([]string(nil), target.PrimaryKey()...)
				}
				if len(fk.ToColumns) == 0 {
					fk.ToColumns = []string{}
					e.diags = append(e.diags, tableDiagnostic(KindUnresolvedForeignKey,
						fmt.Sprintf("reference to %s names no columns and its primary key is unknown", fk.ToTable), t.Name))
				}
			}
			if !known {
				e.diags = append(e.diags, tableDiagnostic(KindUnknownTable,
					fmt.Sprintf("foreign key references undefined table %s", fk.ToTable), t.Name))
			}
			if len(fk.ToColumns) > 0 && len(fk.FromColumns) != len(fk.ToColumns) {
				e.diags = append(e.diags, tableDiagnostic(KindForeignKeyArity,
					fmt.Sprintf("foreign key to %s pairs %d column(s) with %d", fk.ToTable, len(fk.FromColumns), len(fk.ToColumns)), t.Name))
			}
		}
	}
}
