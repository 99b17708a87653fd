package ddl

import "strings"

// statement is a run of tokens ending at a semicolon or at the start of the
// next top-level CREATE.
type statement struct {
	toks []token
}

func (s statement) span() Span {
	if len(s.toks) == 0 {
		return Span{}
	}
	return Span{Start: s.toks[0].start, End: s.toks[len(s.toks)-1].end}
}

// splitStatements groups tokens into statements. A semicolon always ends a
// statement, so an unbalanced parenthesis cannot swallow the rest of a dump;
// a CREATE outside parentheses starts a new one, which lets dumps without
// terminators parse.
func splitStatements(toks []token) []statement {
	var (
		out   []statement
		cur   []token
		depth int
	)
	flush := func() {
		if len(cur) > 0 {
			out = append(out, statement{toks: cur})
		}
		cur = nil
		depth = 0
	}
	for _, t := range toks {
		switch {
		case t.kind == tokSemicolon:
			flush()
			continue
		case t.kind == tokLParen:
			depth++
		case t.kind == tokRParen:
			if depth > 0 {
				depth--
			}
		case depth == 0 && t.is("CREATE") && len(cur) > 0:
			flush()
		}
		cur = append(cur, t)
	}
	flush()
	return out
}

// cursor walks a token slice. Reading past the end yields EOF tokens.
type cursor struct {
	toks []token
	pos  int
}

func (c *cursor) at(n int) token {
	if i := c.pos + n; i < len(c.toks) {
		return c.toks[i]
	}
	end := 0
	if len(c.toks) > 0 {
		end = c.toks[len(c.toks)-1].end
	}
	return token{kind: tokEOF, start: end, end: end}
}

func (c *cursor) peek() token { return c.at(0) }

func (c *cursor) next() token {
	t := c.peek()
	if c.pos < len(c.toks) {
		c.pos++
	}
	return t
}

func (c *cursor) eof() bool { return c.pos >= len(c.toks) }

func (c *cursor) rest() []token {
	if c.eof() {
		return nil
	}
	return c.toks[c.pos:]
}

// accept consumes the keyword sequence if the upcoming tokens match it.
func (c *cursor) accept(words ...string) bool {
	for i, w := range words {
		if !c.at(i).is(w) {
			return false
		}
	}
	c.pos += len(words)
	return true
}

// skipGroup consumes a balanced parenthesised group starting at the cursor.
func (c *cursor) skipGroup() bool {
	if c.peek().kind != tokLParen {
		return false
	}
	depth := 0
	for !c.eof() {
		switch c.next().kind {
		case tokLParen:
			depth++
		case tokRParen:
			depth--
			if depth == 0 {
				return true
			}
		}
	}
	return false
}

// qualifiedName reads name or schema.name (or catalog.schema.name) and
// returns the last part.
func qualifiedName(c *cursor) (string, bool) {
	if !c.peek().isIdent() {
		return "", false
	}
	name := c.next().text
	for c.peek().kind == tokDot && c.at(1).isIdent() {
		c.next()
		name = c.next().text
	}
	return name, true
}

// identList reads a parenthesised, comma-separated list and returns the
// leading identifier of each item, so "(a ASC, b)" yields [a b].
func identList(c *cursor) ([]string, bool) {
	if c.peek().kind != tokLParen {
		return nil, false
	}
	c.next()
	var (
		out    []string
		depth  = 1
		expect = true
	)
	for !c.eof() {
		t := c.next()
		switch t.kind {
		case tokLParen:
			depth++
		case tokRParen:
			depth--
			if depth == 0 {
				return out, true
			}
		case tokComma:
			if depth == 1 {
				expect = true
			}
		default:
			if depth == 1 && expect && t.isIdent() {
				out = append(out, t.text)
				expect = false
			}
		}
	}
	return out, false
}

// references reads the target of a REFERENCES clause: a table name and an
// optional column list. The cursor must be just past REFERENCES.
func references(c *cursor) (table string, cols []string, ok bool) {
	table, ok = qualifiedName(c)
	if !ok {
		return "", nil, false
	}
	if c.peek().kind == tokLParen {
		cols, ok = identList(c)
		if !ok {
			return table, cols, false
		}
	}
	return table, cols, true
}

// splitElements reads the body of a CREATE TABLE column list, starting just
// past the opening parenthesis, and splits it on top-level commas. It
// reports false if the closing parenthesis is missing.
func splitElements(c *cursor) ([][]token, bool) {
	var (
		elems [][]token
		cur   []token
		depth = 1
	)
	for !c.eof() {
		t := c.next()
		switch t.kind {
		case tokLParen:
			depth++
		case tokRParen:
			depth--
			if depth == 0 {
				if len(cur) > 0 {
					elems = append(elems, cur)
				}
				return elems, true
			}
		case tokComma:
			if depth == 1 {
				if len(cur) > 0 {
					elems = append(elems, cur)
				}
				cur = nil
				continue
			}
		}
		cur = append(cur, t)
	}
	return elems, false
}

var constraintKeywords = map[string]bool{
	"CONSTRAINT":     true,
	"PRIMARY":        true,
	"NOT":            true,
	"NULL":           true,
	"UNIQUE":         true,
	"CHECK":          true,
	"DEFAULT":        true,
	"COLLATE":        true,
	"REFERENCES":     true,
	"GENERATED":      true,
	"AS":             true,
	"AUTOINCREMENT":  true,
	"AUTO_INCREMENT": true,
	"ON":             true,
	"COMMENT":        true,
	"IDENTITY":       true,
	"KEY":            true,
}

// startsConstraint reports whether t begins the constraint part of a column
// definition.
func startsConstraint(t, next token) bool {
	if t.kind != tokWord {
		return false
	}
	upper := strings.ToUpper(t.text)
	if upper == "CHARACTER" && next.is("SET") {
		return true
	}
	return constraintKeywords[upper]
}

// readType consumes a column type: words that do not start a constraint,
// each optionally followed by a parenthesised argument list or [].
func readType(c *cursor) []token {
	start := c.pos
	for !c.eof() {
		t := c.peek()
		switch {
		case t.kind == tokWord && !startsConstraint(t, c.at(1)):
			c.next()
		case t.kind == tokLParen && c.pos > start:
			if !c.skipGroup() {
				return c.toks[start:c.pos]
			}
		case t.kind == tokOther && t.text == "[]" && c.pos > start:
			c.next()
		default:
			return c.toks[start:c.pos]
		}
	}
	return c.toks[start:c.pos]
}

// isTableConstraint reports whether a column-list element is a table
// constraint rather than a column definition.
func isTableConstraint(c *cursor) bool {
	t := c.peek()
	if t.kind != tokWord {
		return false
	}
	switch strings.ToUpper(t.text) {
	case "CONSTRAINT", "CHECK", "EXCLUDE", "LIKE":
		return true
	case "PRIMARY", "FOREIGN":
		return c.at(1).is("KEY")
	case "UNIQUE", "KEY", "INDEX", "FULLTEXT", "SPATIAL":
		// UNIQUE (a), KEY idx (a), UNIQUE KEY idx (a). A column named
		// "key" is followed by its type, whose arguments are numbers.
		next := c.at(1)
		return next.kind == tokLParen ||
			next.is("KEY") || next.is("INDEX") ||
			(next.isIdent() && c.at(2).kind == tokLParen && c.at(3).kind != tokNumber)
	}
	return false
}
