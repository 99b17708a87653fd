package ddl

import "strings"

// SelectTarget returns the table named after the top-level FROM of a SELECT
// (or WITH ... SELECT) query. It reports false for other statements and for
// queries selecting from a subquery.
func SelectTarget(query string) (string, bool) {
	toks, _ := lex(query)
	c := &cursor{toks: toks}
	if !c.peek().is("SELECT") && !c.peek().is("WITH") {
		return "", false
	}
	depth := 0
	for !c.eof() {
		t := c.next()
		switch {
		case t.kind == tokLParen:
			depth++
		case t.kind == tokRParen:
			depth--
		case t.kind == tokSemicolon:
			return "", false
		case depth == 0 && t.is("FROM"):
			return qualifiedName(c)
		}
	}
	return "", false
}

// readStarts are the statements that can open a read-only query.
var readStarts = map[string]bool{
	"SELECT":   true,
	"WITH":     true,
	"VALUES":   true,
	"TABLE":    true,
	"EXPLAIN":  true,
	"SHOW":     true,
	"DESCRIBE": true,
	"DESC":     true,
	"PRAGMA":   true,
}

// writeWords are keywords that change data, schema or session state
// wherever they appear. Followed by "(" they are function calls (REPLACE,
// MySQL's INSERT) and do not count.
var writeWords = map[string]bool{
	"INSERT":   true,
	"UPDATE":   true,
	"DELETE":   true,
	"REPLACE":  true,
	"MERGE":    true,
	"UPSERT":   true,
	"CREATE":   true,
	"DROP":     true,
	"ALTER":    true,
	"TRUNCATE": true,
	"RENAME":   true,
	"ATTACH":   true,
	"DETACH":   true,
	"COPY":     true,
	"GRANT":    true,
	"REVOKE":   true,
	"VACUUM":   true,
	"REINDEX":  true,
	"ANALYZE":  true,
	"CALL":     true,
	"EXEC":     true,
	"EXECUTE":  true,
	"SET":      true,
	"LOCK":     true,
	"LOAD":     true,
	"INSTALL":  true,
	"INTO":     true, // SELECT ... INTO creates a table
}

// readPragmas take an argument without writing anything.
var readPragmas = map[string]bool{
	"TABLE_INFO":        true,
	"TABLE_XINFO":       true,
	"TABLE_LIST":        true,
	"INDEX_INFO":        true,
	"INDEX_XINFO":       true,
	"INDEX_LIST":        true,
	"FOREIGN_KEY_LIST":  true,
	"FOREIGN_KEY_CHECK": true,
	"INTEGRITY_CHECK":   true,
	"QUICK_CHECK":       true,
}

// ReadOnly reports whether query is one statement that only reads. It
// rejects multiple statements, write keywords anywhere in the text,
// assigning pragmas and pragma calls outside a known read-only set.
func ReadOnly(query string) bool {
	toks, _ := lex(query)
	for len(toks) > 0 && toks[len(toks)-1].kind == tokSemicolon {
		toks = toks[:len(toks)-1]
	}
	if len(toks) == 0 || !readStarts[strings.ToUpper(toks[0].text)] || toks[0].kind != tokWord {
		return false
	}
	for i, t := range toks {
		switch {
		case t.kind == tokSemicolon:
			return false
		case t.kind == tokWord && writeWords[strings.ToUpper(t.text)]:
			if i+1 < len(toks) && toks[i+1].kind == tokLParen {
				continue
			}
			return false
		}
	}
	if toks[0].is("PRAGMA") {
		return readPragma(toks[1:])
	}
	return true
}

// readPragma checks the tokens after PRAGMA: [schema.]name, optionally
// followed by a parenthesised argument for the read-only pragmas.
func readPragma(toks []token) bool {
	if len(toks) >= 2 && toks[1].kind == tokDot {
		toks = toks[2:]
	}
	if len(toks) == 0 || !toks[0].isIdent() {
		return false
	}
	for _, t := range toks {
		if t.kind == tokOther && strings.Contains(t.text, "=") {
			return false
		}
	}
	if len(toks) == 1 {
		return true
	}
	return toks[1].kind == tokLParen && readPragmas[strings.ToUpper(toks[0].text)]
}
