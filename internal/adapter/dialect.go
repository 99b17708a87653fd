package adapter

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrNoPrimaryKey    = errors.New("update needs a primary key column and value")
	ErrNothingToUpdate = errors.New("update has no column assignments")
	ErrNoTable         = errors.New("no table name given")
)

// Dialect captures the SQL spelling differences the builders care about.
type Dialect struct {
	Name        string
	quote       byte
	placeholder func(n int) string
}

var (
	SQLiteDialect   = Dialect{Name: "sqlite", quote: '"', placeholder: question}
	PostgresDialect = Dialect{Name: "postgres", quote: '"', placeholder: dollar}
	MySQLDialect    = Dialect{Name: "mysql", quote: '`', placeholder: question}
	DuckDBDialect   = Dialect{Name: "duckdb", quote: '"', placeholder: question}
)

func question(int) string { return "?" }
func dollar(n int) string  { return "$" + strconv.Itoa(n) }

// Quote returns name as a quoted identifier, doubling embedded quotes.
func (d Dialect) Quote(name string) string {
	q := d.quote
	if q == 0 {
		q = '"'
	}
	s := string(q)
	return s + strings.ReplaceAll(name, s, s+s) + s
}

// Placeholder returns the n'th (1-based) bind parameter marker.
func (d Dialect) Placeholder(n int) string {
	if d.placeholder == nil {
		return "?"
	}
	return d.placeholder(n)
}

// SelectTable builds the preview query for a table.
func (d Dialect) SelectTable(table string, limit int) string {
	q := "SELECT * FROM " + d.Quote(table)
	if limit > 0 {
		q += " LIMIT " + strconv.Itoa(limit)
	}
	return q + ";"
}

// Assignment sets one column. A nil Value writes NULL.
type Assignment struct {
	Column string
	Value  *string
	// Type is the column's SQL type, used to bind numbers as numbers.
	Type string
}

// UpdateRequest edits a single row. Keys holds every primary key column
// with the row's value; the WHERE clause ANDs them together.
type UpdateRequest struct {
	Table  string
	Keys   []Assignment
	Values []Assignment
}

// BuildUpdate renders req as a parameterised UPDATE statement.
func (d Dialect) BuildUpdate(req UpdateRequest) (string, []any, error) {
	if req.Table == "" {
		return "", nil, ErrNoTable
	}
	if len(req.Keys) == 0 {
		return "", nil, ErrNoPrimaryKey
	}
	for _, k := range req.Keys {
		if k.Column == "" || k.Value == nil {
			return "", nil, ErrNoPrimaryKey
		}
	}
	if len(req.Values) == 0 {
		return "", nil, ErrNothingToUpdate
	}

	var sb strings.Builder
	args := make([]any, 0, len(req.Values)+len(req.Keys))
	fmt.Fprintf(&sb, "UPDATE %s SET ", d.Quote(req.Table))
	for i, a := range req.Values {
		if i > 0 {
			sb.WriteString(", ")
		}
		args = append(args, bindValue(a.Value, a.Type))
		fmt.Fprintf(&sb, "%s = %s", d.Quote(a.Column), d.Placeholder(len(args)))
	}
	sb.WriteString(" WHERE ")
	for i, k := range req.Keys {
		if i > 0 {
			sb.WriteString(" AND ")
		}
		args = append(args, bindValue(k.Value, k.Type))
		fmt.Fprintf(&sb, "%s = %s", d.Quote(k.Column), d.Placeholder(len(args)))
	}
	return sb.String(), args, nil
}

// bindValue converts edited text into a driver value. Integer and real
// columns bind as numbers when the text parses; everything else binds as
// text.
func bindValue(v *string, sqlType string) any {
	if v == nil {
		return nil
	}
	switch typeClass(sqlType) {
	case classInteger:
		if n, err := strconv.ParseInt(strings.TrimSpace(*v), 10, 64); err == nil {
			return n
		}
	case classReal:
		if f, err := strconv.ParseFloat(strings.TrimSpace(*v), 64); err == nil {
			return f
		}
	}
	return *v
}

type class int

const (
	classText class = iota
	classInteger
	classReal
)

// typeClass follows SQLite's affinity rules, which also cover the common
// spellings of other engines.
func typeClass(sqlType string) class {
	t := strings.ToUpper(sqlType)
	switch {
	case strings.Contains(t, "INT"):
		return classInteger
	case strings.Contains(t, "CHAR"), strings.Contains(t, "CLOB"), strings.Contains(t, "TEXT"):
		return classText
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"):
		return classReal
	}
	return classText
}
