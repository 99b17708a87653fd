package schema

import (
	"strings"
)

// Column represents a table column as declared in DDL.
type Column struct {
	Name string `json:"name" yaml:"name"`
	// Type is the raw SQL type text, e.g. "DECIMAL(10,2)". May be empty.
	Type string `json:"type" yaml:"type"`
	// Constraints is the trailing constraint text, e.g. "NOT NULL PRIMARY KEY".
	Constraints string `json:"constraints" yaml:"constraints"`
}

// IsPrimaryKey reports whether the column's constraint text declares it a primary key.
func (c Column) IsPrimaryKey() bool {
	return containsPhrase(c.Constraints, "PRIMARY", "KEY")
}

// IsNotNull reports whether the column is declared NOT NULL.
func (c Column) IsNotNull() bool {
	return containsPhrase(c.Constraints, "NOT", "NULL")
}

// Label is the display text used for the column in diagrams.
func (c Column) Label() string {
	return c.Name + " (" + c.Type + ")"
}

// ForeignKey represents a foreign key reference. FromColumns and ToColumns
// are positionally paired; a length mismatch is tolerated.
type ForeignKey struct {
	FromColumns []string `json:"fromColumns" yaml:"fromColumns"`
	ToTable     string   `json:"toTable" yaml:"toTable"`
	ToColumns   []string `json:"toColumns" yaml:"toColumns"`
}

// Table represents a database table.
type Table struct {
	Name        string       `json:"name" yaml:"name"`
	Columns     []Column     `json:"columns" yaml:"columns"`
	ForeignKeys []ForeignKey `json:"foreignKeys" yaml:"foreignKeys"`
	// KeyColumns holds a table-level PRIMARY KEY (...) declaration, which
	// column constraint text does not carry.
	KeyColumns []string `json:"-" yaml:"-"`
}

// ColumnIndex returns the declaration index of the named column, or -1.
// Names compare case-insensitively, as SQL identifiers do.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the table declares the named column.
func (t *Table) HasColumn(name string) bool {
	return t.ColumnIndex(name) >= 0
}

// Column returns the named column.
func (t *Table) Column(name string) (Column, bool) {
	i := t.ColumnIndex(name)
	if i < 0 {
		return Column{}, false
	}
	return t.Columns[i], true
}

// PrimaryKey returns the table's primary key columns: the table-level
// declaration if present, otherwise the columns whose constraints declare a
// primary key, in declaration order.
func (t *Table) PrimaryKey() []string {
	if len(t.KeyColumns) > 0 {
		return t.KeyColumns
	}
	var pk []string
	for _, c := range t.Columns {
		if c.IsPrimaryKey() {
			pk = append(pk, c.Name)
		}
	}
	return pk
}

// IsForeignKeyColumn reports whether the column takes part in any of the
// table's foreign keys as a referencing column.
func (t *Table) IsForeignKeyColumn(name string) bool {
	for _, fk := range t.ForeignKeys {
		for _, c := range fk.FromColumns {
			if strings.EqualFold(c, name) {
				return true
			}
		}
	}
	return false
}

// IsKeyColumn reports whether the column is part of the primary key.
func (t *Table) IsKeyColumn(name string) bool {
	for _, c := range t.PrimaryKey() {
		if strings.EqualFold(c, name) {
			return true
		}
	}
	return false
}

// Schema is an insertion-ordered collection of tables keyed by name.
// The zero value is an empty schema ready to use.
type Schema struct {
	tables []*Table
	index  map[string]int
}

// New returns an empty schema.
func New() *Schema {
	return &Schema{index: make(map[string]int)}
}

// Add registers a table. If a table with the same name already exists it is
// replaced in place, keeping its original position, and Add returns true.
func (s *Schema) Add(t Table) (replaced bool) {
	if s.index == nil {
		s.index = make(map[string]int)
	}
	tbl := t
	if i, ok := s.index[t.Name]; ok {
		s.tables[i] = &tbl
		return true
	}
	s.index[t.Name] = len(s.tables)
	s.tables = append(s.tables, &tbl)
	return false
}

// Table looks up a table by its exact name.
func (s *Schema) Table(name string) (*Table, bool) {
	if s == nil {
		return nil, false
	}
	i, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return s.tables[i], true
}

// Lookup finds a table by name, falling back to a case-insensitive match.
func (s *Schema) Lookup(name string) (*Table, bool) {
	if t, ok := s.Table(name); ok {
		return t, true
	}
	if s == nil {
		return nil, false
	}
	for _, t := range s.tables {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return nil, false
}

// Tables returns the tables in insertion order. Callers must not modify them.
func (s *Schema) Tables() []*Table {
	if s == nil {
		return nil
	}
	out := make([]*Table, len(s.tables))
	copy(out, s.tables)
	return out
}

// Names returns the table names in insertion order.
func (s *Schema) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, len(s.tables))
	for i, t := range s.tables {
		names[i] = t.Name
	}
	return names
}

// Len returns the number of tables.
func (s *Schema) Len() int {
	if s == nil {
		return 0
	}
	return len(s.tables)
}

// containsPhrase reports whether the words appear consecutively in text,
// ignoring case and extra whitespace.
func containsPhrase(text string, words ...string) bool {
	fields := strings.Fields(strings.ToUpper(text))
	for i := 0; i+len(words) <= len(fields); i++ {
		match := true
		for j, w := range words {
			if fields[i+j] != w {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
