package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// tableBody is the encoded value of a table inside a schema object; the
// table name is the object key.
type tableBody struct {
	Columns     []Column     `json:"columns" yaml:"columns"`
	ForeignKeys []ForeignKey `json:"foreignKeys" yaml:"foreignKeys"`
}

func bodyOf(t *Table) tableBody {
	b := tableBody{Columns: t.Columns, ForeignKeys: make([]ForeignKey, len(t.ForeignKeys))}
	if b.Columns == nil {
		b.Columns = []Column{}
	}
	// Empty lists encode as [] rather than null.
	for i, fk := range t.ForeignKeys {
		if fk.FromColumns == nil {
			fk.FromColumns = []string{}
		}
		if fk.ToColumns == nil {
			fk.ToColumns = []string{}
		}
		b.ForeignKeys[i] = fk
	}
	return b
}

// MarshalJSON encodes the schema as an object keyed by table name, in
// insertion order.
func (s Schema) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, t := range s.tables {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(t.Name)
		if err != nil {
			return nil, fmt.Errorf("schema key %q: %w", t.Name, err)
		}
		body, err := json.Marshal(bodyOf(t))
		if err != nil {
			return nil, fmt.Errorf("schema table %q: %w", t.Name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(body)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a schema object, keeping the document's key order.
func (s *Schema) UnmarshalJSON(data []byte) error {
	*s = Schema{index: make(map[string]int)}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("schema: expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("schema: %w", err)
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("schema: expected table name, got %v", tok)
		}
		var body tableBody
		if err := dec.Decode(&body); err != nil {
			return fmt.Errorf("schema table %q: %w", name, err)
		}
		s.Add(Table{Name: name, Columns: body.Columns, ForeignKeys: body.ForeignKeys})
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	return nil
}

// MarshalYAML encodes the schema as an ordered mapping keyed by table name.
func (s Schema) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, t := range s.tables {
		var v yaml.Node
		if err := v.Encode(bodyOf(t)); err != nil {
			return nil, fmt.Errorf("schema table %q: %w", t.Name, err)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: t.Name},
			&v,
		)
	}
	return node, nil
}

// UnmarshalYAML decodes an ordered mapping of tables.
func (s *Schema) UnmarshalYAML(value *yaml.Node) error {
	*s = Schema{index: make(map[string]int)}
	if value.Kind == yaml.ScalarNode && value.Tag == "!!null" {
		return nil
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("schema: expected mapping at line %d", value.Line)
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		name := value.Content[i].Value
		var body tableBody
		if err := value.Content[i+1].Decode(&body); err != nil {
			return fmt.Errorf("schema table %q: %w", name, err)
		}
		s.Add(Table{Name: name, Columns: body.Columns, ForeignKeys: body.ForeignKeys})
	}
	return nil
}
