package msg

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Field is one column value. A nil Value is SQL NULL.
type Field struct {
	Name  string
	Value *string
}

// Record is a row as an ordered set of fields. On the wire it is a JSON
// object keyed by column name, in column order.
type Record []Field

// Text returns a Field holding a non-NULL value.
func Text(name, value string) Field {
	return Field{Name: name, Value: &value}
}

// Null returns a Field holding SQL NULL.
func Null(name string) Field {
	return Field{Name: name}
}

// Get returns the value of the named field.
func (r Record) Get(name string) (value *string, ok bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Names returns the field names in order.
func (r Record) Names() []string {
	names := make([]string, len(r))
	for i, f := range r {
		names[i] = f.Name
	}
	return names
}

func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if f.Value == nil {
			buf.WriteString("null")
			continue
		}
		val, err := json.Marshal(*f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object of scalars. Numbers and booleans keep their
// JSON spelling; null becomes a NULL field.
func (r *Record) UnmarshalJSON(data []byte) error {
	*r = nil
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("record: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("record: expected object, got %v", tok)
	}
	out := Record{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("record: %w", err)
		}
		name := tok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("record field %q: %w", name, err)
		}
		raw = bytes.TrimSpace(raw)
		switch {
		case bytes.Equal(raw, []byte("null")):
			out = append(out, Null(name))
		case raw[0] == '"':
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return fmt.Errorf("record field %q: %w", name, err)
			}
			out = append(out, Text(name, s))
		case raw[0] == '{' || raw[0] == '[':
			return fmt.Errorf("record field %q: nested values are not supported", name)
		default:
			out = append(out, Text(name, string(raw)))
		}
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("record: %w", err)
	}
	*r = out
	return nil
}
