package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FieldDecl is one untyped field declaration as submitted by a caller.
type FieldDecl struct {
	Name   string `json:"name"`
	Symbol string `json:"type"`
}

// FieldList is an ordered field-name → type-symbol mapping.
//
// On the wire it is a JSON object; decoding keeps key order, which a plain
// map[string]string would lose.
type FieldList []FieldDecl

// Names returns declared names in order.
func (l FieldList) Names() []string {
	names := make([]string, len(l))
	for i, f := range l {
		names[i] = f.Name
	}
	return names
}

// UnmarshalJSON decodes a JSON object into declarations in key order.
// Duplicate keys and non-string values are rejected.
func (l *FieldList) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("field list must be a JSON object")
	}

	seen := make(map[string]bool)
	out := FieldList{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key := keyTok.(string)
		if seen[key] {
			return fmt.Errorf("duplicate field %q", key)
		}
		seen[key] = true

		var symbol string
		if err := dec.Decode(&symbol); err != nil {
			return fmt.Errorf("field %q: type must be a string", key)
		}
		out = append(out, FieldDecl{Name: key, Symbol: symbol})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*l = out
	return nil
}

// MarshalJSON encodes the list back into a JSON object in declaration order.
func (l FieldList) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range l {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.Symbol)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
