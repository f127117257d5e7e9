package data

import (
	"bytes"
	"encoding/json"
)

// Row is a runtime record: values keyed by field name.
// Columns fixes the output order; it is set by whoever knows the table spec.
type Row struct {
	Columns []string
	Data    map[string]interface{}
}

// NewRow creates a Row with the given data and no fixed column order
func NewRow(data map[string]interface{}) Row {
	if data == nil {
		data = make(map[string]interface{})
	}
	return Row{Data: data}
}

// Get returns a value by column name.
func (r Row) Get(col string) (interface{}, bool) {
	v, ok := r.Data[col]
	return v, ok
}

// ID returns the engine-assigned identity, if present.
func (r Row) ID() (int64, bool) {
	v, ok := r.Data["id"].(int64)
	return v, ok
}

// UnmarshalJSON decodes a JSON object into Data.
// Numbers are kept as json.Number so integer values survive intact.
func (r *Row) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var m map[string]interface{}
	if err := dec.Decode(&m); err != nil {
		return err
	}
	r.Data = m
	r.Columns = nil
	return nil
}

// MarshalJSON encodes the row as a JSON object.
// Columns come first in their fixed order; any remaining keys follow in map order.
func (r Row) MarshalJSON() ([]byte, error) {
	if len(r.Columns) == 0 {
		return json.Marshal(r.Data)
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	written := make(map[string]bool, len(r.Columns))
	first := true
	emit := func(k string, v interface{}) error {
		kb, err := json.Marshal(k)
		if err != nil {
			return err
		}
		vb, err := json.Marshal(v)
		if err != nil {
			return err
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
		return nil
	}
	for _, col := range r.Columns {
		v, ok := r.Data[col]
		if !ok || written[col] {
			continue
		}
		written[col] = true
		if err := emit(col, v); err != nil {
			return nil, err
		}
	}
	for k, v := range r.Data {
		if written[k] {
			continue
		}
		if err := emit(k, v); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
