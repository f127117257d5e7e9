package schema

import "fmt"

// ColumnKind is the storage class of a column.
type ColumnKind string

const (
	KindInteger ColumnKind = "INTEGER"
	KindBoolean ColumnKind = "BOOLEAN"
	KindString  ColumnKind = "STRING"
)

// DefaultStringLength is the bound used by the "str" symbol
const DefaultStringLength = 255

// ColumnType describes one primitive column. It is a value type and is never mutated.
type ColumnType struct {
	Kind      ColumnKind `json:"kind"`
	MaxLength int        `json:"max_length,omitempty"` // only for KindString
}

// Integer returns the integer column type.
func Integer() ColumnType { return ColumnType{Kind: KindInteger} }

// Boolean returns the boolean column type.
func Boolean() ColumnType { return ColumnType{Kind: KindBoolean} }

// String returns a bounded string column type.
func String(maxLength int) ColumnType {
	return ColumnType{Kind: KindString, MaxLength: maxLength}
}

func (c ColumnType) String() string {
	if c.Kind == KindString {
		return fmt.Sprintf("STRING(%d)", c.MaxLength)
	}
	return string(c.Kind)
}

// Field is a single (name, type) entry of a TableSpec.
type Field struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}
