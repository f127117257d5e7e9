package schema

// IdentityColumn is the engine-assigned primary key present on every physical table.
const IdentityColumn = "id"

// TableSpec is the in-memory, ordered shape of a table.
// It is derived per request and never persisted.
type TableSpec struct {
	Fields []Field `json:"fields"`
}

// Names returns the field names in spec order.
func (s TableSpec) Names() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Lookup returns the field with the given name.
func (s TableSpec) Lookup(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Columns returns the identity column followed by the spec fields.
// This is the column order of every stored row.
func (s TableSpec) Columns() []string {
	cols := make([]string, 0, len(s.Fields)+1)
	cols = append(cols, IdentityColumn)
	return append(cols, s.Names()...)
}

// Equal reports whether two specs have the same fields in the same order.
func (s TableSpec) Equal(other TableSpec) bool {
	if len(s.Fields) != len(other.Fields) {
		return false
	}
	for i := range s.Fields {
		if s.Fields[i] != other.Fields[i] {
			return false
		}
	}
	return true
}
