package schema

import (
	"encoding/hex"
	"time"

	"github.com/zeebo/blake3"
)

// TableDefinition is the persisted record mapping a logical table id to its
// physical table and current field layout.
//
// FieldNames and FieldTypes are parallel; FieldTypes holds the type symbols the
// table was declared with (e.g. "str"), resolved through a types.Registry on load.
type TableDefinition struct {
	LogicalID    string    `json:"table_id"`
	PhysicalName string    `json:"physical_name"`
	FieldNames   []string  `json:"field_names"`
	FieldTypes   []string  `json:"field_types"`
	Fingerprint  string    `json:"fingerprint"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SetLayout replaces the field layout in place and refreshes the fingerprint.
// PhysicalName and LogicalID are left untouched.
func (d *TableDefinition) SetLayout(fields FieldList) {
	d.FieldNames = make([]string, len(fields))
	d.FieldTypes = make([]string, len(fields))
	for i, f := range fields {
		d.FieldNames[i] = f.Name
		d.FieldTypes[i] = f.Symbol
	}
	d.Fingerprint = Fingerprint(d.FieldNames, d.FieldTypes)
}

// Layout returns the stored layout as an ordered FieldList.
func (d *TableDefinition) Layout() FieldList {
	n := len(d.FieldNames)
	if len(d.FieldTypes) < n {
		n = len(d.FieldTypes)
	}
	fields := make(FieldList, n)
	for i := 0; i < n; i++ {
		fields[i] = FieldDecl{Name: d.FieldNames[i], Symbol: d.FieldTypes[i]}
	}
	return fields
}

// Consistent reports whether the parallel arrays line up and match the fingerprint.
func (d *TableDefinition) Consistent() bool {
	if len(d.FieldNames) != len(d.FieldTypes) {
		return false
	}
	return d.Fingerprint == Fingerprint(d.FieldNames, d.FieldTypes)
}

// Fingerprint hashes an ordered name/type layout with BLAKE3.
// Each entry is length-prefixed so ("ab","c") and ("a","bc") never collide.
func Fingerprint(names, types []string) string {
	h := blake3.New()
	var buf [8]byte
	write := func(s string) {
		n := uint64(len(s))
		for i := 0; i < 8; i++ {
			buf[i] = byte(n >> (8 * i))
		}
		h.Write(buf[:])
		h.Write([]byte(s))
	}
	for i := range names {
		write(names[i])
		if i < len(types) {
			write(types[i])
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
