// Package validation checks caller-supplied identifiers before they reach DDL.
package validation

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxFieldNameLength bounds a field name in runes.
const MaxFieldNameLength = 64

// FoldName returns the key under which SQLite compares column names.
// SQLite only folds ASCII letters, so "Ä" and "ä" stay distinct.
// Two field names with equal keys would collide in one physical table.
func FoldName(name string) string {
	b := []byte(name)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// ValidateFieldName validates a declared field name. The name becomes a quoted
// column identifier, so any printable text is allowed.
func ValidateFieldName(name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("name must be valid UTF-8")
	}
	if n := utf8.RuneCountInString(name); n > MaxFieldNameLength {
		return fmt.Errorf("name is %d characters long, maximum is %d", n, MaxFieldNameLength)
	}
	if strings.TrimSpace(name) != name {
		return fmt.Errorf("name cannot start or end with whitespace")
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("name cannot contain control characters")
		}
	}
	return nil
}

// ValidateTypeSymbol validates a type symbol before it is registered
func ValidateTypeSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("type symbol cannot be empty")
	}
	if strings.ContainsFunc(symbol, unicode.IsSpace) {
		return fmt.Errorf("type symbol %q cannot contain whitespace", symbol)
	}
	return nil
}
