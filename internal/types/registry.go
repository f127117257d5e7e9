// Package types maps declared type symbols to column types.
package types

import (
	"fmt"
	"sort"
	"sync"

	"github.com/leengari/dyntable/internal/domain/errors"
	"github.com/leengari/dyntable/internal/domain/schema"
	"github.com/leengari/dyntable/internal/validation"
)

// Registry is a symbol table of column types. Build one explicitly and pass it to
// consumers; there is no package-level instance.
type Registry struct {
	mu    sync.RWMutex
	types map[string]schema.ColumnType
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]schema.ColumnType)}
}

// Default returns a fresh registry holding the built-in symbols:
// "int", "bool" and "str" (bounded to schema.DefaultStringLength).
func Default() *Registry {
	r := NewRegistry()
	r.types["int"] = schema.Integer()
	r.types["bool"] = schema.Boolean()
	r.types["str"] = schema.String(schema.DefaultStringLength)
	return r
}

// Register adds a symbol. Existing symbols cannot be redefined.
func (r *Registry) Register(symbol string, t schema.ColumnType) error {
	if err := validation.ValidateTypeSymbol(symbol); err != nil {
		return err
	}
	switch t.Kind {
	case schema.KindInteger, schema.KindBoolean:
	case schema.KindString:
		if t.MaxLength <= 0 {
			return fmt.Errorf("type %q: string bound must be positive", symbol)
		}
	default:
		return fmt.Errorf("type %q: unsupported column kind %q", symbol, t.Kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[symbol]; exists {
		return fmt.Errorf("type %q already registered", symbol)
	}
	r.types[symbol] = t
	return nil
}

// Resolve returns the column type for a symbol
func (r *Registry) Resolve(symbol string) (schema.ColumnType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[symbol]
	if !ok {
		return schema.ColumnType{}, &errors.UnknownTypeError{Symbol: symbol}
	}
	return t, nil
}

// Symbols returns the registered symbols, sorted
func (r *Registry) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.types))
	for s := range r.types {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
