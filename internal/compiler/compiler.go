// Package compiler turns untyped field declarations into a TableSpec.
package compiler

import (
	stderrors "errors"

	"github.com/leengari/dyntable/internal/domain/errors"
	"github.com/leengari/dyntable/internal/domain/schema"
	"github.com/leengari/dyntable/internal/types"
	"github.com/leengari/dyntable/internal/validation"
)

// Compiler resolves declarations through one registry
type Compiler struct {
	registry *types.Registry
}

// New creates a compiler bound to reg
func New(reg *types.Registry) *Compiler {
	return &Compiler{registry: reg}
}

// Registry returns the registry the compiler resolves through
func (c *Compiler) Registry() *types.Registry {
	return c.registry
}

// Compile resolves every declaration in order. It is all-or-nothing: on any
// problem it returns a *errors.CompilationError listing all of them and no spec.
func (c *Compiler) Compile(fields schema.FieldList) (schema.TableSpec, error) {
	var problems []error
	if len(fields) == 0 {
		problems = append(problems, &errors.FieldNameError{Reason: "at least one field is required"})
	}

	seen := make(map[string]bool, len(fields))
	spec := schema.TableSpec{Fields: make([]schema.Field, 0, len(fields))}

	// column names compare case-insensitively in storage
	for _, f := range fields {
		key := validation.FoldName(f.Name)
		if err := validation.ValidateFieldName(f.Name); err != nil {
			problems = append(problems, &errors.FieldNameError{Field: f.Name, Reason: err.Error()})
			continue
		}
		switch {
		case key == schema.IdentityColumn:
			problems = append(problems, &errors.FieldNameError{Field: f.Name, Reason: "name is reserved for the row identity"})
			continue
		case seen[key]:
			problems = append(problems, &errors.FieldNameError{Field: f.Name, Reason: "declared more than once"})
			continue
		}
		seen[key] = true

		colType, err := c.registry.Resolve(f.Symbol)
		if err != nil {
			var ute *errors.UnknownTypeError
			if stderrors.As(err, &ute) {
				problems = append(problems, &errors.UnknownTypeError{Field: f.Name, Symbol: ute.Symbol})
				continue
			}
			problems = append(problems, err)
			continue
		}
		spec.Fields = append(spec.Fields, schema.Field{Name: f.Name, Type: colType})
	}

	if len(problems) > 0 {
		return schema.TableSpec{}, &errors.CompilationError{Problems: problems}
	}
	return spec, nil
}

// SpecFromDefinition rebuilds the current spec of a stored definition by zipping
// its parallel name/type arrays. A definition whose arrays diverge or whose
// fingerprint no longer matches is reported as corrupt.
func (c *Compiler) SpecFromDefinition(def *schema.TableDefinition) (schema.TableSpec, error) {
	if len(def.FieldNames) != len(def.FieldTypes) {
		return schema.TableSpec{}, &errors.CorruptDefinitionError{
			TableID: def.LogicalID,
			Reason:  "field_names and field_types differ in length",
		}
	}
	if !def.Consistent() {
		return schema.TableSpec{}, &errors.CorruptDefinitionError{
			TableID: def.LogicalID,
			Reason:  "fingerprint mismatch",
		}
	}

	spec, err := c.Compile(def.Layout())
	if err != nil {
		return schema.TableSpec{}, &errors.CorruptDefinitionError{
			TableID: def.LogicalID,
			Reason:  err.Error(),
		}
	}
	return spec, nil
}
