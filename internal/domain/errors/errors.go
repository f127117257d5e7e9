// Package errors holds the error taxonomy shared by the schema engine and its surfaces.
package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/leengari/dyntable/internal/domain/schema"
)

// Sentinel errors for errors.Is checks at the request boundary
var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrSchemaRejected = errors.New("schema rejected")
	ErrMigration      = errors.New("migration failed")
	ErrInternal       = errors.New("internal error")
)

// UnknownTypeError is raised when a type symbol has no registered column type.
// Field is empty when the lookup happened outside of a compile.
type UnknownTypeError struct {
	Field  string
	Symbol string
}

func (e *UnknownTypeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("unknown type %q", e.Symbol)
	}
	return fmt.Sprintf("field %q: unknown type %q", e.Field, e.Symbol)
}

func (e *UnknownTypeError) Unwrap() error { return ErrSchemaRejected }

// FieldNameError rejects a declared field name (empty, duplicate or reserved).
type FieldNameError struct {
	Field  string
	Reason string
}

func (e *FieldNameError) Error() string {
	return fmt.Sprintf("field %q: %s", e.Field, e.Reason)
}

func (e *FieldNameError) Unwrap() error { return ErrSchemaRejected }

// CompilationError collects every problem found while compiling a field list.
type CompilationError struct {
	Problems []error
}

func (e *CompilationError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Error()
	}
	return "schema rejected: " + strings.Join(msgs, "; ")
}

func (e *CompilationError) Unwrap() []error {
	return append([]error{ErrSchemaRejected}, e.Problems...)
}

// UnknownTypes returns the unresolved (field, symbol) pairs in input order.
func (e *CompilationError) UnknownTypes() []*UnknownTypeError {
	var out []*UnknownTypeError
	for _, p := range e.Problems {
		var ute *UnknownTypeError
		if errors.As(p, &ute) {
			out = append(out, ute)
		}
	}
	return out
}

// NotFoundError means a logical table id has no TableDefinition.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// RowNotFoundError means the table exists but holds no row with that identity.
type RowNotFoundError struct {
	TableID string
	RowID   int64
}

func (e *RowNotFoundError) Error() string {
	return fmt.Sprintf("row %d not found in table %s", e.RowID, e.TableID)
}

func (e *RowNotFoundError) Unwrap() error { return ErrNotFound }

// FieldError is one offending field of a row payload.
type FieldError struct {
	Field      string      `json:"field"`
	Value      interface{} `json:"value,omitempty"`
	Constraint string      `json:"constraint"` // "required", "type_mismatch", "max_length", "unknown_field"
	Reason     string      `json:"reason"`
}

func (e FieldError) String() string {
	return fmt.Sprintf("%s (%s): %s", e.Field, e.Constraint, e.Reason)
}

// ValidationError lists every field of a row payload that failed spec checks.
type ValidationError struct {
	TableID string
	Fields  []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}
	return fmt.Sprintf("validation failed for table %s: %s", e.TableID, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// FieldNames returns the offending field names in report order.
func (e *ValidationError) FieldNames() []string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Field
	}
	return names
}

// MigrationAbortedError means a schema transaction failed and was rolled back;
// the pre-operation state is intact and the call is safe to retry.
type MigrationAbortedError struct {
	Op      string
	TableID string
	Stage   string
	Err     error
}

func (e *MigrationAbortedError) Error() string {
	return fmt.Sprintf("%s %s aborted at %s: %v", e.Op, e.TableID, e.Stage, e.Err)
}

func (e *MigrationAbortedError) Unwrap() []error { return []error{ErrMigration, e.Err} }

// MigrationInconsistencyError means a schema sequence failed partway and could not
// be rolled back. The metadata and physical table may disagree.
type MigrationInconsistencyError struct {
	Op          string
	TableID     string
	Stage       string
	OldSpec     schema.TableSpec
	NewSpec     schema.TableSpec
	Err         error
	RollbackErr error
}

func (e *MigrationInconsistencyError) Error() string {
	return fmt.Sprintf("%s %s left inconsistent at %s: %v (rollback: %v)",
		e.Op, e.TableID, e.Stage, e.Err, e.RollbackErr)
}

func (e *MigrationInconsistencyError) Unwrap() []error {
	return []error{ErrMigration, ErrInternal, e.Err}
}

// CorruptDefinitionError means a stored definition no longer matches its fingerprint
// or its parallel arrays have diverged.
type CorruptDefinitionError struct {
	TableID string
	Reason  string
}

func (e *CorruptDefinitionError) Error() string {
	return fmt.Sprintf("table definition %s is corrupt: %s", e.TableID, e.Reason)
}

func (e *CorruptDefinitionError) Unwrap() error { return ErrInternal }
