// Package executor runs one schema engine command and renders its outcome as a
// Result. The TCP server and the REPL both speak through it.
package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/leengari/dyntable/internal/domain/data"
	"github.com/leengari/dyntable/internal/domain/errors"
	"github.com/leengari/dyntable/internal/domain/schema"
)

// Operations understood by Execute
const (
	OpCreate   = "create"
	OpAlter    = "alter"
	OpDrop     = "drop"
	OpTables   = "tables"
	OpDescribe = "describe"
	OpInsert   = "insert"
	OpRows     = "rows"
	OpGet      = "get"
	OpDelete   = "delete"
)

// Engine is the part of the schema engine the executor drives.
type Engine interface {
	CreateTable(ctx context.Context, fields schema.FieldList) (string, error)
	AlterTable(ctx context.Context, id string, fields schema.FieldList) error
	DropTable(ctx context.Context, id string) error
	Definitions(ctx context.Context) ([]schema.TableDefinition, error)
	Describe(ctx context.Context, id string) (*schema.TableDefinition, schema.TableSpec, error)
	ResolveSpec(ctx context.Context, id string) (schema.TableSpec, error)
	Insert(ctx context.Context, id string, row data.Row) (data.Row, error)
	List(ctx context.Context, id string) ([]data.Row, error)
	GetRow(ctx context.Context, id string, rowID int64) (data.Row, error)
	DeleteRow(ctx context.Context, id string, rowID int64) error
}

// Command is one request against the engine.
type Command struct {
	Op      string           `json:"op"`
	TableID string           `json:"table_id,omitempty"`
	Fields  schema.FieldList `json:"fields,omitempty"`
	Row     data.Row         `json:"row,omitempty"`
	RowID   int64            `json:"row_id,omitempty"`
}

type Result struct {
	Columns      []string   `json:"columns,omitempty"`
	Rows         []data.Row `json:"rows,omitempty"`
	Message      string     `json:"message,omitempty"`
	Error        string     `json:"error,omitempty"`
	TableID      string     `json:"table_id,omitempty"`
	RowsAffected int        `json:"rows_affected,omitempty"`
}

// Execute dispatches cmd to eng.
func Execute(ctx context.Context, eng Engine, cmd Command) (*Result, error) {
	switch cmd.Op {
	case OpCreate:
		return executeCreate(ctx, eng, cmd)
	case OpTables:
		return executeTables(ctx, eng)
	}

	if cmd.TableID == "" {
		return nil, fmt.Errorf("%w: %s requires a table id", errors.ErrInvalidInput, cmd.Op)
	}

	switch cmd.Op {
	case OpAlter:
		if err := eng.AlterTable(ctx, cmd.TableID, cmd.Fields); err != nil {
			return nil, err
		}
		return &Result{
			TableID: cmd.TableID,
			Message: fmt.Sprintf("Table %s altered, existing rows discarded", cmd.TableID),
		}, nil
	case OpDrop:
		if err := eng.DropTable(ctx, cmd.TableID); err != nil {
			return nil, err
		}
		return &Result{TableID: cmd.TableID, Message: fmt.Sprintf("Table %s dropped", cmd.TableID)}, nil
	case OpDescribe:
		return executeDescribe(ctx, eng, cmd)
	case OpInsert:
		return executeInsert(ctx, eng, cmd)
	case OpRows:
		return executeRows(ctx, eng, cmd)
	case OpGet:
		row, err := eng.GetRow(ctx, cmd.TableID, cmd.RowID)
		if err != nil {
			return nil, err
		}
		return &Result{
			TableID: cmd.TableID,
			Columns: row.Columns,
			Rows:    []data.Row{row},
			Message: "Returned 1 row",
		}, nil
	case OpDelete:
		if err := eng.DeleteRow(ctx, cmd.TableID, cmd.RowID); err != nil {
			return nil, err
		}
		return &Result{
			TableID:      cmd.TableID,
			RowsAffected: 1,
			Message:      fmt.Sprintf("Row %d deleted", cmd.RowID),
		}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported operation %q", errors.ErrInvalidInput, cmd.Op)
	}
}

func executeCreate(ctx context.Context, eng Engine, cmd Command) (*Result, error) {
	id, err := eng.CreateTable(ctx, cmd.Fields)
	if err != nil {
		return nil, err
	}
	return &Result{TableID: id, Message: fmt.Sprintf("Table %s created", id)}, nil
}

func executeTables(ctx context.Context, eng Engine) (*Result, error) {
	defs, err := eng.Definitions(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]data.Row, len(defs))
	for i, d := range defs {
		rows[i] = data.Row{
			Columns: []string{"table_id", "fields"},
			Data: map[string]interface{}{
				"table_id": d.LogicalID,
				"fields":   FormatLayout(d.Layout()),
			},
		}
	}
	return &Result{
		Columns: []string{"table_id", "fields"},
		Rows:    rows,
		Message: fmt.Sprintf("%d tables", len(defs)),
	}, nil
}

func executeDescribe(ctx context.Context, eng Engine, cmd Command) (*Result, error) {
	def, spec, err := eng.Describe(ctx, cmd.TableID)
	if err != nil {
		return nil, err
	}
	cols := []string{"field", "symbol", "type"}
	rows := []data.Row{{
		Columns: cols,
		Data:    map[string]interface{}{"field": schema.IdentityColumn, "symbol": "", "type": "identity"},
	}}
	for i, f := range spec.Fields {
		rows = append(rows, data.Row{
			Columns: cols,
			Data:    map[string]interface{}{"field": f.Name, "symbol": def.FieldTypes[i], "type": f.Type.String()},
		})
	}
	return &Result{
		TableID: def.LogicalID,
		Columns: cols,
		Rows:    rows,
		Message: fmt.Sprintf("Table %s (%s)", def.LogicalID, def.PhysicalName),
	}, nil
}

func executeInsert(ctx context.Context, eng Engine, cmd Command) (*Result, error) {
	stored, err := eng.Insert(ctx, cmd.TableID, cmd.Row)
	if err != nil {
		return nil, err
	}
	id, _ := stored.ID()
	return &Result{
		TableID:      cmd.TableID,
		Columns:      stored.Columns,
		Rows:         []data.Row{stored},
		RowsAffected: 1,
		Message:      fmt.Sprintf("Inserted row %d", id),
	}, nil
}

func executeRows(ctx context.Context, eng Engine, cmd Command) (*Result, error) {
	spec, err := eng.ResolveSpec(ctx, cmd.TableID)
	if err != nil {
		return nil, err
	}
	rows, err := eng.List(ctx, cmd.TableID)
	if err != nil {
		return nil, err
	}
	return &Result{
		TableID: cmd.TableID,
		Columns: spec.Columns(),
		Rows:    rows,
		Message: fmt.Sprintf("Returned %d rows", len(rows)),
	}, nil
}

// FormatLayout renders a field list as "name:symbol" pairs.
func FormatLayout(fields schema.FieldList) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f.Name + ":" + f.Symbol
	}
	return strings.Join(parts, " ")
}
