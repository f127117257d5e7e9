package sqlite

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/leengari/dyntable/internal/domain/data"
	"github.com/leengari/dyntable/internal/domain/schema"
	"github.com/leengari/dyntable/internal/storage/engine"
)

// bindValue converts a validated row value into the driver argument for f.
func bindValue(f schema.Field, v interface{}) (interface{}, error) {
	switch f.Type.Kind {
	case schema.KindInteger:
		if n, ok := v.(int64); ok {
			return n, nil
		}
	case schema.KindBoolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case schema.KindString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	}
	return nil, fmt.Errorf("column %s: cannot bind %T as %s", f.Name, v, f.Type)
}

// scanTargets returns one destination per column of spec, identity first.
func scanTargets(spec schema.TableSpec) []interface{} {
	dest := make([]interface{}, 0, len(spec.Fields)+1)
	dest = append(dest, new(int64))
	for _, f := range spec.Fields {
		switch f.Type.Kind {
		case schema.KindInteger:
			dest = append(dest, new(int64))
		case schema.KindBoolean:
			dest = append(dest, new(bool))
		default:
			dest = append(dest, new(string))
		}
	}
	return dest
}

// rowFromTargets builds a Row from filled scan destinations.
func rowFromTargets(spec schema.TableSpec, dest []interface{}) data.Row {
	row := data.Row{Columns: spec.Columns(), Data: make(map[string]interface{}, len(dest))}
	row.Data[schema.IdentityColumn] = *(dest[0].(*int64))
	for i, f := range spec.Fields {
		switch p := dest[i+1].(type) {
		case *int64:
			row.Data[f.Name] = *p
		case *bool:
			row.Data[f.Name] = *p
		case *string:
			row.Data[f.Name] = *p
		}
	}
	return row
}

func selectSQL(name string, spec schema.TableSpec) string {
	cols := spec.Columns()
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = QuoteIdent(c)
	}
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(quoted, ", "), QuoteIdent(name))
}

// Insert binds row's values in spec order and returns the stored row including
// the engine-assigned identity.
func (e *Engine) Insert(ctx context.Context, q engine.Querier, name string, spec schema.TableSpec, row data.Row) (data.Row, error) {
	cols := make([]string, len(spec.Fields))
	marks := make([]string, len(spec.Fields))
	args := make([]interface{}, len(spec.Fields))
	stored := data.Row{Columns: spec.Columns(), Data: make(map[string]interface{}, len(spec.Fields)+1)}

	for i, f := range spec.Fields {
		v, err := bindValue(f, row.Data[f.Name])
		if err != nil {
			return data.Row{}, err
		}
		cols[i] = QuoteIdent(f.Name)
		marks[i] = "?"
		args[i] = v
		stored.Data[f.Name] = v
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		QuoteIdent(name), strings.Join(cols, ", "), strings.Join(marks, ", "))
	res, err := q.ExecContext(ctx, stmt, args...)
	if err != nil {
		return data.Row{}, fmt.Errorf("insert into %s: %w", name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return data.Row{}, fmt.Errorf("insert into %s: read identity: %w", name, err)
	}
	stored.Data[schema.IdentityColumn] = id
	return stored, nil
}

// Scan returns every row of the table, in identity order.
func (e *Engine) Scan(ctx context.Context, q engine.Querier, name string, spec schema.TableSpec) ([]data.Row, error) {
	rows, err := q.QueryContext(ctx, selectSQL(name, spec)+" ORDER BY "+QuoteIdent(schema.IdentityColumn))
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", name, err)
	}
	defer rows.Close()

	out := []data.Row{}
	for rows.Next() {
		dest := scanTargets(spec)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", name, err)
		}
		out = append(out, rowFromTargets(spec, dest))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", name, err)
	}
	return out, nil
}

// Get returns one row by identity.
func (e *Engine) Get(ctx context.Context, q engine.Querier, name string, spec schema.TableSpec, id int64) (data.Row, bool, error) {
	stmt := selectSQL(name, spec) + " WHERE " + QuoteIdent(schema.IdentityColumn) + " = ?"
	dest := scanTargets(spec)
	err := q.QueryRowContext(ctx, stmt, id).Scan(dest...)
	if stderrors.Is(err, sql.ErrNoRows) {
		return data.Row{}, false, nil
	}
	if err != nil {
		return data.Row{}, false, fmt.Errorf("get %s/%d: %w", name, id, err)
	}
	return rowFromTargets(spec, dest), true, nil
}

// Delete removes one row by identity and reports whether it existed.
func (e *Engine) Delete(ctx context.Context, q engine.Querier, name string, id int64) (bool, error) {
	stmt := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", QuoteIdent(name), QuoteIdent(schema.IdentityColumn))
	res, err := q.ExecContext(ctx, stmt, id)
	if err != nil {
		return false, fmt.Errorf("delete %s/%d: %w", name, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete %s/%d: %w", name, id, err)
	}
	return n > 0, nil
}
