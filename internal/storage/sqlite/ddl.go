package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/leengari/dyntable/internal/domain/schema"
	"github.com/leengari/dyntable/internal/storage/engine"
)

// QuoteIdent quotes a SQL identifier. Field names come from callers, so every
// identifier that reaches a statement goes through here.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// ColumnDefinition renders one spec field as a column definition.
func ColumnDefinition(f schema.Field) (string, error) {
	col := QuoteIdent(f.Name)
	switch f.Type.Kind {
	case schema.KindInteger:
		return col + " INTEGER NOT NULL", nil
	case schema.KindBoolean:
		return fmt.Sprintf("%s BOOLEAN NOT NULL CHECK (%s IN (0, 1))", col, col), nil
	case schema.KindString:
		return fmt.Sprintf("%s VARCHAR(%d) NOT NULL CHECK (length(%s) <= %d)",
			col, f.Type.MaxLength, col, f.Type.MaxLength), nil
	default:
		return "", fmt.Errorf("column %s: unsupported kind %q", f.Name, f.Type.Kind)
	}
}

// CreateTableSQL renders the CREATE TABLE statement for spec: an engine-assigned
// identity followed by one column per field, in spec order.
func CreateTableSQL(name string, spec schema.TableSpec) (string, error) {
	defs := make([]string, 0, len(spec.Fields)+1)
	defs = append(defs, QuoteIdent(schema.IdentityColumn)+" INTEGER PRIMARY KEY AUTOINCREMENT")
	for _, f := range spec.Fields {
		def, err := ColumnDefinition(f)
		if err != nil {
			return "", err
		}
		defs = append(defs, def)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", QuoteIdent(name), strings.Join(defs, ", ")), nil
}

// DropTableSQL renders the DROP TABLE statement for name.
func DropTableSQL(name string) string {
	return "DROP TABLE " + QuoteIdent(name)
}

// CreateTable issues CREATE TABLE on q.
func (e *Engine) CreateTable(ctx context.Context, q engine.Querier, name string, spec schema.TableSpec) error {
	stmt, err := CreateTableSQL(name, spec)
	if err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create table %s: %w", name, err)
	}
	return nil
}

// DropTable issues DROP TABLE on q.
func (e *Engine) DropTable(ctx context.Context, q engine.Querier, name string) error {
	if _, err := q.ExecContext(ctx, DropTableSQL(name)); err != nil {
		return fmt.Errorf("drop table %s: %w", name, err)
	}
	return nil
}

// TableExists reports whether a physical table is present.
func (e *Engine) TableExists(ctx context.Context, q engine.Querier, name string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("lookup table %s: %w", name, err)
	}
	return n > 0, nil
}
