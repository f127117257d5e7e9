// Package metadata persists TableDefinition records in a fixed, always-present table.
package metadata

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/leengari/dyntable/internal/domain/errors"
	"github.com/leengari/dyntable/internal/domain/schema"
	"github.com/leengari/dyntable/internal/storage/engine"
)

// TableName is the metadata table. It is created by Init and never dropped.
const TableName = "table_definitions"

// LogicalIDPrefix prefixes the metadata sequence to form logical ids ("t1", "t2", ...).
const LogicalIDPrefix = "t"

const createMetadataSQL = `CREATE TABLE IF NOT EXISTS ` + TableName + ` (
	seq           INTEGER PRIMARY KEY AUTOINCREMENT,
	logical_id    TEXT UNIQUE,
	physical_name TEXT NOT NULL UNIQUE,
	field_names   TEXT NOT NULL,
	field_types   TEXT NOT NULL,
	fingerprint   TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL
)`

const selectColumns = `logical_id, physical_name, field_names, field_types, fingerprint, created_at, updated_at`

// Store is the single source of truth for logical id ↔ physical name ↔ layout.
// Every method takes the Querier to run on so callers can enlist it in a transaction.
type Store struct {
	now func() time.Time
}

// NewStore creates a metadata store
func NewStore() *Store {
	return &Store{now: func() time.Time { return time.Now().UTC() }}
}

// Init creates the metadata table if it does not exist.
func (s *Store) Init(ctx context.Context, q engine.Querier) error {
	if _, err := q.ExecContext(ctx, createMetadataSQL); err != nil {
		return fmt.Errorf("failed to create %s: %w", TableName, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDefinition(sc scanner) (*schema.TableDefinition, error) {
	var (
		def                  schema.TableDefinition
		logicalID            sql.NullString
		names, types         string
		createdAt, updatedAt string
	)
	if err := sc.Scan(&logicalID, &def.PhysicalName, &names, &types, &def.Fingerprint, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	def.LogicalID = logicalID.String
	if err := json.Unmarshal([]byte(names), &def.FieldNames); err != nil {
		return nil, fmt.Errorf("decode field_names of %s: %w", def.LogicalID, err)
	}
	if err := json.Unmarshal([]byte(types), &def.FieldTypes); err != nil {
		return nil, fmt.Errorf("decode field_types of %s: %w", def.LogicalID, err)
	}
	def.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	def.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &def, nil
}

// Find loads the definition of a logical id.
func (s *Store) Find(ctx context.Context, q engine.Querier, logicalID string) (*schema.TableDefinition, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM `+TableName+` WHERE logical_id = ?`, logicalID)
	def, err := scanDefinition(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, &errors.NotFoundError{Resource: "table", ID: logicalID}
	}
	if err != nil {
		return nil, fmt.Errorf("find table definition %s: %w", logicalID, err)
	}
	return def, nil
}

// Save inserts or updates def.
//
// A definition with an empty LogicalID is inserted and assigned the next id from
// the metadata sequence. Otherwise the row with that id has its layout replaced
// in place; PhysicalName is never rewritten once stored.
func (s *Store) Save(ctx context.Context, q engine.Querier, def *schema.TableDefinition) error {
	if len(def.FieldNames) != len(def.FieldTypes) {
		return fmt.Errorf("save table definition %s: %d names but %d types",
			def.LogicalID, len(def.FieldNames), len(def.FieldTypes))
	}
	def.Fingerprint = schema.Fingerprint(def.FieldNames, def.FieldTypes)

	names, err := json.Marshal(def.FieldNames)
	if err != nil {
		return err
	}
	types, err := json.Marshal(def.FieldTypes)
	if err != nil {
		return err
	}

	now := s.now()
	def.UpdatedAt = now

	if def.LogicalID != "" {
		res, err := q.ExecContext(ctx,
			`UPDATE `+TableName+` SET field_names = ?, field_types = ?, fingerprint = ?, updated_at = ? WHERE logical_id = ?`,
			string(names), string(types), def.Fingerprint, now.Format(time.RFC3339Nano), def.LogicalID)
		if err != nil {
			return fmt.Errorf("update table definition %s: %w", def.LogicalID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			return nil
		}
	}

	if def.CreatedAt.IsZero() {
		def.CreatedAt = now
	}
	var logicalID interface{}
	if def.LogicalID != "" {
		logicalID = def.LogicalID
	}
	res, err := q.ExecContext(ctx,
		`INSERT INTO `+TableName+` (logical_id, physical_name, field_names, field_types, fingerprint, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		logicalID, def.PhysicalName, string(names), string(types), def.Fingerprint,
		def.CreatedAt.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert table definition for %s: %w", def.PhysicalName, err)
	}
	if def.LogicalID != "" {
		return nil
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert table definition for %s: read sequence: %w", def.PhysicalName, err)
	}
	id := fmt.Sprintf("%s%d", LogicalIDPrefix, seq)
	if _, err := q.ExecContext(ctx,
		`UPDATE `+TableName+` SET logical_id = ? WHERE seq = ?`, id, seq); err != nil {
		return fmt.Errorf("assign logical id %s: %w", id, err)
	}
	def.LogicalID = id
	return nil
}

// Delete removes the definition of a logical id.
func (s *Store) Delete(ctx context.Context, q engine.Querier, logicalID string) error {
	res, err := q.ExecContext(ctx, `DELETE FROM `+TableName+` WHERE logical_id = ?`, logicalID)
	if err != nil {
		return fmt.Errorf("delete table definition %s: %w", logicalID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &errors.NotFoundError{Resource: "table", ID: logicalID}
	}
	return nil
}

// List returns every definition in creation order.
func (s *Store) List(ctx context.Context, q engine.Querier) ([]schema.TableDefinition, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM `+TableName+` WHERE logical_id IS NOT NULL ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list table definitions: %w", err)
	}
	defer rows.Close()

	defs := []schema.TableDefinition{}
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("list table definitions: %w", err)
		}
		defs = append(defs, *def)
	}
	return defs, rows.Err()
}
