// Package manager executes schema-mutating operations against the storage engine.
// Each operation runs the DDL and the metadata write in one transaction, under an
// exclusive per-table lock.
package manager

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/leengari/dyntable/internal/compiler"
	"github.com/leengari/dyntable/internal/domain/errors"
	"github.com/leengari/dyntable/internal/domain/schema"
	"github.com/leengari/dyntable/internal/domain/transaction"
	"github.com/leengari/dyntable/internal/storage/engine"
	"github.com/leengari/dyntable/internal/storage/metadata"
)

// DefaultTimeout bounds a single schema transaction.
const DefaultTimeout = 30 * time.Second

// PhysicalNamePrefix starts every physical table name. Names are never parsed back.
const PhysicalNamePrefix = "dt_"

// Migrator creates, alters and drops runtime-defined tables.
type Migrator struct {
	storage  engine.StorageEngine
	store    *metadata.Store
	compiler *compiler.Compiler
	locks    *lockTable
	timeout  time.Duration
	logger   *slog.Logger

	begin   engine.BeginFunc
	newName func() string
}

// NewMigrator wires a migrator. A zero timeout means DefaultTimeout.
func NewMigrator(storage engine.StorageEngine, store *metadata.Store, comp *compiler.Compiler, timeout time.Duration, logger *slog.Logger) *Migrator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{
		storage:  storage,
		store:    store,
		compiler: comp,
		locks:    newLockTable(),
		timeout:  timeout,
		logger:   logger,
		begin:    engine.SQLBegin(storage.DB()),
		newName:  NewPhysicalName,
	}
}

// NewPhysicalName returns a fresh opaque table name from a random UUID.
func NewPhysicalName() string {
	return PhysicalNamePrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// txFailure describes how a schema transaction ended when it did not commit.
type txFailure struct {
	stage       string
	err         error
	rollbackErr error
	committed   bool // commit was attempted and failed
}

// inTx runs fn in a storage transaction bounded by the migrator timeout.
// fn reports the stage it failed at; nothing is committed unless fn succeeds.
func (m *Migrator) inTx(ctx context.Context, journal *transaction.Transaction, fn func(ctx context.Context, q engine.Querier) (string, error)) *txFailure {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	tx, err := m.begin(ctx)
	if err != nil {
		return &txFailure{stage: "begin", err: err}
	}

	stage, err := fn(ctx, engine.Journaled(tx, journal))
	if err != nil {
		rbErr := tx.Rollback()
		if stderrors.Is(rbErr, sql.ErrTxDone) {
			// the context expired and database/sql already rolled back
			rbErr = nil
		}
		return &txFailure{stage: stage, err: err, rollbackErr: rbErr}
	}

	if err := tx.Commit(); err != nil {
		return &txFailure{stage: "commit", err: err, committed: true}
	}
	return nil
}

// fail converts a txFailure into the error callers see and logs it.
// Failures before any mutation pass through unchanged.
func (m *Migrator) fail(op string, journal *transaction.Transaction, f *txFailure, oldSpec, newSpec schema.TableSpec) error {
	if f.stage == "load" && f.rollbackErr == nil {
		return f.err
	}

	if f.rollbackErr != nil || f.committed {
		rbErr := f.rollbackErr
		if f.committed {
			rbErr = fmt.Errorf("commit outcome unknown: %w", f.err)
		}
		m.logger.Error("schema migration left storage inconsistent",
			slog.String("op", op),
			slog.String("table_id", journal.TableID),
			slog.String("tx_id", journal.ID),
			slog.String("stage", f.stage),
			slog.Any("old_spec", describeSpec(oldSpec)),
			slog.Any("new_spec", describeSpec(newSpec)),
			slog.Any("statements", journal.SQL()),
			slog.Any("error", f.err),
			slog.Any("rollback_error", rbErr),
		)
		return &errors.MigrationInconsistencyError{
			Op:          op,
			TableID:     journal.TableID,
			Stage:       f.stage,
			OldSpec:     oldSpec,
			NewSpec:     newSpec,
			Err:         f.err,
			RollbackErr: rbErr,
		}
	}

	m.logger.Warn("schema migration aborted",
		slog.String("op", op),
		slog.String("table_id", journal.TableID),
		slog.String("tx_id", journal.ID),
		slog.String("stage", f.stage),
		slog.Any("error", f.err),
	)
	return &errors.MigrationAbortedError{Op: op, TableID: journal.TableID, Stage: f.stage, Err: f.err}
}

// CreateTable compiles fields, then creates the physical table and its definition
// as one unit. The returned definition carries the allocated logical id.
func (m *Migrator) CreateTable(ctx context.Context, fields schema.FieldList) (*schema.TableDefinition, error) {
	spec, err := m.compiler.Compile(fields)
	if err != nil {
		return nil, err
	}

	journal := transaction.NewTransaction(transaction.KindCreate, "")
	defer journal.Close()

	def := &schema.TableDefinition{PhysicalName: m.newName()}
	def.SetLayout(fields)

	if f := m.inTx(ctx, journal, func(ctx context.Context, q engine.Querier) (string, error) {
		if err := m.storage.CreateTable(ctx, q, def.PhysicalName, spec); err != nil {
			return "create", err
		}
		if err := m.store.Save(ctx, q, def); err != nil {
			return "save_definition", err
		}
		journal.TableID = def.LogicalID
		return "", nil
	}); f != nil {
		return nil, m.fail("create", journal, f, schema.TableSpec{}, spec)
	}

	m.logger.Info("table created",
		slog.String("table_id", def.LogicalID),
		slog.String("physical_name", def.PhysicalName),
		slog.Any("fields", def.FieldNames),
		slog.String("tx_id", journal.ID),
		slog.Duration("elapsed", journal.Elapsed()),
	)
	return def, nil
}

// AlterTable replaces the shape of table id with fields. This is destructive:
// rows stored under the old shape are discarded. Either the whole replacement
// commits or the table is left exactly as it was.
func (m *Migrator) AlterTable(ctx context.Context, id string, fields schema.FieldList) (*schema.TableDefinition, error) {
	newSpec, err := m.compiler.Compile(fields)
	if err != nil {
		return nil, err
	}

	unlock := m.locks.Lock(id)
	defer unlock()

	journal := transaction.NewTransaction(transaction.KindAlter, id)
	defer journal.Close()

	var (
		def     *schema.TableDefinition
		oldSpec schema.TableSpec
	)
	if f := m.inTx(ctx, journal, func(ctx context.Context, q engine.Querier) (string, error) {
		var err error
		if def, err = m.store.Find(ctx, q, id); err != nil {
			return "load", err
		}
		if oldSpec, err = m.compiler.SpecFromDefinition(def); err != nil {
			return "load", err
		}
		if stage, err := m.replaceTable(ctx, q, def.PhysicalName, newSpec); err != nil {
			return stage, err
		}
		def.SetLayout(fields)
		if err := m.store.Save(ctx, q, def); err != nil {
			return "save_definition", err
		}
		return "", nil
	}); f != nil {
		return nil, m.fail("alter", journal, f, oldSpec, newSpec)
	}

	m.logger.Info("table altered",
		slog.String("table_id", id),
		slog.Any("old_fields", oldSpec.Names()),
		slog.Any("new_fields", newSpec.Names()),
		slog.String("tx_id", journal.ID),
		slog.Duration("elapsed", journal.Elapsed()),
	)
	return def, nil
}

// replaceTable is the destructive migration path: drop the physical table and
// create it again under the same name with spec. Data-preserving migrations
// belong beside this, not in the row path.
func (m *Migrator) replaceTable(ctx context.Context, q engine.Querier, physical string, spec schema.TableSpec) (string, error) {
	if err := m.storage.DropTable(ctx, q, physical); err != nil {
		return "drop", err
	}
	if err := m.storage.CreateTable(ctx, q, physical, spec); err != nil {
		return "create", err
	}
	return "", nil
}

// DropTable removes the physical table and its definition together.
func (m *Migrator) DropTable(ctx context.Context, id string) error {
	unlock := m.locks.Lock(id)
	defer unlock()

	journal := transaction.NewTransaction(transaction.KindDrop, id)
	defer journal.Close()

	var oldSpec schema.TableSpec
	if f := m.inTx(ctx, journal, func(ctx context.Context, q engine.Querier) (string, error) {
		def, err := m.store.Find(ctx, q, id)
		if err != nil {
			return "load", err
		}
		// a corrupt layout or a lost physical table must not block removal
		oldSpec, _ = m.compiler.SpecFromDefinition(def)
		exists, err := m.storage.TableExists(ctx, q, def.PhysicalName)
		if err != nil {
			return "drop", err
		}
		if exists {
			if err := m.storage.DropTable(ctx, q, def.PhysicalName); err != nil {
				return "drop", err
			}
		} else {
			m.logger.Warn("physical table missing, removing definition only",
				slog.String("table_id", id),
				slog.String("physical_name", def.PhysicalName),
			)
		}
		if err := m.store.Delete(ctx, q, id); err != nil {
			return "delete_definition", err
		}
		return "", nil
	}); f != nil {
		return m.fail("drop", journal, f, oldSpec, schema.TableSpec{})
	}

	m.logger.Info("table dropped",
		slog.String("table_id", id),
		slog.String("tx_id", journal.ID),
	)
	return nil
}

type specEntry struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

func describeSpec(spec schema.TableSpec) []specEntry {
	out := make([]specEntry, len(spec.Fields))
	for i, f := range spec.Fields {
		out[i] = specEntry{Name: f.Name, Type: f.Type.String()}
	}
	return out
}
