package engine

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/leengari/dyntable/internal/compiler"
	"github.com/leengari/dyntable/internal/domain/data"
	"github.com/leengari/dyntable/internal/domain/errors"
	"github.com/leengari/dyntable/internal/domain/schema"
	"github.com/leengari/dyntable/internal/storage/manager"
	"github.com/leengari/dyntable/internal/storage/metadata"
	"github.com/leengari/dyntable/internal/storage/sqlite"
	"github.com/leengari/dyntable/internal/types"

	storage "github.com/leengari/dyntable/internal/storage/engine"
)

// Engine is the main entry point for the schema engine.
// Schema changes go through the migrator; row access resolves the current spec
// from metadata on every call, inside the same transaction as the row work.
type Engine struct {
	storage  storage.StorageEngine
	store    *metadata.Store
	compiler *compiler.Compiler
	migrator *manager.Migrator
	logger   *slog.Logger
	begin    storage.BeginFunc

	mu        sync.RWMutex
	observers []Observer // Observers for lifecycle events
}

// Options configures Open.
type Options struct {
	Path             string
	BusyTimeout      time.Duration
	MigrationTimeout time.Duration
	Registry         *types.Registry // nil means types.Default()
	Logger           *slog.Logger
}

// New creates an Engine over already opened components.
func New(st storage.StorageEngine, store *metadata.Store, comp *compiler.Compiler, migrator *manager.Migrator, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		storage:   st,
		store:     store,
		compiler:  comp,
		migrator:  migrator,
		logger:    logger,
		observers: make([]Observer, 0),
	}
	if st != nil {
		e.begin = storage.SQLBegin(st.DB())
	}
	return e
}

// Open opens the SQLite database at opts.Path, makes sure the metadata table
// exists and wires a ready Engine.
func Open(ctx context.Context, opts Options) (*Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reg := opts.Registry
	if reg == nil {
		reg = types.Default()
	}

	st, err := sqlite.Open(ctx, opts.Path, sqlite.Options{BusyTimeout: opts.BusyTimeout}, logger)
	if err != nil {
		return nil, err
	}

	store := metadata.NewStore()
	if err := store.Init(ctx, st.DB()); err != nil {
		st.Close()
		return nil, err
	}

	comp := compiler.New(reg)
	migrator := manager.NewMigrator(st, store, comp, opts.MigrationTimeout, logger)
	return New(st, store, comp, migrator, logger), nil
}

// Close releases the storage engine.
func (e *Engine) Close() error {
	return e.storage.Close()
}

// Registry returns the type registry used to compile field lists.
func (e *Engine) Registry() *types.Registry {
	return e.compiler.Registry()
}

// CreateTable compiles fields and creates a table for them, returning its logical id.
func (e *Engine) CreateTable(ctx context.Context, fields schema.FieldList) (string, error) {
	def, err := e.migrator.CreateTable(ctx, fields)
	if err != nil {
		e.rejected("", fields, err)
		return "", err
	}
	e.notify(Event{Type: EventTableCreated, TableID: def.LogicalID, Data: def.FieldNames})
	return def.LogicalID, nil
}

// AlterTable replaces the shape of table id. Existing rows are discarded.
func (e *Engine) AlterTable(ctx context.Context, id string, fields schema.FieldList) error {
	def, err := e.migrator.AlterTable(ctx, id, fields)
	if err != nil {
		e.rejected(id, fields, err)
		return err
	}
	e.notify(Event{Type: EventTableAltered, TableID: id, Data: def.FieldNames})
	return nil
}

// DropTable removes table id and every row in it.
func (e *Engine) DropTable(ctx context.Context, id string) error {
	if err := e.migrator.DropTable(ctx, id); err != nil {
		return err
	}
	e.notify(Event{Type: EventTableDropped, TableID: id})
	return nil
}

func (e *Engine) rejected(id string, fields schema.FieldList, err error) {
	if !stderrors.Is(err, errors.ErrSchemaRejected) {
		return
	}
	e.notify(Event{Type: EventSchemaRejected, TableID: id, Data: map[string]interface{}{
		"fields": fields.Names(),
		"error":  err.Error(),
	}})
}

// resolve loads the definition of id and its current spec.
func (e *Engine) resolve(ctx context.Context, q storage.Querier, id string) (*schema.TableDefinition, schema.TableSpec, error) {
	def, err := e.store.Find(ctx, q, id)
	if err != nil {
		return nil, schema.TableSpec{}, err
	}
	spec, err := e.compiler.SpecFromDefinition(def)
	if err != nil {
		return nil, schema.TableSpec{}, err
	}
	return def, spec, nil
}

// withTable resolves id and runs fn in the same storage transaction, so an
// alter can never commit between reading the spec and touching the rows.
func (e *Engine) withTable(ctx context.Context, id string, fn func(q storage.Querier, def *schema.TableDefinition, spec schema.TableSpec) error) error {
	tx, err := e.begin(ctx)
	if err != nil {
		return fmt.Errorf("begin row transaction on %s: %w", id, err)
	}
	def, spec, err := e.resolve(ctx, tx, id)
	if err == nil {
		err = fn(tx, def, spec)
	}
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !stderrors.Is(rbErr, sql.ErrTxDone) {
			e.logger.Warn("row transaction rollback failed", "table_id", id, "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit row transaction on %s: %w", id, err)
	}
	return nil
}

// ResolveSpec returns the current spec of table id.
func (e *Engine) ResolveSpec(ctx context.Context, id string) (schema.TableSpec, error) {
	_, spec, err := e.resolve(ctx, e.storage.DB(), id)
	return spec, err
}

// Describe returns the stored definition of table id together with its spec.
// A definition whose physical table is gone is reported as corrupt.
func (e *Engine) Describe(ctx context.Context, id string) (*schema.TableDefinition, schema.TableSpec, error) {
	db := e.storage.DB()
	def, spec, err := e.resolve(ctx, db, id)
	if err != nil {
		return nil, schema.TableSpec{}, err
	}
	exists, err := e.storage.TableExists(ctx, db, def.PhysicalName)
	if err != nil {
		return nil, schema.TableSpec{}, err
	}
	if !exists {
		return nil, schema.TableSpec{}, &errors.CorruptDefinitionError{
			TableID: id,
			Reason:  fmt.Sprintf("physical table %s is missing", def.PhysicalName),
		}
	}
	return def, spec, nil
}

// Definitions returns every stored definition in creation order.
func (e *Engine) Definitions(ctx context.Context) ([]schema.TableDefinition, error) {
	return e.store.List(ctx, e.storage.DB())
}

// ListTables returns the logical ids of all tables in creation order.
func (e *Engine) ListTables(ctx context.Context) ([]string, error) {
	defs, err := e.Definitions(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(defs))
	for i, d := range defs {
		ids[i] = d.LogicalID
	}
	return ids, nil
}

// Insert validates row against the current spec of table id and stores it.
// The returned row carries the assigned identity.
func (e *Engine) Insert(ctx context.Context, id string, row data.Row) (data.Row, error) {
	var stored data.Row
	err := e.withTable(ctx, id, func(q storage.Querier, def *schema.TableDefinition, spec schema.TableSpec) error {
		normalized, err := validateRow(id, spec, row)
		if err != nil {
			return err
		}
		stored, err = e.storage.Insert(ctx, q, def.PhysicalName, spec, normalized)
		if err != nil {
			return fmt.Errorf("insert into table %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return data.Row{}, err
	}

	rowID, _ := stored.ID()
	e.notify(Event{Type: EventRowInserted, TableID: id, RowID: rowID})
	return stored, nil
}

// List returns every row of table id in identity order.
func (e *Engine) List(ctx context.Context, id string) ([]data.Row, error) {
	var rows []data.Row
	err := e.withTable(ctx, id, func(q storage.Querier, def *schema.TableDefinition, spec schema.TableSpec) error {
		var err error
		if rows, err = e.storage.Scan(ctx, q, def.PhysicalName, spec); err != nil {
			return fmt.Errorf("list table %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// GetRow returns one row of table id.
func (e *Engine) GetRow(ctx context.Context, id string, rowID int64) (data.Row, error) {
	var row data.Row
	err := e.withTable(ctx, id, func(q storage.Querier, def *schema.TableDefinition, spec schema.TableSpec) error {
		got, found, err := e.storage.Get(ctx, q, def.PhysicalName, spec, rowID)
		if err != nil {
			return fmt.Errorf("get row from table %s: %w", id, err)
		}
		if !found {
			return &errors.RowNotFoundError{TableID: id, RowID: rowID}
		}
		row = got
		return nil
	})
	if err != nil {
		return data.Row{}, err
	}
	return row, nil
}

// DeleteRow removes one row of table id.
func (e *Engine) DeleteRow(ctx context.Context, id string, rowID int64) error {
	err := e.withTable(ctx, id, func(q storage.Querier, def *schema.TableDefinition, _ schema.TableSpec) error {
		found, err := e.storage.Delete(ctx, q, def.PhysicalName, rowID)
		if err != nil {
			return fmt.Errorf("delete row from table %s: %w", id, err)
		}
		if !found {
			return &errors.RowNotFoundError{TableID: id, RowID: rowID}
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.notify(Event{Type: EventRowDeleted, TableID: id, RowID: rowID})
	return nil
}

// Symbols lists the registered type symbols.
func (e *Engine) Symbols() []string {
	return e.compiler.Registry().Symbols()
}

// AddObserver registers an observer to receive lifecycle events
func (e *Engine) AddObserver(observer Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, observer)
}

// RemoveObserver unregisters an observer
func (e *Engine) RemoveObserver(observer Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, o := range e.observers {
		if o == observer {
			e.observers = append(e.observers[:i], e.observers[i+1:]...)
			return
		}
	}
}

// notify sends an event to all registered observers
func (e *Engine) notify(event Event) {
	event.Timestamp = time.Now()
	e.mu.RLock()
	observers := append([]Observer(nil), e.observers...)
	e.mu.RUnlock()
	for _, observer := range observers {
		observer.OnEvent(event)
	}
}
