// Package engine defines the storage engine contract the schema engine runs on:
// a DDL facility and a generic record facility parameterized by a TableSpec.
package engine

import (
	"context"
	"database/sql"
	"time"

	"github.com/leengari/dyntable/internal/domain/data"
	"github.com/leengari/dyntable/internal/domain/schema"
	"github.com/leengari/dyntable/internal/domain/transaction"
)

// Querier is satisfied by *sql.DB, *sql.Tx and *sql.Conn.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DDL creates and drops physical tables.
type DDL interface {
	CreateTable(ctx context.Context, q Querier, name string, spec schema.TableSpec) error
	DropTable(ctx context.Context, q Querier, name string) error
	TableExists(ctx context.Context, q Querier, name string) (bool, error)
}

// Records performs row CRUD over a table whose shape is given at call time.
type Records interface {
	Insert(ctx context.Context, q Querier, name string, spec schema.TableSpec, row data.Row) (data.Row, error)
	Scan(ctx context.Context, q Querier, name string, spec schema.TableSpec) ([]data.Row, error)
	Get(ctx context.Context, q Querier, name string, spec schema.TableSpec, id int64) (data.Row, bool, error)
	Delete(ctx context.Context, q Querier, name string, id int64) (bool, error)
}

// StorageEngine is a database handle exposing both facilities.
type StorageEngine interface {
	DDL
	Records
	DB() *sql.DB
	Close() error
}

// Journaled wraps q so every statement it runs is recorded on tx.
func Journaled(q Querier, tx *transaction.Transaction) Querier {
	if tx == nil {
		return q
	}
	return &journaledQuerier{q: q, tx: tx}
}

type journaledQuerier struct {
	q  Querier
	tx *transaction.Transaction
}

func (j *journaledQuerier) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	res, err := j.q.ExecContext(ctx, query, args...)
	j.tx.Record(query, time.Since(start))
	return res, err
}

func (j *journaledQuerier) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := j.q.QueryContext(ctx, query, args...)
	j.tx.Record(query, time.Since(start))
	return rows, err
}

func (j *journaledQuerier) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	start := time.Now()
	row := j.q.QueryRowContext(ctx, query, args...)
	j.tx.Record(query, time.Since(start))
	return row
}

// Tx is a storage transaction that can enlist DDL, metadata and record calls.
type Tx interface {
	Querier
	Commit() error
	Rollback() error
}

// BeginFunc starts a Tx. *sql.DB satisfies it through SQLBegin.
type BeginFunc func(ctx context.Context) (Tx, error)

// SQLBegin adapts a *sql.DB into a BeginFunc.
func SQLBegin(db *sql.DB) BeginFunc {
	return func(ctx context.Context) (Tx, error) {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return nil, err
		}
		return tx, nil
	}
}
