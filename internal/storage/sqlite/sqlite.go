// Package sqlite is the storage engine: it runs DDL and generic row CRUD for
// runtime-defined tables on SQLite.
//
// Build modes:
//   - Default (CGO_ENABLED=0): pure Go modernc.org/sqlite
//   - CGO mode (CGO_ENABLED=1 -tags cgo_sqlite): mattn/go-sqlite3
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/leengari/dyntable/internal/storage/engine"
)

var _ engine.StorageEngine = (*Engine)(nil)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Options tunes how the database is opened
type Options struct {
	BusyTimeout  time.Duration
	MaxOpenConns int
}

// Engine is a SQLite-backed engine.StorageEngine.
type Engine struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open opens (creating if needed) the database at path.
func Open(ctx context.Context, path string, opts Options, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = 5 * time.Second
	}

	db, err := sql.Open(driverName, dsn(path, int(opts.BusyTimeout/time.Millisecond)))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", path, err)
	}

	// every connection to :memory: is a separate database
	if path == MemoryPath {
		db.SetMaxOpenConns(1)
	} else if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite %s: %w", path, err)
	}

	logger.Info("storage engine opened",
		slog.String("path", path),
		slog.String("driver", driverName),
		slog.String("driver_type", driverType),
	)
	return &Engine{db: db, path: path, logger: logger}, nil
}

// DB returns the underlying pool.
func (e *Engine) DB() *sql.DB { return e.db }

// Close closes the pool.
func (e *Engine) Close() error { return e.db.Close() }

// Info contains information about the SQLite driver configuration.
type Info struct {
	DriverName string `json:"driver_name"`
	DriverType string `json:"driver_type"`
	Package    string `json:"package"`
}

// GetInfo returns information about the compiled-in driver.
func GetInfo() Info {
	return Info{
		DriverName: driverName,
		DriverType: driverType,
		Package:    driverPackage,
	}
}

func itoa(n int) string { return strconv.Itoa(n) }
