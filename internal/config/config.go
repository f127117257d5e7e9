// Package config holds the process configuration shared by every dyntable
// command. Fields carry kong tags so the CLI can embed Config directly.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/leengari/dyntable/internal/engine"
	"github.com/leengari/dyntable/internal/logging"
)

// Config is bound from flags and DYNTABLE_* environment variables.
type Config struct {
	DB               string        `name:"db" env:"DYNTABLE_DB" default:"dyntable.db" help:"SQLite database path (:memory: for a throwaway database)"`
	LogLevel         string        `name:"log-level" env:"DYNTABLE_LOG_LEVEL" default:"info" enum:"debug,info,warn,error" help:"Log level"`
	LogFormat        string        `name:"log-format" env:"DYNTABLE_LOG_FORMAT" default:"text" enum:"text,json" help:"Console log format"`
	SeqURL           string        `name:"seq-url" env:"DYNTABLE_SEQ_URL" help:"Seq server URL; empty disables Seq"`
	MigrationTimeout time.Duration `name:"migration-timeout" env:"DYNTABLE_MIGRATION_TIMEOUT" default:"30s" help:"Upper bound for one schema transaction"`
	BusyTimeout      time.Duration `name:"busy-timeout" env:"DYNTABLE_BUSY_TIMEOUT" default:"5s" help:"How long SQLite waits on a locked database"`
}

// Validate is called by kong after parsing.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DB) == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.MigrationTimeout <= 0 {
		return fmt.Errorf("migration timeout must be positive, got %s", c.MigrationTimeout)
	}
	if c.BusyTimeout < 0 {
		return fmt.Errorf("busy timeout cannot be negative, got %s", c.BusyTimeout)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// LoggingOptions returns the logger setup for this config.
func (c *Config) LoggingOptions() logging.Options {
	return logging.Options{Level: c.LogLevel, Format: c.LogFormat, SeqURL: c.SeqURL}
}

// EngineOptions returns the engine setup for this config.
func (c *Config) EngineOptions(logger *slog.Logger) engine.Options {
	return engine.Options{
		Path:             c.DB,
		BusyTimeout:      c.BusyTimeout,
		MigrationTimeout: c.MigrationTimeout,
		Logger:           logger,
	}
}
