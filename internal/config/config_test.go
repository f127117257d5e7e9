package config

import (
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"gotest.tools/v3/assert"
)

type testCLI struct {
	Config `embed:""`
}

func parse(t *testing.T, args ...string) (*testCLI, error) {
	t.Helper()
	var cli testCLI
	parser, err := kong.New(&cli, kong.Name("dyntable"), kong.Exit(func(int) {}))
	assert.NilError(t, err)
	_, err = parser.Parse(args)
	return &cli, err
}

func TestDefaults(t *testing.T) {
	cli, err := parse(t)
	assert.NilError(t, err)
	assert.Equal(t, "dyntable.db", cli.DB)
	assert.Equal(t, "info", cli.LogLevel)
	assert.Equal(t, "text", cli.LogFormat)
	assert.Equal(t, 30*time.Second, cli.MigrationTimeout)
	assert.Equal(t, 5*time.Second, cli.BusyTimeout)
}

func TestEnvAndFlags(t *testing.T) {
	t.Setenv("DYNTABLE_DB", "/tmp/env.db")
	t.Setenv("DYNTABLE_MIGRATION_TIMEOUT", "2s")

	cli, err := parse(t, "--log-format=json")
	assert.NilError(t, err)
	assert.Equal(t, "/tmp/env.db", cli.DB)
	assert.Equal(t, 2*time.Second, cli.MigrationTimeout)
	assert.Equal(t, "json", cli.LogFormat)

	opts := cli.EngineOptions(nil)
	assert.Equal(t, "/tmp/env.db", opts.Path)
	assert.Equal(t, 2*time.Second, opts.MigrationTimeout)
}

func TestValidate(t *testing.T) {
	_, err := parse(t, "--migration-timeout=0s")
	assert.ErrorContains(t, err, "migration timeout must be positive")

	_, err = parse(t, "--db=")
	assert.ErrorContains(t, err, "database path cannot be empty")

	_, err = parse(t, "--log-level=loud")
	assert.ErrorContains(t, err, "log-level")
}
