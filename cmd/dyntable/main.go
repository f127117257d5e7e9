// Command dyntable runs the dynamic schema engine as an HTTP API, a TCP server
// or an interactive REPL.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/leengari/dyntable/internal/api"
	"github.com/leengari/dyntable/internal/config"
	"github.com/leengari/dyntable/internal/engine"
	"github.com/leengari/dyntable/internal/executor"
	"github.com/leengari/dyntable/internal/export"
	"github.com/leengari/dyntable/internal/logging"
	"github.com/leengari/dyntable/internal/network"
	"github.com/leengari/dyntable/internal/repl"
	"github.com/leengari/dyntable/internal/storage/sqlite"
	"github.com/leengari/dyntable/internal/storage/writer"
)

const version = "0.1.0"

// CLI defines the command-line interface for dyntable.
type CLI struct {
	config.Config `embed:""`

	Serve   ServeCmd   `cmd:"" help:"Start the REST API server"`
	TCP     TCPCmd     `cmd:"" name:"tcp" help:"Start the JSON-over-TCP server"`
	Repl    ReplCmd    `cmd:"" default:"1" help:"Start an interactive shell"`
	Tables  TablesCmd  `cmd:"" help:"List tables and their fields"`
	Export  ExportCmd  `cmd:"" help:"Export a table as xz-compressed JSON Lines"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

// appContext is what every command receives from main.
type appContext struct {
	ctx    context.Context
	eng    *engine.Engine
	logger *slog.Logger
}

type ServeCmd struct {
	Addr string `help:"HTTP listen address" default:":8080" env:"DYNTABLE_ADDR"`
}

func (c *ServeCmd) Run(rt *appContext) error {
	return api.Start(rt.ctx, c.Addr, rt.eng)
}

type TCPCmd struct {
	Port int `help:"TCP port" default:"4444" env:"DYNTABLE_PORT"`
}

func (c *TCPCmd) Run(rt *appContext) error {
	return network.Start(rt.ctx, c.Port, rt.eng)
}

type ReplCmd struct{}

func (c *ReplCmd) Run(rt *appContext) error {
	repl.Start(rt.ctx, rt.eng, os.Stdin, os.Stdout)
	return nil
}

type TablesCmd struct{}

func (c *TablesCmd) Run(rt *appContext) error {
	return runCommand(rt, "tables")
}

type ExportCmd struct {
	TableID string `arg:"" name:"table-id" help:"Logical table id"`
	Out     string `help:"Output file (default <table-id>.jsonl.xz)" type:"path"`
}

func (c *ExportCmd) Run(rt *appContext) error {
	out := c.Out
	if out == "" {
		out = filepath.Join(".", c.TableID+".jsonl.xz")
	}

	var n int
	err := writer.WriteFileAtomic(out, func(w io.Writer) error {
		var err error
		n, err = export.Table(rt.ctx, rt.eng, c.TableID, w)
		return err
	})
	if err != nil {
		return fmt.Errorf("export %s: %w", c.TableID, err)
	}
	fmt.Printf("Exported %d rows of %s to %s\n", n, c.TableID, out)
	return nil
}

type VersionCmd struct{}

func (c *VersionCmd) Run(rt *appContext) error {
	info := sqlite.GetInfo()
	fmt.Printf("dyntable version %s (sqlite driver %s, %s)\n", version, info.Package, info.DriverType)
	return nil
}

func runCommand(rt *appContext, line string) error {
	cmd, err := repl.Parse(line)
	if err != nil {
		return err
	}
	res, err := executor.Execute(rt.ctx, rt.eng, cmd)
	if err != nil {
		return err
	}
	repl.PrintResult(os.Stdout, res)
	return nil
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("dyntable"),
		kong.Description("Runtime-defined tables over SQLite"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	kctx.FatalIfErrorf(run(kctx, &cli))
}

// run executes the selected command. The engine and the log sinks are closed
// before it returns, since FatalIfErrorf exits without running defers.
func run(kctx *kong.Context, cli *CLI) error {
	logger, closeFn := logging.SetupLogger(cli.LoggingOptions())
	defer closeFn()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt := &appContext{ctx: ctx, logger: logger}
	if kctx.Command() != "version" {
		eng, err := engine.Open(ctx, cli.EngineOptions(logger))
		if err != nil {
			logger.Error("failed to open engine", "db", cli.DB, "error", err)
			return fmt.Errorf("open %s: %w", cli.DB, err)
		}
		defer eng.Close()
		eng.AddObserver(engine.NewLoggingObserver())
		rt.eng = eng
	}

	if err := kctx.Run(rt); err != nil {
		logger.Error("command failed", "command", kctx.Command(), "error", err)
		return err
	}
	return nil
}
