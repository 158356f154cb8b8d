// Command fcpr reduces polarized Raman tables to tensor and intensity ratios
// and searches for the crystal orientations that reproduce them.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/raman-lab/fcpr/internal/config"
	"github.com/raman-lab/fcpr/internal/monitoring"
	"github.com/raman-lab/fcpr/internal/store"
	"github.com/raman-lab/fcpr/internal/version"
)

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// env carries global options and output streams into each command.
type env struct {
	cfg    *config.Config
	stdout io.Writer
	stderr io.Writer
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("fcpr", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { printUsage(stderr) }
	configPath := fs.String("config", "", "Path to a JSON configuration file")
	dbPath := fs.String("db", "", "SQLite database for run history (overrides database_path)")
	verbose := fs.Bool("v", false, "Enable verbose diagnostic logging")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	monitoring.SetVerbose(*verbose)

	if fs.NArg() < 1 {
		printUsage(stderr)
		return exitUsage
	}

	cfg := config.Defaults()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitError
		}
		cfg.Merge(loaded)
	}
	if *dbPath != "" {
		cfg.DatabasePath = dbPath
	}

	e := &env{cfg: cfg, stdout: stdout, stderr: stderr}
	command, rest := fs.Arg(0), fs.Args()[1:]

	switch command {
	case "process":
		return e.runProcess(rest)
	case "solve":
		return e.runSolve(rest)
	case "analyze":
		return e.runAnalyze(rest)
	case "migrate":
		return e.runMigrate(rest)
	case "serve":
		return e.runServe(rest)
	case "version":
		fmt.Fprintln(stdout, version.String())
		return exitOK
	case "help":
		printUsage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", command)
		printUsage(stderr)
		return exitUsage
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `fcpr - full-range confocal polarized Raman orientation analysis

Usage: fcpr [--config file.json] [--db runs.db] [-v] <command> [options]

Commands:
  process    Reduce a measurement table to principal ratios and intensity ratios
  solve      Find (theta, chi) reproducing one pair of intensity ratios
  analyze    Process a table and solve every row
  migrate    Manage the run history database schema (up, down, status, force N)
  serve      Serve the search and run history over HTTP
  version    Show version information
  help       Show this help message

Examples:
  fcpr process spectra.xlsx
  fcpr solve --r1 0.42 --r2 1.8 --target1 1.2 --target2 0.3
  fcpr --db runs.db analyze spectra.xlsx --output orientations.csv
  fcpr --db runs.db serve --listen :8080`)
}

// parseInterspersed parses flags that may appear before, between or after
// positional arguments and returns the positionals.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

// newFlagSet returns a sub-command FlagSet writing to stderr.
func (e *env) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	return fs
}

// openRunStore opens the configured run history, or returns nil when no
// database is configured.
func (e *env) openRunStore() (*store.RunStore, func(), error) {
	path := e.cfg.GetDatabasePath()
	if path == "" {
		return nil, func() {}, nil
	}
	db, err := store.OpenMigrated(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	return store.NewRunStore(db), func() { db.Close() }, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
