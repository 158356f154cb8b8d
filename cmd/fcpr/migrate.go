package main

import (
	"fmt"
	"strconv"

	"github.com/raman-lab/fcpr/internal/store"
)

func (e *env) runMigrate(args []string) int {
	if len(args) < 1 {
		e.printMigrateHelp()
		return exitUsage
	}
	path := e.cfg.GetDatabasePath()
	if path == "" {
		fmt.Fprintln(e.stderr, "Error: migrate requires --db or database_path in the config")
		return exitUsage
	}

	action := args[0]
	if action == "help" {
		e.printMigrateHelp()
		return exitOK
	}

	// Open without migrating; the schema is what is being managed.
	db, err := store.Open(path)
	if err != nil {
		fmt.Fprintf(e.stderr, "Failed to connect to database: %v\n", err)
		return exitError
	}
	defer db.Close()

	switch action {
	case "up":
		fmt.Fprintln(e.stdout, "Running migrations...")
		if err := db.MigrateUp(); err != nil {
			fmt.Fprintf(e.stderr, "Migration up failed: %v\n", err)
			return exitError
		}
		fmt.Fprintln(e.stdout, "✓ All migrations applied successfully")
	case "down":
		fmt.Fprintln(e.stdout, "Rolling back one migration...")
		if err := db.MigrateDown(); err != nil {
			fmt.Fprintf(e.stderr, "Migration down failed: %v\n", err)
			return exitError
		}
		fmt.Fprintln(e.stdout, "✓ Migration rolled back successfully")
	case "status":
	case "force":
		if len(args) < 2 {
			fmt.Fprintln(e.stderr, "Usage: fcpr migrate force <version_number>")
			return exitUsage
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			fmt.Fprintf(e.stderr, "Invalid version number: %s\n", args[1])
			return exitUsage
		}
		if err := db.MigrateForce(version); err != nil {
			fmt.Fprintf(e.stderr, "%v\n", err)
			return exitError
		}
		fmt.Fprintf(e.stdout, "✓ Forced version to %d\n", version)
	default:
		fmt.Fprintf(e.stderr, "Unknown migrate action: %s\n\n", action)
		e.printMigrateHelp()
		return exitUsage
	}

	version, dirty, err := db.MigrateVersion()
	if err != nil {
		fmt.Fprintf(e.stderr, "Failed to get migration status: %v\n", err)
		return exitError
	}
	fmt.Fprintf(e.stdout, "Current version: %d (dirty: %v)\n", version, dirty)
	if dirty {
		fmt.Fprintln(e.stdout, "\n⚠️  WARNING: Database is in a dirty state!")
		fmt.Fprintln(e.stdout, "A migration failed mid-execution. Inspect the database, then run:")
		fmt.Fprintln(e.stdout, "  fcpr migrate force <version>")
	}
	return exitOK
}

func (e *env) printMigrateHelp() {
	fmt.Fprintln(e.stdout, `Usage: fcpr --db <path> migrate <action>

Actions:
  up         Apply all pending migrations
  down       Roll back the most recent migration
  status     Show the current schema version
  force N    Set the schema version without running migrations (recovery only)
  help       Show this help message`)
}
