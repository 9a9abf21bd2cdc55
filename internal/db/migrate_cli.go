package db

import (
	"fmt"
	"io"
	"io/fs"
	"strconv"
)

// RunMigrateCommand handles the 'migrate' subcommand: up, down, status,
// version <n> and force <n>. Output goes to w.
func RunMigrateCommand(w io.Writer, args []string, dbPath string) error {
	if len(args) < 1 {
		PrintMigrateHelp(w)
		return fmt.Errorf("missing migrate action")
	}

	migrationsFS, err := getMigrationsFS()
	if err != nil {
		return fmt.Errorf("failed to get migrations filesystem: %w", err)
	}

	// Migrations manage the schema, so open without applying them.
	database, err := OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	action := args[0]
	switch action {
	case "up":
		if err := database.MigrateUp(migrationsFS); err != nil {
			return err
		}
		return printStatus(w, database, migrationsFS)

	case "down":
		if err := database.MigrateDown(migrationsFS); err != nil {
			return err
		}
		return printStatus(w, database, migrationsFS)

	case "status":
		return printStatus(w, database, migrationsFS)

	case "version", "force":
		if len(args) < 2 {
			return fmt.Errorf("usage: migrate %s <version_number>", action)
		}
		v, err := strconv.Atoi(args[1])
		if err != nil || v < 0 {
			return fmt.Errorf("invalid version number: %s", args[1])
		}
		if action == "force" {
			err = database.MigrateForce(migrationsFS, v)
		} else {
			err = database.MigrateTo(migrationsFS, uint(v))
		}
		if err != nil {
			return err
		}
		return printStatus(w, database, migrationsFS)

	case "help":
		PrintMigrateHelp(w)
		return nil

	default:
		PrintMigrateHelp(w)
		return fmt.Errorf("unknown migrate action: %s", action)
	}
}

func printStatus(w io.Writer, database *DB, migrationsFS fs.FS) error {
	version, dirty, err := database.MigrateVersion(migrationsFS)
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}
	fmt.Fprintf(w, "Current version: %d\n", version)
	fmt.Fprintf(w, "Dirty: %v\n", dirty)
	if dirty {
		fmt.Fprintln(w, "A migration failed mid-execution; inspect the database, then run: migrate force <version>")
	}
	return nil
}

// PrintMigrateHelp prints usage for the migrate subcommand.
func PrintMigrateHelp(w io.Writer) {
	fmt.Fprint(w, `Usage: features migrate <action> -db <path>

Actions:
  up             Apply all pending migrations
  down           Roll back the most recent migration
  status         Show current migration version
  version <n>    Migrate up or down to version n
  force <n>      Set version n without running migrations (recovery only)
  help           Show this help
`)
}
