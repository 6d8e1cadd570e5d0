package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/alecthomas/kong"
	"github.com/elee1766/agentstate/src/compressor"
)

// DBCmd groups database maintenance commands
type DBCmd struct {
	Init   DBInitCmd   `cmd:"" help:"Create the database and provision the schema"`
	Stats  DBStatsCmd  `cmd:"" help:"Show row counts and database size"`
	Vacuum DBVacuumCmd `cmd:"" help:"Reclaim free space in the database file"`
}

// DBInitCmd provisions the database
type DBInitCmd struct{}

// Run executes the db init command
func (c *DBInitCmd) Run(ctx *kong.Context, cli *CLI) error {
	db, err := openDB(cli)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	fmt.Printf("Database initialized at %s\n", db.Path())
	return nil
}

// DBStatsCmd reports database statistics
type DBStatsCmd struct{}

// Run executes the db stats command
func (c *DBStatsCmd) Run(ctx *kong.Context, cli *CLI) error {
	db, err := openDB(cli)
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := db.Stats(context.Background())
	if err != nil {
		return fmt.Errorf("failed to collect stats: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Database\t%s\n", stats.DatabasePath)
	fmt.Fprintf(w, "Size\t%s\n", compressor.FormatSize(stats.DatabaseSizeBytes))
	fmt.Fprintf(w, "Sessions\t%d\n", stats.Sessions)
	fmt.Fprintf(w, "Agents\t%d\n", stats.Agents)
	fmt.Fprintf(w, "Tool calls\t%d\n", stats.ToolCalls)
	fmt.Fprintf(w, "Modifications\t%d\n", stats.Modifications)
	fmt.Fprintf(w, "State snapshots\t%d\n", stats.StateSnapshots)
	return w.Flush()
}

// DBVacuumCmd vacuums the database
type DBVacuumCmd struct{}

// Run executes the db vacuum command
func (c *DBVacuumCmd) Run(ctx *kong.Context, cli *CLI) error {
	db, err := openDB(cli)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Vacuum(context.Background()); err != nil {
		return fmt.Errorf("vacuum failed: %w", err)
	}
	fmt.Println("Database vacuumed successfully")
	return nil
}
