package storage

import (
	"context"
	"fmt"
	"os"
)

// Stats describes the backing store: per-table row counts plus the file
// size on disk. Read-only and off the critical path; shared with the
// query CLI.
type Stats struct {
	DatabasePath      string `json:"database_path"`
	DatabaseSizeBytes int64  `json:"database_size_bytes"`
	Sessions          int64  `json:"sessions_count"`
	Agents            int64  `json:"agents_count"`
	ToolCalls         int64  `json:"tool_calls_count"`
	Modifications     int64  `json:"modifications_count"`
	StateSnapshots    int64  `json:"state_snapshots_count"`
}

// Stats returns row counts for every entity table and the database file
// size.
func (d *DB) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{DatabasePath: d.path}

	if info, err := os.Stat(d.path); err == nil {
		stats.DatabaseSizeBytes = info.Size()
	}

	counts := []struct {
		table string
		dest  *int64
	}{
		{"sessions", &stats.Sessions},
		{"agents", &stats.Agents},
		{"tool_calls", &stats.ToolCalls},
		{"modifications", &stats.Modifications},
		{"state_snapshots", &stats.StateSnapshots},
	}
	for _, c := range counts {
		row := d.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", c.table))
		if err := row.Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", c.table, err)
		}
	}

	return stats, nil
}

// Vacuum reclaims free pages in the database file.
func (d *DB) Vacuum(ctx context.Context) error {
	_, err := d.db.ExecContext(ctx, "VACUUM")
	return err
}
