package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "config: controller configuration, single row",
		SQL: `
CREATE TABLE config (
    id             INTEGER PRIMARY KEY CHECK (id = 1),
    owner          TEXT NOT NULL,
    reward_token   TEXT NOT NULL DEFAULT '',
    escrow_addr    TEXT NOT NULL DEFAULT '',
    period_seconds INTEGER NOT NULL CHECK (period_seconds > 0),
    vote_delay     INTEGER NOT NULL,
    created_at     INTEGER NOT NULL,
    updated_at     INTEGER NOT NULL
);
`,
	},
	{
		Version:     2,
		Description: "gauges: append-only sequential id registry",
		SQL: `
CREATE TABLE gauges (
    id             INTEGER PRIMARY KEY,
    addr           TEXT NOT NULL UNIQUE,
    created_period INTEGER NOT NULL
);
`,
	},
	{
		Version:     3,
		Description: "checkpoints: per-series decay-function history",
		SQL: `
CREATE TABLE checkpoints (
    series  TEXT NOT NULL,
    period  INTEGER NOT NULL,
    bias    TEXT NOT NULL,
    slope   TEXT NOT NULL,
    PRIMARY KEY (series, period)
);

CREATE INDEX idx_checkpoints_series_period ON checkpoints(series, period DESC);
`,
	},
	{
		Version:     4,
		Description: "slope_changes: future per-period slope reductions",
		SQL: `
CREATE TABLE slope_changes (
    series  TEXT NOT NULL,
    period  INTEGER NOT NULL,
    delta   TEXT NOT NULL,
    PRIMARY KEY (series, period)
);
`,
	},
	{
		Version:     5,
		Description: "votes and voter_ratios: live vote records and allocation totals",
		SQL: `
CREATE TABLE votes (
    voter         TEXT NOT NULL,
    gauge         TEXT NOT NULL,
    slope         TEXT NOT NULL,
    vote_period   INTEGER NOT NULL,
    unlock_period INTEGER NOT NULL,
    ratio         INTEGER NOT NULL CHECK (ratio BETWEEN 0 AND 10000),
    PRIMARY KEY (voter, gauge)
);

CREATE TABLE voter_ratios (
    voter TEXT PRIMARY KEY,
    used  INTEGER NOT NULL CHECK (used BETWEEN 0 AND 10000)
);
`,
	},
}

func (db *DB) migrate() error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
