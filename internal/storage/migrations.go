package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// Migration represents a database migration.
type Migration struct {
	Version int
	Name    string
	Up      string
}

// migrations holds all database migrations in order.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "initial_schema",
		Up: `
			-- Tracked projects table
			CREATE TABLE IF NOT EXISTS projects (
				id TEXT PRIMARY KEY,
				title TEXT NOT NULL,
				latest_version TEXT NOT NULL,
				last_update DATETIME NOT NULL
			);

			-- Channel subscriptions table
			CREATE TABLE IF NOT EXISTS subscriptions (
				id TEXT PRIMARY KEY,
				project_id TEXT NOT NULL,
				channel_id TEXT NOT NULL,
				owner_id TEXT NOT NULL,
				created_at DATETIME NOT NULL
			);

			-- Indexes
			CREATE UNIQUE INDEX IF NOT EXISTS idx_subscriptions_project_channel
				ON subscriptions(project_id, channel_id);
			CREATE INDEX IF NOT EXISTS idx_subscriptions_channel
				ON subscriptions(channel_id);
		`,
	},
}

// runMigrations applies all pending migrations.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	var currentVersion int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("get current version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= currentVersion {
			continue
		}

		if _, err := db.Exec(m.Up); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Name, err)
		}

		_, err := db.Exec(
			"INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Name, time.Now(),
		)
		if err != nil {
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
	}

	return nil
}
