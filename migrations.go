package main

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all migrations in order
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Add library_events table",
			SQL: `
				CREATE TABLE IF NOT EXISTS library_events (
					id VARCHAR PRIMARY KEY,
					kind VARCHAR NOT NULL,
					record_count INTEGER NOT NULL,
					created_at_epoch BIGINT NOT NULL
				);
			`,
		},
		{
			Version:     2,
			Description: "Index library_events by creation time",
			SQL: `
				CREATE INDEX IF NOT EXISTS idx_events_created ON library_events(created_at_epoch);
			`,
		},
	}
}

// RunMigrations executes all pending migrations
func RunMigrations(db *sql.DB) error {
	// Create migrations table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description VARCHAR NOT NULL,
			applied_at_epoch BIGINT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	// Get current schema version
	var currentVersion int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	log.Debug().Int("version", currentVersion).Msg("Current schema version")

	appliedCount := 0
	for _, migration := range GetMigrations() {
		if migration.Version <= currentVersion {
			continue
		}

		log.Info().Int("version", migration.Version).Str("description", migration.Description).Msg("Applying migration")

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if _, err := tx.Exec(migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		_, err = tx.Exec(
			"INSERT INTO schema_migrations (version, description, applied_at_epoch) VALUES (?, ?, ?)",
			migration.Version, migration.Description, time.Now().Unix(),
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
		appliedCount++
	}

	if appliedCount > 0 {
		log.Info().Int("count", appliedCount).Msg("Applied migrations")
	}

	return nil
}
