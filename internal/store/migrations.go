package store

import (
	"database/sql"
	"fmt"
	"time"

	"townhall/internal/logging"
)

// Schema versions:
// v1: Base tables
// v2: meetings.meeting_type
// v3: addresses.location_name
const CurrentSchemaVersion = 3

// Migration defines a database schema migration.
type Migration struct {
	Version int
	Table   string
	Column  string
	Def     string
}

// pendingMigrations lists all schema migrations to apply.
// These handle cases where tables exist but are missing newer columns.
var pendingMigrations = []Migration{
	{2, "meetings", "meeting_type", "TEXT NOT NULL DEFAULT ''"},
	{3, "addresses", "location_name", "TEXT NOT NULL DEFAULT ''"},
}

// RunMigrations applies schema migrations for existing databases and
// records the resulting schema version.
func RunMigrations(db *sql.DB) error {
	timer := logging.StartTimer(logging.CategoryStore, "RunMigrations")
	defer timer.Stop()

	logging.StoreDebug("Running schema migrations (%d pending)", len(pendingMigrations))

	appliedCount := 0
	skippedCount := 0

	for _, m := range pendingMigrations {
		if !tableExists(db, m.Table) {
			logging.StoreDebug("Table missing, skipping migration: %s.%s", m.Table, m.Column)
			skippedCount++
			continue
		}

		if columnExists(db, m.Table, m.Column) {
			skippedCount++
			continue
		}

		query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.Table, m.Column, m.Def)
		logging.StoreDebug("Executing migration: %s", query)
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("migration v%d %s.%s failed: %w", m.Version, m.Table, m.Column, err)
		}
		logging.Store("Migration applied: added %s.%s", m.Table, m.Column)
		appliedCount++
	}

	ensureSecondaryIndexes(db)

	if GetSchemaVersion(db) < CurrentSchemaVersion {
		if _, err := db.Exec(
			"INSERT INTO schema_versions (version, applied_at) VALUES (?, ?)",
			CurrentSchemaVersion, formatTime(time.Now()),
		); err != nil {
			return fmt.Errorf("failed to record schema version: %w", err)
		}
	}

	logging.StoreDebug("Schema migrations complete: applied=%d, skipped=%d", appliedCount, skippedCount)
	return nil
}

// columnExists checks if a column exists in a table using PRAGMA table_info.
func columnExists(db *sql.DB, table, column string) bool {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		logging.StoreDebug("PRAGMA table_info(%s) failed: %v", table, err)
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}

// tableExists checks if a table exists in the database.
func tableExists(db *sql.DB, table string) bool {
	var count int
	query := "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?"
	if err := db.QueryRow(query, table).Scan(&count); err != nil {
		logging.StoreDebug("Table existence check failed for %s: %v", table, err)
		return false
	}
	return count > 0
}

// GetSchemaVersion returns the recorded schema version, or 1 for a database
// whose base tables exist without a version record, or 0 for an empty one.
func GetSchemaVersion(db *sql.DB) int {
	if tableExists(db, "schema_versions") {
		var version int
		err := db.QueryRow("SELECT version FROM schema_versions ORDER BY version DESC LIMIT 1").Scan(&version)
		if err == nil {
			return version
		}
	}
	if tableExists(db, "officials") {
		return 1
	}
	return 0
}
