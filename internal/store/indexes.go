package store

import (
	"database/sql"
	"fmt"

	"townhall/internal/logging"
)

func ensureIndexIfColumn(db *sql.DB, table, column, indexName string) {
	if db == nil {
		return
	}
	if !tableExists(db, table) || !columnExists(db, table, column) {
		return
	}
	query := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s(%s);", indexName, table, column)
	if _, err := db.Exec(query); err != nil {
		logging.Get(logging.CategoryStore).Warn("Failed to create index %s on %s(%s): %v", indexName, table, column, err)
	}
}

// ensureSecondaryIndexes covers lookups the base schema does not index,
// including columns that only exist after a migration.
func ensureSecondaryIndexes(db *sql.DB) {
	ensureIndexIfColumn(db, "meetings", "meeting_type", "idx_meetings_type")
	ensureIndexIfColumn(db, "contact_attempts", "user_id", "idx_contact_attempts_user")
	ensureIndexIfColumn(db, "login_codes", "user_id", "idx_login_codes_user")
	ensureIndexIfColumn(db, "sessions", "expires_at", "idx_sessions_expires")
}
