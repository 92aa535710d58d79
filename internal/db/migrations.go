package db

import (
	"database/sql"
	"fmt"
)

// migrations is a list of SQL statements applied in order after schema creation.
// Each migration must be idempotent. Append new migrations at the end.
var migrations = []string{
	// Migration 1: the item cascade and the item filter look up entries by item.
	`CREATE INDEX IF NOT EXISTS idx_list_entries_item ON list_entries(item_id)`,
	// Migration 2: the ASCII-only name index, superseded by migration 3.
	`DROP INDEX IF EXISTS idx_items_name_nocase`,
	// Migration 3: case-insensitive name sorting on items.
	`CREATE INDEX IF NOT EXISTS idx_items_name_unicode ON items(name COLLATE ` + NoCaseCollation + `)`,
}

// Migrate runs the database schema migrations.
func Migrate(db *sql.DB) error {
	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}
	return nil
}
