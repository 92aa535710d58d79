package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS items (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL CHECK (length(name) BETWEEN 1 AND 50),
    description TEXT NOT NULL DEFAULT '' CHECK (length(description) <= 255),
    price       REAL NOT NULL CHECK (price > 0),
    created_at  DATETIME NOT NULL,
    updated_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS lists (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL CHECK (length(name) BETWEEN 1 AND 50),
    description TEXT NOT NULL DEFAULT '' CHECK (length(description) <= 255),
    created_at  DATETIME NOT NULL
);

-- item_id has no foreign key: removing entries of a deleted item is an
-- explicit store step.
CREATE TABLE IF NOT EXISTS list_entries (
    list_id  TEXT NOT NULL REFERENCES lists(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    item_id  TEXT NOT NULL,
    quantity REAL NOT NULL CHECK (quantity > 0),
    status   TEXT NOT NULL DEFAULT 'not purchased' CHECK (status IN ('purchased', 'not purchased')),
    PRIMARY KEY (list_id, position)
);
`

// EnsureSchema creates all tables and indexes if they don't already exist,
// then applies pending migrations.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return Migrate(db)
}
