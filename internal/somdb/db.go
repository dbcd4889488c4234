// Package somdb persists training runs and anomaly score batches in a
// local SQLite database. Schema changes are managed with embedded
// golang-migrate migrations.
package somdb

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite connection used by the stores.
type DB struct {
	*sql.DB
}

// Open opens (creating if necessary) the database at path and applies
// the connection pragmas. It does not run migrations; call MigrateUp.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %s: %w", p, err)
		}
	}

	return &DB{db}, nil
}
