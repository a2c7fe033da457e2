package db

import (
	"database/sql"
	"fmt"
)

// migrations is a list of SQL statements applied in order after schema creation.
// Each migration must be idempotent. Append new migrations at the end.
var migrations = []string{
	// Migration 1: history and active views filter on the return date.
	`CREATE INDEX IF NOT EXISTS idx_assignments_return
	     ON assignments(actual_return_date, is_active)`,
	// Migration 2: the directory is listed by name.
	`CREATE INDEX IF NOT EXISTS idx_employees_name ON employees(name)`,
}

func migrate(db *sql.DB) error {
	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}
	return nil
}
