package db

import (
	"database/sql"
	"fmt"
)

// Migration is one schema step.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations are applied in order to replicas older than SchemaVersion.
var Migrations = []Migration{
	{
		Version:     1,
		Description: "initial replica schema",
	},
	{
		Version:     2,
		Description: "outbox acknowledgements",
		SQL:         `ALTER TABLE outbox ADD COLUMN acked_at DATETIME`,
	},
}

// columnExists reports whether table has column.
func (db *DB) columnExists(table, column string) (bool, error) {
	rows, err := db.conn.Query(fmt.Sprintf("PRAGMA table_info(%s);", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notnull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// GetSchemaVersion returns the recorded schema version, 0 when unset.
func (db *DB) GetSchemaVersion() (int, error) {
	var version string
	err := db.conn.QueryRow("SELECT value FROM schema_info WHERE key = 'version'").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	var v int
	fmt.Sscanf(version, "%d", &v)
	return v, nil
}

func (db *DB) setSchemaVersion(version int) error {
	_, err := db.conn.Exec(`INSERT OR REPLACE INTO schema_info (key, value) VALUES ('version', ?)`,
		fmt.Sprintf("%d", version))
	return err
}

// RunMigrations applies pending migrations and returns how many ran.
func (db *DB) RunMigrations() (int, error) {
	current, err := db.GetSchemaVersion()
	if err != nil {
		return 0, err
	}
	if current >= SchemaVersion {
		return 0, nil
	}

	var ran int
	err = db.withWriteLock(func() error {
		for _, m := range Migrations {
			if m.Version <= current {
				continue
			}
			if m.Version == 2 {
				// Fresh replicas already carry the column.
				exists, err := db.columnExists("outbox", "acked_at")
				if err != nil {
					return fmt.Errorf("check column acked_at: %w", err)
				}
				if exists {
					m.SQL = ""
				}
			}
			if m.SQL != "" {
				if _, err := db.conn.Exec(m.SQL); err != nil {
					return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
				}
			}
			if err := db.setSchemaVersion(m.Version); err != nil {
				return fmt.Errorf("set version %d: %w", m.Version, err)
			}
			ran++
		}
		return nil
	})
	return ran, err
}
