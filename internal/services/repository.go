// Package services provides the repositories behind the device registry and
// the subscriber roster. The admin console owns these records; the status
// aggregator reads them and writes only the poll diagnostics on devices.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/HerbHall/linkstat/internal/store"
)

// Sentinel errors returned by repositories.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// Migrate creates the registry and roster tables.
func Migrate(ctx context.Context, st *store.SQLiteStore) error {
	if err := st.Migrate(ctx, "registry", registryMigrations); err != nil {
		return fmt.Errorf("registry migrations: %w", err)
	}
	return nil
}

var registryMigrations = []store.Migration{
	{
		Version:     1,
		Description: "create devices and subscribers tables",
		Up: func(tx *sql.Tx) error {
			stmts := []string{
				`CREATE TABLE devices (
					id               TEXT PRIMARY KEY,
					name             TEXT NOT NULL,
					address          TEXT NOT NULL,
					port             INTEGER NOT NULL DEFAULT 0,
					kind             TEXT NOT NULL DEFAULT 'routeros-rest',
					username         TEXT NOT NULL DEFAULT '',
					password         TEXT NOT NULL DEFAULT '',
					enabled          INTEGER NOT NULL DEFAULT 1,
					last_sync_at     DATETIME,
					last_checked_at  DATETIME,
					connection_error TEXT NOT NULL DEFAULT '',
					created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE TABLE subscribers (
					id         TEXT PRIMARY KEY,
					login_name TEXT NOT NULL UNIQUE,
					status     TEXT NOT NULL DEFAULT 'active',
					device_id  TEXT NOT NULL DEFAULT ''
				)`,
				`CREATE INDEX idx_subscribers_device ON subscribers(device_id)`,
			}
			for _, stmt := range stmts {
				if _, err := tx.Exec(stmt); err != nil {
					return err
				}
			}
			return nil
		},
	},
}

// isUniqueViolation reports whether err is a SQLite UNIQUE/PRIMARY KEY
// constraint failure.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "PRIMARY KEY constraint failed")
}
