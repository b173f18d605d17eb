// Package database opens the pluginhub SQLite database and records install operations.
package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"pluginhub/internal/logging"
	"pluginhub/internal/migrations"
)

var db *sql.DB

// GetDB returns the process database, nil before Initialize.
func GetDB() *sql.DB {
	return db
}

// Open opens dbPath and brings its schema up to date.
func Open(dbPath string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serialises writers; a single connection avoids SQLITE_BUSY under concurrent installs.
	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(30 * time.Minute)

	if err := conn.Ping(); err != nil {
		conn.Close() //nolint:errcheck,gosec // Already failing
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := migrations.Run(conn); err != nil {
		conn.Close() //nolint:errcheck,gosec // Already failing
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return conn, nil
}

// Initialize opens the process database.
func Initialize(dbPath string) error {
	conn, err := Open(dbPath)
	if err != nil {
		return err
	}
	db = conn

	logging.Infof("Database initialized successfully at %s", dbPath)
	return nil
}

// Close closes the process database.
func Close() error {
	if db != nil {
		err := db.Close()
		db = nil
		return err
	}
	return nil
}

func dsn(dbPath string) string {
	if dbPath == ":memory:" {
		return "file::memory:?cache=shared&_busy_timeout=5000"
	}
	return "file:" + dbPath + "?_busy_timeout=5000&_journal_mode=WAL"
}
