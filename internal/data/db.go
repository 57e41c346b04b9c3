// Package data opens the SQLite databases used by the element index and
// the conversation store. It uses modernc.org/sqlite for pure-Go, CGO-free
// database access.
package data

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Open opens (or creates) a SQLite database at path and applies the
// connection settings every Glance database shares. An empty path opens a
// shared in-memory database named memoryName instead, for tests and
// ephemeral runs.
func Open(path, memoryName string) (*sql.DB, error) {
	dsn := path
	if dsn == "" {
		dsn = fmt.Sprintf("file:%s?mode=memory&cache=shared", memoryName)
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
		if err := validateLocalPath(dir); err != nil {
			return nil, fmt.Errorf("validate data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite works best with a single writer; connections never expire.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize pragmas: %w", err)
	}

	return db, nil
}

// initPragmas applies the SQLite settings used across all databases. WAL
// keeps readers unblocked during writes; the busy timeout covers brief
// writer contention.
func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return nil
}

// validateLocalPath rejects network-mounted locations. SQLite over a
// network filesystem corrupts under concurrent access.
func validateLocalPath(dir string) error {
	if runtime.GOOS == "windows" && strings.HasPrefix(dir, `\\`) {
		return fmt.Errorf("network path not supported for SQLite: %s", dir)
	}
	for _, prefix := range []string{"/Volumes/", "/mnt/", "/net/"} {
		if strings.HasPrefix(dir, prefix) {
			return fmt.Errorf("network path not supported for SQLite: %s", dir)
		}
	}
	return nil
}
