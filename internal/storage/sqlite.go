package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/codelineage/internal/errors"
)

// NewSQLiteStore opens (or creates) a local SQLite database. The special
// path ":memory:" keeps everything in memory.
func NewSQLiteStore(path string, logger *logrus.Logger) (*SQLStore, error) {
	if path != ":memory:" {
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, errors.DatabaseErrorf(err, "connect to sqlite %s", path)
	}

	// One connection: an in-memory database exists per connection, and
	// SQLite serialises writers anyway
	db.SetMaxOpenConns(1)

	// Enable foreign keys and WAL mode for better concurrency
	db.Exec("PRAGMA foreign_keys = ON")
	db.Exec("PRAGMA journal_mode = WAL")

	return newSQLStore(db, logger)
}
