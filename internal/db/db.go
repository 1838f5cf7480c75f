package db

import (
	"database/sql"
	"os"
	"path/filepath"

	"github.com/billmal071/zlibdl/internal/config"
	_ "modernc.org/sqlite"
)

var database *sql.DB

const schema = `
CREATE TABLE IF NOT EXISTS downloads (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    book_id         TEXT NOT NULL,
    title           TEXT NOT NULL,
    authors         TEXT,
    publisher       TEXT,
    language        TEXT,
    extension       TEXT,
    file_size       INTEGER DEFAULT 0,
    downloaded_size INTEGER DEFAULT 0,
    source_url      TEXT NOT NULL,
    download_url    TEXT,
    file_path       TEXT,
    status          TEXT DEFAULT 'pending',
    error_message   TEXT,
    retry_count     INTEGER DEFAULT 0,
    created_at      DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at      DATETIME DEFAULT CURRENT_TIMESTAMP,
    completed_at    DATETIME
);

CREATE INDEX IF NOT EXISTS idx_downloads_status ON downloads(status);
CREATE INDEX IF NOT EXISTS idx_downloads_book ON downloads(book_id);

CREATE TABLE IF NOT EXISTS search_history (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    query           TEXT NOT NULL,
    mode            TEXT NOT NULL DEFAULT 'search',
    result_count    INTEGER DEFAULT 0,
    filters         TEXT,
    created_at      DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_search_history_created ON search_history(created_at);

CREATE TABLE IF NOT EXISTS sessions (
    name            TEXT PRIMARY KEY,
    email           TEXT,
    cookies         TEXT NOT NULL,
    created_at      DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

// Init opens the database at the configured location
func Init() error {
	return Open(config.GetDBPath())
}

// Open initializes the database connection and schema at path
func Open(path string) error {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	db.SetMaxOpenConns(1)

	// Create schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return err
	}

	database = db
	return nil
}

// DB returns the database connection
func DB() *sql.DB {
	return database
}

// Close closes the database connection
func Close() error {
	if database != nil {
		err := database.Close()
		database = nil
		return err
	}
	return nil
}
