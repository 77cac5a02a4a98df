package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a referenced queue entry or event does not exist.
var ErrNotFound = errors.New("not found")

type DB struct {
	db     *sql.DB
	logger *zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// sqlite serializes writers anyway; a single pooled connection also
	// keeps :memory: databases coherent across queries.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("database initialized")
	return &DB{db: db, logger: logger}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS queue_entries (
            id TEXT PRIMARY KEY,
            token TEXT UNIQUE NOT NULL,
            service TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'Waiting',
            position_in_queue INTEGER NOT NULL,
            waiting_time_minutes INTEGER NOT NULL DEFAULT 0,
            service_time_minutes INTEGER NOT NULL DEFAULT 0,
            joined_at DATETIME NOT NULL,
            started_at DATETIME,
            completed_at DATETIME,
            no_show BOOLEAN NOT NULL DEFAULT 0,
            day_of_week INTEGER NOT NULL,
            hour_of_day INTEGER NOT NULL,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,

		// Single-row sequence that owns token numbering. Bumped inside the
		// same transaction as the entry insert so tokens stay unique under
		// concurrent joins.
		`CREATE TABLE IF NOT EXISTS token_seq (
            id INTEGER PRIMARY KEY CHECK (id = 1),
            value INTEGER NOT NULL
        )`,
		`INSERT OR IGNORE INTO token_seq (id, value) VALUES (1, 0)`,

		`CREATE TABLE IF NOT EXISTS events (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            title TEXT NOT NULL,
            organization TEXT,
            date TEXT,
            time TEXT,
            location TEXT,
            created_at DATETIME NOT NULL
        )`,

		`CREATE INDEX IF NOT EXISTS idx_queue_service_status ON queue_entries(service, status)`,
		`CREATE INDEX IF NOT EXISTS idx_queue_created_at ON queue_entries(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_queue_token ON queue_entries(token)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

func (db *DB) Close() error {
	return db.db.Close()
}
